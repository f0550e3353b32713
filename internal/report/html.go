package report

import (
	"io"
	"sort"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// writeHTML renders the interactive report: three pass rate charts and two
// latency charts, every model a line over the years axis.
func writeHTML(series []Series, w io.Writer) error {
	years := yearsAxis(series)

	page := components.NewPage()
	page.AddCharts(
		passChart("Pass rate % (Part A)", series, years, func(c Cell) float64 { return c.PassA }),
		passChart("Pass rate % (Part B)", series, years, func(c Cell) float64 { return c.PassB }),
		passChart("Pass rate % (all parts)", series, years, func(c Cell) float64 { return c.PassAll }),
		perfChart("TTLT percentiles (ms)", series, years,
			func(c Cell) *float64 { return c.TTLTp50 },
			func(c Cell) *float64 { return c.TTLTp90 }),
		perfChart("Execution percentiles (ms)", series, years,
			func(c Cell) *float64 { return c.ExecP50 },
			func(c Cell) *float64 { return c.ExecP90 }),
	)
	return page.Render(w)
}

// yearsAxis is the union of all years seen across series, ascending, so
// every chart shares one x axis even when models were run on different
// subsets.
func yearsAxis(series []Series) []int {
	seen := map[int]bool{}
	for _, s := range series {
		for _, c := range s.Cells {
			seen[c.Years] = true
		}
	}
	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

func newLine(title string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Years of experience"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "420px"}),
	)
	return line
}

func xLabels(years []int) []string {
	labels := make([]string, len(years))
	for i, y := range years {
		labels[i] = strconv.Itoa(y)
	}
	return labels
}

func passChart(title string, series []Series, years []int, pick func(Cell) float64) *charts.Line {
	line := newLine(title)
	line.SetXAxis(xLabels(years))
	for _, s := range series {
		byYear := cellsByYear(s)
		data := make([]opts.LineData, len(years))
		for i, y := range years {
			if c, ok := byYear[y]; ok {
				data[i] = opts.LineData{Value: pick(c) * 100}
			} else {
				data[i] = opts.LineData{Value: nil}
			}
		}
		line.AddSeries(s.ModelKey, data)
	}
	return line
}

func perfChart(title string, series []Series, years []int, p50, p90 func(Cell) *float64) *charts.Line {
	line := newLine(title)
	line.SetXAxis(xLabels(years))
	for _, s := range series {
		byYear := cellsByYear(s)
		line.AddSeries(s.ModelKey+" p50", perfData(byYear, years, p50))
		line.AddSeries(s.ModelKey+" p90", perfData(byYear, years, p90))
	}
	return line
}

func perfData(byYear map[int]Cell, years []int, pick func(Cell) *float64) []opts.LineData {
	data := make([]opts.LineData, len(years))
	for i, y := range years {
		c, ok := byYear[y]
		if !ok || pick(c) == nil {
			data[i] = opts.LineData{Value: nil}
			continue
		}
		data[i] = opts.LineData{Value: *pick(c)}
	}
	return data
}

func cellsByYear(s Series) map[int]Cell {
	byYear := make(map[int]Cell, len(s.Cells))
	for _, c := range s.Cells {
		byYear[c.Years] = c
	}
	return byYear
}
