package report

import (
	"sort"
	"strings"

	"github.com/expbench/expbench/internal/pricing"
	"github.com/expbench/expbench/internal/result"
)

// Cell is the aggregate for one (provider, model, years) group.
type Cell struct {
	Years   int     `json:"years"`
	N       int     `json:"n"`
	NPerf   int     `json:"n_perf"`
	PassA   float64 `json:"pass_a"`
	PassB   float64 `json:"pass_b"`
	PassAll float64 `json:"pass_all"`

	TTLTp50 *float64 `json:"ttlt_p50_ms"`
	TTLTp90 *float64 `json:"ttlt_p90_ms"`
	ExecP50 *float64 `json:"exec_p50_ms"`
	ExecP90 *float64 `json:"exec_p90_ms"`

	MeanCostUSD *float64 `json:"mean_cost_usd,omitempty"`
}

// Series is one model's cells across the years axis, ascending.
type Series struct {
	Provider string `json:"provider"`
	ModelKey string `json:"model_key"`
	Cells    []Cell `json:"cells"`
}

// Aggregate groups records by (provider, model_key, years) and reduces each
// group to pass rates and latency percentiles. Pass rates count explicit
// true values over all records in the group, so trials that never reached
// grading drag the rate down rather than vanishing. Latency percentiles
// only use trials where at least one part passed; a model that fails fast
// should not look fast. A nil pricing table skips cost columns.
func Aggregate(records []*result.TrialRecord, table *pricing.Table) []Series {
	type groupKey struct {
		provider string
		modelKey string
		years    int
	}
	groups := map[groupKey][]*result.TrialRecord{}
	for _, r := range records {
		k := groupKey{r.Provider, r.ModelKey, r.Years}
		groups[k] = append(groups[k], r)
	}

	type seriesKey struct {
		provider string
		modelKey string
	}
	cells := map[seriesKey][]Cell{}
	for k, items := range groups {
		n := len(items)
		var passA, passB, passAll, nPerf int
		var ttltVals, execVals []float64
		for _, it := range items {
			if isTrue(it.PassedA) {
				passA++
			}
			if isTrue(it.PassedB) {
				passB++
			}
			if isTrue(it.PassedAll) {
				passAll++
			}
			if isTrue(it.PassedA) || isTrue(it.PassedB) {
				nPerf++
				if it.TTLTMS != nil {
					ttltVals = append(ttltVals, *it.TTLTMS)
				}
				if it.ExecMS != nil {
					execVals = append(execVals, *it.ExecMS)
				}
			}
		}

		cell := Cell{
			Years:   k.years,
			N:       n,
			NPerf:   nPerf,
			PassA:   rate(passA, n),
			PassB:   rate(passB, n),
			PassAll: rate(passAll, n),
			TTLTp50: Percentile(ttltVals, 50),
			TTLTp90: Percentile(ttltVals, 90),
			ExecP50: Percentile(execVals, 50),
			ExecP90: Percentile(execVals, 90),
		}

		if table != nil {
			var costSum float64
			costN := 0
			for _, it := range items {
				u := it.UsageDerived
				if u == nil || u.InputTokens == nil || u.OutputTokens == nil {
					continue
				}
				c, ok := table.Cost(it.Provider, modelName(it), *u.InputTokens, *u.OutputTokens)
				if !ok {
					continue
				}
				costSum += c
				costN++
			}
			if costN > 0 {
				mean := costSum / float64(costN)
				cell.MeanCostUSD = &mean
			}
		}

		sk := seriesKey{k.provider, k.modelKey}
		cells[sk] = append(cells[sk], cell)
	}

	out := make([]Series, 0, len(cells))
	for sk, cs := range cells {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Years < cs[j].Years })
		out = append(out, Series{Provider: sk.provider, ModelKey: sk.modelKey, Cells: cs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ModelKey < out[j].ModelKey
	})
	return out
}

// Percentile interpolates linearly between order statistics. Nil means no
// samples.
func Percentile(values []float64, p float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if p <= 0 {
		return &sorted[0]
	}
	if p >= 100 {
		return &sorted[len(sorted)-1]
	}
	k := float64(len(sorted)-1) * p / 100.0
	f := int(k)
	c := f + 1
	if c > len(sorted)-1 {
		c = len(sorted) - 1
	}
	if f == c {
		return &sorted[f]
	}
	v := sorted[f]*(float64(c)-k) + sorted[c]*(k-float64(f))
	return &v
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func rate(count, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(count) / float64(n)
}

// modelName strips the provider prefix off a model spec, leaving the name
// pricing tables key on.
func modelName(r *result.TrialRecord) string {
	if _, rest, ok := strings.Cut(r.ModelSpec, ":"); ok {
		return rest
	}
	return r.ModelSpec
}
