package rollup

import (
	"sort"

	"github.com/streamcore/rollup/internal/window"
)

// mergeRanges sorts ranges by From and merges any that overlap or touch,
// preserving monotonic disjoint order. Empty input returns nil.
func mergeRanges[TS window.Integer](ranges []window.Range[TS]) []window.Range[TS] {
	if len(ranges) == 0 {
		return nil
	}

	sorted := append([]window.Range[TS](nil), ranges...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].From < sorted[j].From })

	merged := []window.Range[TS]{sorted[0]}

	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]

		touching := r.From <= last.To || r.From == last.To+1
		if touching {
			if r.To > last.To {
				last.To = r.To
			}

			continue
		}

		merged = append(merged, r)
	}

	return merged
}
