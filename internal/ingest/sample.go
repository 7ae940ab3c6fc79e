package ingest

import (
	"math/rand"

	"github.com/Nav1203/plan-parser/internal/classify"
)

// SampleColumns builds the per-column classification input: up to size
// distinct non-null values per column, shuffled, padded with empty strings
// to exactly size. The random source is injected so tests can seed it; a
// nil rng skips shuffling.
func SampleColumns(t *Table, size int, rng *rand.Rand) []classify.ColumnSample {
	if size < 1 {
		size = 1
	}

	samples := make([]classify.ColumnSample, 0, t.NumCols())
	for idx, name := range t.Columns {
		seen := make(map[string]bool)
		var distinct []string
		for _, c := range t.Column(idx) {
			if c.IsNull() {
				continue
			}
			s := c.String()
			if seen[s] {
				continue
			}
			seen[s] = true
			distinct = append(distinct, s)
		}

		if rng != nil {
			rng.Shuffle(len(distinct), func(i, j int) {
				distinct[i], distinct[j] = distinct[j], distinct[i]
			})
		}
		if len(distinct) > size {
			distinct = distinct[:size]
		}
		for len(distinct) < size {
			distinct = append(distinct, "")
		}

		samples = append(samples, classify.ColumnSample{
			ColumnName:   name,
			SampleValues: distinct,
		})
	}
	return samples
}
