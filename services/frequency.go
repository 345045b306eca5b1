package services

import (
	"sort"

	"brand-pipeline/models"
	"brand-pipeline/utils"
)

// FrequencyTable maps a lowercased brand to the number of records bearing it.
// It is built once per stage and only read afterwards.
type FrequencyTable map[string]int

// CountBrands counts records per brand: every chunk is counted on its own
// worker, then the partial tables are merged.
func CountBrands(records []models.Record, workers, chunkSize int) FrequencyTable {
	return utils.ParallelReduce(records, workers, chunkSize,
		func(chunk []models.Record) FrequencyTable {
			partial := make(FrequencyTable)
			for _, r := range chunk {
				partial[lower(r.Brand)]++
			}
			return partial
		},
		func(acc, partial FrequencyTable) FrequencyTable {
			for brand, n := range partial {
				acc[brand] += n
			}
			return acc
		},
		make(FrequencyTable),
	)
}

// Count returns the frequency of brand, matched case-insensitively.
func (t FrequencyTable) Count(brand string) int {
	return t[lower(brand)]
}

// Annotate returns copies of records carrying their brand's total count.
func (t FrequencyTable) Annotate(records []models.Record) []models.Record {
	out := make([]models.Record, len(records))
	for i, r := range records {
		r.BrandCount = t.Count(r.Brand)
		out[i] = r
	}
	return out
}

// Above returns how many brands have a count strictly greater than threshold.
func (t FrequencyTable) Above(threshold int) int {
	n := 0
	for _, c := range t {
		if c > threshold {
			n++
		}
	}
	return n
}

// Top returns the n most frequent brands, ties broken alphabetically.
// n <= 0 returns every brand.
func (t FrequencyTable) Top(n int) []models.BrandCount {
	all := make([]models.BrandCount, 0, len(t))
	for brand, c := range t {
		all = append(all, models.BrandCount{Brand: brand, Count: c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Brand < all[j].Brand
	})
	if n > 0 && len(all) > n {
		all = all[:n]
	}
	return all
}

// FilterByFrequency keeps annotated records whose BrandCount exceeds threshold.
func FilterByFrequency(records []models.Record, threshold int) []models.Record {
	out := make([]models.Record, 0, len(records))
	for _, r := range records {
		if r.BrandCount > threshold {
			out = append(out, r)
		}
	}
	return out
}
