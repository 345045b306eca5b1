package services

import (
	"math"
	"sort"

	"brand-pipeline/models"
)

// Split partitions records by creation time: the oldest floor(N*ratio)
// records go to Train (ascending), the newest N-floor(N*ratio) to Test
// (descending). Equal timestamps are ordered by item id, which makes the
// order total, so the two selections never overlap and cover the input.
func Split(records []models.Record, ratio float64) models.Partition {
	n := len(records)
	nTrain := int(math.Floor(float64(n) * ratio))
	if nTrain < 0 {
		nTrain = 0
	}
	if nTrain > n {
		nTrain = n
	}
	nTest := n - nTrain

	asc := sortedByTime(records, false)
	desc := sortedByTime(records, true)

	return models.Partition{
		Train: asc[:nTrain:nTrain],
		Test:  desc[:nTest:nTest],
	}
}

func sortedByTime(records []models.Record, descending bool) []models.Record {
	out := make([]models.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if descending {
			a, b = b, a
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ItemID < b.ItemID
	})
	return out
}
