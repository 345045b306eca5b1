package services

import (
	"testing"

	"github.com/mattn/go-runewidth"

	"brand-pipeline/models"
)

func sampleRecords() []models.Record {
	return []models.Record{
		{ItemID: "1", Brand: "nike", MainCategory: "Men Shoes"},
		{ItemID: "2", Brand: "nike", MainCategory: "Men Shoes"},
		{ItemID: "3", Brand: "nike", MainCategory: "Women Shoes"},
		{ItemID: "4", Brand: "adidas", MainCategory: "Men Shoes"},
		{ItemID: "5", Brand: NoBrand, MainCategory: "Women Bags"},
		{ItemID: "6", Brand: NoBrand},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	raw := sampleRecords()
	counts := CountBrands(raw, 2, 2)
	r := svc.Generate(raw, raw[:3], counts, 1)

	if r.RawRecords != 6 {
		t.Errorf("RawRecords: got %d, want 6", r.RawRecords)
	}
	if r.CleanedRecords != 3 {
		t.Errorf("CleanedRecords: got %d, want 3", r.CleanedRecords)
	}
	if r.DistinctBrands != 3 {
		t.Errorf("DistinctBrands: got %d, want 3", r.DistinctBrands)
	}
	if r.BrandsAboveCutoff != 2 {
		t.Errorf("BrandsAboveCutoff: got %d, want 2", r.BrandsAboveCutoff)
	}
}

func TestInsightNoBrandShare(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	raw := sampleRecords()
	r := svc.Generate(raw, nil, CountBrands(raw, 1, 10), 500)

	if r.NoBrandRecords != 2 {
		t.Errorf("NoBrandRecords: got %d, want 2", r.NoBrandRecords)
	}
	if r.NoBrandShare != 33.33 {
		t.Errorf("NoBrandShare: got %.2f, want 33.33", r.NoBrandShare)
	}
}

func TestInsightTopBrands(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	raw := sampleRecords()
	r := svc.Generate(raw, nil, CountBrands(raw, 1, 10), 500)

	if len(r.TopBrands) != 3 {
		t.Fatalf("TopBrands len: got %d, want 3", len(r.TopBrands))
	}
	if r.TopBrands[0].Brand != "nike" || r.TopBrands[0].Count != 3 {
		t.Errorf("TopBrands[0]: got %+v", r.TopBrands[0])
	}
}

func TestInsightCategoryGrouping(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	raw := sampleRecords()
	r := svc.Generate(raw, nil, CountBrands(raw, 1, 10), 500)

	if r.RecordsByCategory["Men Shoes"] != 3 {
		t.Errorf("Men Shoes count: got %d, want 3", r.RecordsByCategory["Men Shoes"])
	}
	if _, ok := r.RecordsByCategory[""]; ok {
		t.Errorf("records without a category should not be grouped")
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil, nil, FrequencyTable{}, 500)
	if r.RawRecords != 0 || r.NoBrandShare != 0 {
		t.Errorf("expected an empty report, got %+v", r)
	}
}

func TestFitColumn(t *testing.T) {
	tests := []string{"nike", "charles&keith", "优衣库优衣库优衣库优衣库优衣库优衣库优衣库"}
	for _, s := range tests {
		if got := runewidth.StringWidth(fitColumn(s, 20)); got != 20 {
			t.Errorf("fitColumn(%q) is %d cells wide, want 20", s, got)
		}
	}
}
