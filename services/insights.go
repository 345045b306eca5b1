package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"brand-pipeline/models"
	"brand-pipeline/utils"
)

const topBrandsShown = 10

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger.With("insights")}
}

// Generate summarises both generations of a run.
func (s *InsightService) Generate(raw, cleaned []models.Record, counts FrequencyTable, threshold int) *models.InsightReport {
	report := &models.InsightReport{
		RecordsByCategory: make(map[string]int),
	}

	if len(raw) == 0 {
		return report
	}

	report.RawRecords = len(raw)
	report.CleanedRecords = len(cleaned)
	report.DistinctBrands = len(counts)
	report.BrandsAboveCutoff = counts.Above(threshold)
	report.TopBrands = counts.Top(topBrandsShown)

	for _, r := range raw {
		if r.Brand == NoBrand {
			report.NoBrandRecords++
		}
		if r.MainCategory != "" {
			report.RecordsByCategory[r.MainCategory]++
		}
	}
	report.NoBrandShare = round2(100 * float64(report.NoBrandRecords) / float64(report.RawRecords))

	s.logger.Debug("%d brands over %d categories", report.DistinctBrands, len(report.RecordsByCategory))

	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 BRAND DATASET INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Raw generation records     : \033[1m%d\033[0m\n", r.RawRecords)
	fmt.Printf("  Cleaned generation records : \033[1m%d\033[0m\n", r.CleanedRecords)
	fmt.Printf("  Distinct brands            : \033[1m%d\033[0m\n", r.DistinctBrands)
	fmt.Printf("  Brands above cutoff        : \033[1m%d\033[0m\n", r.BrandsAboveCutoff)
	fmt.Printf("  no-brand listings          : \033[1m%d\033[0m (%.2f%%)\n", r.NoBrandRecords, r.NoBrandShare)
	fmt.Println()

	fmt.Printf("\033[1;33m  Top %d Brands\033[0m\n", topBrandsShown)
	fmt.Printf("  %s\n", thin)
	if len(r.TopBrands) == 0 {
		fmt.Printf("  No brands found\n")
	} else {
		for i, b := range r.TopBrands {
			fmt.Printf("  \033[1m%2d.\033[0m %s \033[1;32m%d\033[0m\n", i+1, fitColumn(b.Brand, 38), b.Count)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Listings by Main Category\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.RecordsByCategory) == 0 {
		fmt.Printf("  No category data\n")
	} else {
		type catCount struct {
			cat   string
			count int
		}
		var cats []catCount
		for cat, cnt := range r.RecordsByCategory {
			cats = append(cats, catCount{cat, cnt})
		}
		sort.Slice(cats, func(i, j int) bool {
			if cats[i].count != cats[j].count {
				return cats[i].count > cats[j].count
			}
			return cats[i].cat < cats[j].cat
		})
		for _, cc := range cats {
			fmt.Printf("  %s %d\n", fitColumn(cc.cat, 30), cc.count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

// fitColumn truncates or pads s to exactly width terminal cells; CJK brand
// names take two cells per rune.
func fitColumn(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "..."), width)
}
