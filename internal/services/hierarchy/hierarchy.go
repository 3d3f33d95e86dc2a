// Package hierarchy turns raw sector and industry assignments into the
// integer taxonomy the trend model works on.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"Volatile/internal/domain/models"
)

const (
	// MissingSector is recorded for symbols without a sector.
	MissingSector = "NA"
	// missingIndustryPrefix is joined with the sector of a symbol without
	// an industry, so unavailable industries never span two sectors.
	missingIndustryPrefix = "NA_"
)

// Extract builds the hierarchy of symbols from their sector and industry
// names. Names are sorted so ids are deterministic.
func Extract(symbols []string, sectors, industries map[string]string) (*models.Hierarchy, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols")
	}

	stockSectors := make([]string, len(symbols))
	stockIndustries := make([]string, len(symbols))
	industrySector := make(map[string]string)
	for i, sym := range symbols {
		sec := strings.TrimSpace(sectors[sym])
		if sec == "" {
			sec = MissingSector
		}
		ind := strings.TrimSpace(industries[sym])
		if ind == "" {
			ind = missingIndustryPrefix + sec
		}
		if prev, ok := industrySector[ind]; ok && prev != sec {
			return nil, fmt.Errorf("industry %q of %s belongs to sector %q and %q", ind, sym, prev, sec)
		}
		industrySector[ind] = sec
		stockSectors[i] = sec
		stockIndustries[i] = ind
	}

	uniqueSectors := unique(stockSectors)
	uniqueIndustries := unique(stockIndustries)
	sectorID := index(uniqueSectors)
	industryID := index(uniqueIndustries)

	h := &models.Hierarchy{
		NumSectors:         len(uniqueSectors),
		NumIndustries:      len(uniqueIndustries),
		SectorIndustriesID: make([]int, len(uniqueIndustries)),
		IndustriesID:       make([]int, len(symbols)),
		SectorsID:          make([]int, len(symbols)),
		UniqueSectors:      uniqueSectors,
		UniqueIndustries:   uniqueIndustries,
	}
	for j, ind := range uniqueIndustries {
		h.SectorIndustriesID[j] = sectorID[industrySector[ind]]
	}
	for i := range symbols {
		h.IndustriesID[i] = industryID[stockIndustries[i]]
		h.SectorsID[i] = sectorID[stockSectors[i]]
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// IsAvailable reports whether name is a real sector or industry rather
// than a missing-data placeholder.
func IsAvailable(name string) bool { return !strings.HasPrefix(name, MissingSector) }

// DisplayName returns name, or "Not Available" for placeholders.
func DisplayName(name string) string {
	if !IsAvailable(name) {
		return models.NotAvailable
	}
	return name
}

// Members returns the stock indices belonging to each group id.
func Members(ids []int, groups int) [][]int {
	out := make([][]int, groups)
	for i, g := range ids {
		out[g] = append(out[g], i)
	}
	return out
}

func unique(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func index(names []string) map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[n] = i
	}
	return m
}
