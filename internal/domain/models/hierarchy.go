package models

import "fmt"

// Hierarchy maps every stock to its industry and sector.
// Industry and sector ids index UniqueIndustries and UniqueSectors.
type Hierarchy struct {
	NumSectors         int
	NumIndustries      int
	SectorIndustriesID []int // industry -> sector
	IndustriesID       []int // stock -> industry
	SectorsID          []int // stock -> sector
	UniqueSectors      []string
	UniqueIndustries   []string
}

// NumStocks returns the number of stocks covered by the hierarchy.
func (h *Hierarchy) NumStocks() int { return len(h.IndustriesID) }

// Validate checks that every id is in range and that a stock's sector
// matches the sector owning its industry.
func (h *Hierarchy) Validate() error {
	if h == nil {
		return fmt.Errorf("hierarchy is nil")
	}
	if h.NumSectors <= 0 || h.NumIndustries <= 0 {
		return fmt.Errorf("hierarchy needs at least one sector and one industry, got %d and %d", h.NumSectors, h.NumIndustries)
	}
	if len(h.SectorIndustriesID) != h.NumIndustries {
		return fmt.Errorf("sector_industries_id has %d entries, want %d", len(h.SectorIndustriesID), h.NumIndustries)
	}
	if len(h.SectorsID) != len(h.IndustriesID) {
		return fmt.Errorf("sectors_id has %d entries, industries_id has %d", len(h.SectorsID), len(h.IndustriesID))
	}
	for j, s := range h.SectorIndustriesID {
		if s < 0 || s >= h.NumSectors {
			return fmt.Errorf("industry %d maps to sector %d out of range", j, s)
		}
	}
	for i, ind := range h.IndustriesID {
		if ind < 0 || ind >= h.NumIndustries {
			return fmt.Errorf("stock %d maps to industry %d out of range", i, ind)
		}
		if h.SectorIndustriesID[ind] != h.SectorsID[i] {
			return fmt.Errorf("stock %d: sector %d differs from sector %d of industry %d", i, h.SectorsID[i], h.SectorIndustriesID[ind], ind)
		}
	}
	return nil
}
