package trend

import (
	"errors"
	"fmt"
)

// ErrUnknownLevel is returned for a hierarchy level name that is not one of
// market, sector, industry or stock.
var ErrUnknownLevel = errors.New("unknown hierarchy level")

// Level is one tier of the market/sector/industry/stock hierarchy,
// ordered from coarsest to finest.
type Level int

const (
	Market Level = iota
	Sector
	Industry
	Stock
)

// NumLevels is the depth of the hierarchy.
const NumLevels = 4

var levelNames = [NumLevels]string{"market", "sector", "industry", "stock"}

// Levels lists all levels from coarsest to finest.
func Levels() []Level { return []Level{Market, Sector, Industry, Stock} }

func (l Level) String() string {
	if !l.Valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// Valid reports whether l is one of the four hierarchy levels.
func (l Level) Valid() bool { return l >= Market && l <= Stock }

// ParseLevel maps a level name to its Level.
func ParseLevel(name string) (Level, error) {
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q: available levels are %v", ErrUnknownLevel, name, levelNames)
}

// priorScale holds the prior standard deviation multipliers of a level:
// the φ scale is further multiplied elementwise by the order scale.
type priorScale struct {
	phi float64
	psi float64
}

var priorScales = [NumLevels]priorScale{
	Market:   {phi: 4, psi: 4},
	Sector:   {phi: 2, psi: 2},
	Industry: {phi: 1, psi: 1},
	Stock:    {phi: 0.5, psi: 0.5},
}
