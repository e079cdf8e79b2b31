// Package tierconfig materializes the three built-in operating-point
// presets (A, B, C) into a TierBudget value record. It is pure: no I/O,
// no mutable package state, matching the teacher's preference for
// small deterministic building blocks underneath the stateful layers.
package tierconfig

import "fmt"

// ConfigError marks an unknown tier name, one of the four
// configuration failure modes that must fail fast at startup.
type ConfigError struct {
	Tier string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tierconfig: unknown tier %q", e.Tier)
}

// TierBudget is the immutable budget vector a tier materializes into.
// Every field here is read-only for the lifetime of the process; L3
// and L4 treat it as a value, never a pointer to mutable state.
type TierBudget struct {
	Tier string

	StationPriorities map[int]bool

	SearchIntervalMinutes int
	CalendarEnabled       bool
	CalendarHour          int // local hour-of-day, 0-23
	DetailEnabled         bool

	Concurrency int

	BaseDelaySeconds float64
	JitterLowSeconds float64
	JitterHighSeconds float64

	ProxyRequired bool

	RequestsPerIPBeforeRotate int
	MaxRequestsPerHour        int
	MaxRequestsPerDayPerIP    int
}

// AllowsPriority reports whether the tier crawls stations of the given
// seed priority (1, 2 or 3).
func (b TierBudget) AllowsPriority(priority int) bool {
	return b.StationPriorities[priority]
}

var budgets = map[string]TierBudget{
	"A": {
		Tier:                      "A",
		StationPriorities:         map[int]bool{1: true},
		SearchIntervalMinutes:     60,
		CalendarEnabled:           true,
		CalendarHour:              3,
		DetailEnabled:             false,
		Concurrency:               1,
		BaseDelaySeconds:          7,
		JitterLowSeconds:          2,
		JitterHighSeconds:         8,
		ProxyRequired:             false,
		RequestsPerIPBeforeRotate: 500,
		MaxRequestsPerHour:        500,
		MaxRequestsPerDayPerIP:    8000,
	},
	"B": {
		Tier:                      "B",
		StationPriorities:         map[int]bool{1: true, 2: true},
		SearchIntervalMinutes:     30,
		CalendarEnabled:           true,
		CalendarHour:              2,
		DetailEnabled:             true,
		Concurrency:               2,
		BaseDelaySeconds:          5,
		JitterLowSeconds:          1,
		JitterHighSeconds:         5,
		ProxyRequired:             true,
		RequestsPerIPBeforeRotate: 30,
		MaxRequestsPerHour:        80,
		MaxRequestsPerDayPerIP:    600,
	},
	"C": {
		Tier:                      "C",
		StationPriorities:         map[int]bool{1: true, 2: true, 3: true},
		SearchIntervalMinutes:     15,
		CalendarEnabled:           true,
		CalendarHour:              1,
		DetailEnabled:             true,
		Concurrency:               3,
		BaseDelaySeconds:          4,
		JitterLowSeconds:          1,
		JitterHighSeconds:         4,
		ProxyRequired:             true,
		RequestsPerIPBeforeRotate: 25,
		MaxRequestsPerHour:        100,
		MaxRequestsPerDayPerIP:    500,
	},
}

// BudgetFor returns the TierBudget for a named tier. An unknown tier
// name is a ConfigError, per spec §4.1.
func BudgetFor(tier string) (TierBudget, error) {
	b, ok := budgets[tier]
	if !ok {
		return TierBudget{}, &ConfigError{Tier: tier}
	}
	return b, nil
}
