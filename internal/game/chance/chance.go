// Package chance provides the randomness abstraction and the tiered,
// level-indexed probability tables behind damage, block, and experience
// draws.
package chance

import "fmt"

// Source is the randomness provider for probability draws.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int

	// Float64 returns a random float64 in [0, 1).
	Float64() float64
}

// Outcome is one weighted candidate of a tier: an inclusive integer range
// [Min, Max] selected with probability proportional to Weight.
type Outcome struct {
	Min    int     `yaml:"min"`
	Max    int     `yaml:"max"`
	Weight float64 `yaml:"weight"`
}

// Tier is one level bracket of a Table. Either Fixed is set and the tier
// always yields that value, or Outcomes lists the weighted candidates.
type Tier struct {
	Level    int       `yaml:"level"`
	Fixed    *int      `yaml:"fixed,omitempty"`
	Outcomes []Outcome `yaml:"outcomes,omitempty"`
}

// Table is a level-indexed probability table. A draw selects the tier
// whose level is the largest not exceeding the subject's level, then
// samples that tier.
type Table struct {
	ID    string `yaml:"id"`
	Tiers []Tier `yaml:"tiers"`
}

// NewTable builds a validated table.
//
// Postcondition: the returned table passes Validate, or err is non-nil.
func NewTable(id string, tiers []Tier) (*Table, error) {
	t := &Table{ID: id, Tiers: tiers}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks structural soundness: a non-empty ID, at least one
// tier, unique positive tier levels, and for each tier either a fixed
// value or a non-empty outcome list with sane ranges and weights.
func (t *Table) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("table has no id")
	}
	if len(t.Tiers) == 0 {
		return fmt.Errorf("table %s has no tiers", t.ID)
	}
	seen := make(map[int]bool, len(t.Tiers))
	for _, tier := range t.Tiers {
		if tier.Level < 1 {
			return fmt.Errorf("table %s: tier level %d must be >= 1", t.ID, tier.Level)
		}
		if seen[tier.Level] {
			return fmt.Errorf("table %s: duplicate tier level %d", t.ID, tier.Level)
		}
		seen[tier.Level] = true
		if tier.Fixed != nil {
			if len(tier.Outcomes) > 0 {
				return fmt.Errorf("table %s: tier %d defines both fixed and outcomes", t.ID, tier.Level)
			}
			if *tier.Fixed < 0 {
				return fmt.Errorf("table %s: tier %d fixed value %d must be >= 0", t.ID, tier.Level, *tier.Fixed)
			}
			continue
		}
		if len(tier.Outcomes) == 0 {
			return fmt.Errorf("table %s: tier %d defines neither fixed nor outcomes", t.ID, tier.Level)
		}
		for i, o := range tier.Outcomes {
			if o.Min < 0 {
				return fmt.Errorf("table %s: tier %d outcome %d min %d must be >= 0", t.ID, tier.Level, i, o.Min)
			}
			if o.Max < o.Min {
				return fmt.Errorf("table %s: tier %d outcome %d range [%d, %d] is inverted", t.ID, tier.Level, i, o.Min, o.Max)
			}
			if o.Weight <= 0 {
				return fmt.Errorf("table %s: tier %d outcome %d weight %v must be > 0", t.ID, tier.Level, i, o.Weight)
			}
		}
	}
	return nil
}

// Resolve draws one value for level.
//
// Tier selection follows the largest-level-not-exceeding rule; a level
// below every tier falls back to the lowest tier. A fixed tier returns
// its value without consuming randomness. Otherwise one Float64 draw
// picks a candidate with probability proportional to its weight, where a
// weight sum below 1 backs an implicit (0, 0) candidate with the
// shortfall, and the result is uniform within the chosen inclusive range
// (one Intn draw when the range spans more than a single value).
//
// Precondition: src is non-nil and the table passed Validate.
func (t *Table) Resolve(level int, src Source) int {
	tier := t.tierFor(level)
	if tier.Fixed != nil {
		return *tier.Fixed
	}
	var total float64
	for _, o := range tier.Outcomes {
		total += o.Weight
	}
	scale := total
	if scale < 1 {
		scale = 1
	}
	u := src.Float64() * scale
	for _, o := range tier.Outcomes {
		if u < o.Weight {
			return uniformIn(o.Min, o.Max, src)
		}
		u -= o.Weight
	}
	if total < 1 {
		// implicit zero-outcome bucket
		return 0
	}
	// float round-off: land on the last candidate
	last := tier.Outcomes[len(tier.Outcomes)-1]
	return uniformIn(last.Min, last.Max, src)
}

// tierFor returns the tier with the largest level <= level, or the
// lowest tier when level is below every configured one.
func (t *Table) tierFor(level int) *Tier {
	lowest := &t.Tiers[0]
	var pick *Tier
	for i := range t.Tiers {
		tier := &t.Tiers[i]
		if tier.Level < lowest.Level {
			lowest = tier
		}
		if tier.Level <= level && (pick == nil || tier.Level > pick.Level) {
			pick = tier
		}
	}
	if pick == nil {
		return lowest
	}
	return pick
}

func uniformIn(min, max int, src Source) int {
	if max <= min {
		return min
	}
	return min + src.Intn(max-min+1)
}
