// Package tier classifies task difficulty and operator experience onto one
// ordered scale: BEGINNER < EASY < MEDIUM < HARD < EXPERT.
//
// Tasks never classify as BEGINNER; operators use the whole scale.
package tier

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Level is a position on the ordered tier scale.
type Level int

// Tier levels in ascending order.
const (
	Beginner Level = iota
	Easy
	Medium
	Hard
	Expert
)

var names = [...]string{"BEGINNER", "EASY", "MEDIUM", "HARD", "EXPERT"} //nolint:gochecknoglobals // name table

// String returns the upper-case tier name.
func (l Level) String() string {
	if l < Beginner || l > Expert {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return names[l]
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	if l < Beginner || l > Expert {
		return nil, fmt.Errorf("unknown tier level %d", int(l))
	}
	return []byte(names[l]), nil
}

// UnmarshalText decodes a tier name (case-insensitive).
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Parse converts a tier name into a Level.
func Parse(s string) (Level, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range names {
		if n == want {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// Budget thresholds of the difficulty table.
var (
	easyBudgetLimit   = decimal.NewFromInt(50)  //nolint:gochecknoglobals // policy constant
	mediumBudgetLimit = decimal.NewFromInt(150) //nolint:gochecknoglobals // policy constant
	hardBudgetLimit   = decimal.NewFromInt(300) //nolint:gochecknoglobals // policy constant
)

// Classify maps a task's budget and required-skill count to a difficulty.
// Rules are ordered and the first match wins. The HARD rule is an OR:
// any task needing at most five skills is at most HARD whatever its budget.
func Classify(budget decimal.Decimal, skills int) Level {
	switch {
	case budget.LessThan(easyBudgetLimit) && skills <= 1:
		return Easy
	case budget.LessThan(mediumBudgetLimit) && skills <= 3:
		return Medium
	case budget.LessThan(hardBudgetLimit) || skills <= 5:
		return Hard
	default:
		return Expert
	}
}

// ReputationFloor is the minimum operator reputation allowed to see a task of
// the given difficulty. Unknown levels have no floor.
func ReputationFloor(l Level) float64 {
	switch l {
	case Easy:
		return 0.0
	case Medium:
		return 3.0
	case Hard:
		return 3.5
	case Expert:
		return 4.0
	default:
		return 0.0
	}
}

// ForOperator derives an operator's tier from experience and reputation.
//
// The chain is ordered; an operator who fails a reputation gate falls
// through to the next rule and ends at EXPERT by default. For example 60
// completed tasks at reputation 2.0 is EXPERT.
func ForOperator(completed int, reputation float64) Level {
	switch {
	case completed == 0:
		return Beginner
	case completed < 10 && reputation >= 3.0:
		return Easy
	case completed < 25 && reputation >= 3.5:
		return Medium
	case completed < 50 && reputation >= 4.0:
		return Hard
	default:
		return Expert
	}
}

// StretchTarget returns the task difficulty that counts as a one-step stretch
// for an operator at level l. Beginners and experts have none: BEGINNER is not
// a task difficulty, so the first stretch step starts at EASY.
func StretchTarget(l Level) (Level, bool) {
	switch l {
	case Easy, Medium, Hard:
		return l + 1, true
	default:
		return 0, false
	}
}
