// Package dice provides formula parsing, the Randomizer contract, and the
// concrete Roller that evaluates pool fragments against a randomness Source.
package dice

import (
	"context"
	"fmt"
	"strings"
)

// Face is one physical die result.
type Face struct {
	Sides  uint32 `json:"sides"`
	Rolled uint32 `json:"rolled"`
	// Discarded is true for dice that were rolled but do not count toward the
	// total: dropped by a keep modifier or belonging to a losing max/min branch.
	Discarded bool `json:"discarded,omitempty"`
}

// RollOutcome holds the full audit trail for one evaluated formula fragment.
//
// Postcondition: Total equals the sum of all non-discarded dice plus flat values,
// with subtraction applied where the fragment subtracts.
type RollOutcome struct {
	Formula string `json:"formula"`
	Total   int64  `json:"total"`
	Dice    []Face `json:"dice"`
}

// String returns a human-readable audit string in the format:
//
//	"2d6+3 → [4 5] = 12"
//
// Discarded dice are shown with a trailing '*'.
//
// Precondition: r.Formula is non-empty.
func (r RollOutcome) String() string {
	if r.Formula == "" {
		panic("dice: RollOutcome.String() precondition violated: Formula must be non-empty")
	}
	parts := make([]string, len(r.Dice))
	for i, f := range r.Dice {
		parts[i] = fmt.Sprintf("%d", f.Rolled)
		if f.Discarded {
			parts[i] += "*"
		}
	}
	return fmt.Sprintf("%s → [%s] = %d", r.Formula, strings.Join(parts, " "), r.Total)
}

// Source is the randomness provider for dice rolls.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Randomizer evaluates one formula fragment into per-die faces and a total.
// Each call produces fresh randomness.
type Randomizer interface {
	Evaluate(ctx context.Context, formula string) (RollOutcome, error)
}
