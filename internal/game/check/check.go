// Package check classifies evaluated rolls against target numbers and
// critical thresholds.
package check

import (
	"github.com/cory-johannsen/rollflow/internal/game/dice"
	"github.com/cory-johannsen/rollflow/internal/game/pool"
)

// DefaultMaxFace is the primary die size of the reference game (a d20).
const DefaultMaxFace = 20

// OutcomeResult is a target-number check.
//
// Invariant: Margin == Total - Target; Success == (Margin >= 0).
type OutcomeResult struct {
	Success    bool   `json:"success"`
	Total      int64  `json:"total"`
	Target     int64  `json:"target"`
	Margin     int64  `json:"margin"`
	NaturalDie uint32 `json:"natural_die"`
}

// CheckTarget compares total against target. The same rule serves attack vs
// armor, save vs DC, and skill vs DC.
func CheckTarget(total, target int64) OutcomeResult {
	margin := total - target
	return OutcomeResult{
		Success: margin >= 0,
		Total:   total,
		Target:  target,
		Margin:  margin,
	}
}

// NaturalDie returns the face of the first counted die with maxFace sides, or
// 0 when the roll has no such die. Discarded dice (dropped by keep or a losing
// advantage branch) are skipped.
func NaturalDie(faces []dice.Face, maxFace uint32) uint32 {
	for _, f := range faces {
		if f.Sides == maxFace && !f.Discarded {
			return f.Rolled
		}
	}
	return 0
}

// CheckRoll runs CheckTarget on roll and fills NaturalDie.
func CheckRoll(roll pool.EvaluatedRoll, target int64, maxFace uint32) OutcomeResult {
	out := CheckTarget(roll.Total, target)
	out.NaturalDie = NaturalDie(roll.Faces, maxFace)
	return out
}
