package check

import (
	"encoding/json"
	"fmt"

	"github.com/cory-johannsen/rollflow/internal/game/pool"
)

// CriticalKind is why a roll is (or is not) critical.
type CriticalKind int

const (
	NotCritical CriticalKind = iota
	NaturalMax
	ThresholdMet
)

// String returns a human-readable kind label.
func (k CriticalKind) String() string {
	switch k {
	case NaturalMax:
		return "natural_max"
	case ThresholdMet:
		return "threshold_met"
	default:
		return "none"
	}
}

// MarshalJSON encodes the kind by name.
func (k CriticalKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

// UnmarshalJSON decodes a kind name.
func (k *CriticalKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "none":
		*k = NotCritical
	case "natural_max":
		*k = NaturalMax
	case "threshold_met":
		*k = ThresholdMet
	default:
		return fmt.Errorf("check: unknown critical kind %q", s)
	}
	return nil
}

// CriticalResult is the critical classification of a roll.
//
// Invariant: IsCritical == (Kind != NotCritical).
type CriticalResult struct {
	IsCritical bool         `json:"is_critical"`
	Kind       CriticalKind `json:"kind"`
	NaturalDie uint32       `json:"natural_die"`
	Threshold  uint32       `json:"threshold"`
}

// CriticalOptions configures critical detection.
type CriticalOptions struct {
	// MaxFace is the primary die size. Zero means DefaultMaxFace.
	MaxFace uint32 `json:"max_face,omitempty"`
	// Threshold is the base critical threshold. Zero means MaxFace.
	Threshold uint32 `json:"threshold,omitempty"`
	// ThresholdModifiers lower the threshold by their sum (negative values raise it).
	ThresholdModifiers []int `json:"threshold_modifiers,omitempty"`
}

// EffectiveMaxFace returns MaxFace or DefaultMaxFace.
func (o CriticalOptions) EffectiveMaxFace() uint32 {
	if o.MaxFace == 0 {
		return DefaultMaxFace
	}
	return o.MaxFace
}

// EffectiveThreshold applies the modifiers and clamps to [1, MaxFace].
func (o CriticalOptions) EffectiveThreshold() uint32 {
	maxFace := int64(o.EffectiveMaxFace())
	t := int64(o.Threshold)
	if t == 0 {
		t = maxFace
	}
	for _, m := range o.ThresholdModifiers {
		t -= int64(m)
	}
	if t < 1 {
		t = 1
	}
	if t > maxFace {
		t = maxFace
	}
	return uint32(t)
}

// ClassifyCritical classifies naturalDie. A natural maximum is critical
// unconditionally; otherwise the die must meet threshold and the check must
// have succeeded. A naturalDie of 0 (no primary die) is never critical.
//
// Postcondition: exactly one of NotCritical, NaturalMax, ThresholdMet.
func ClassifyCritical(naturalDie uint32, success bool, opts CriticalOptions) CriticalResult {
	maxFace := opts.EffectiveMaxFace()
	threshold := opts.EffectiveThreshold()
	res := CriticalResult{NaturalDie: naturalDie, Threshold: threshold}
	switch {
	case naturalDie == 0:
		res.Kind = NotCritical
	case naturalDie == maxFace:
		res.Kind = NaturalMax
	case naturalDie >= threshold && success:
		res.Kind = ThresholdMet
	default:
		res.Kind = NotCritical
	}
	res.IsCritical = res.Kind != NotCritical
	return res
}

// Resolution bundles both checks over one roll.
type Resolution struct {
	Outcome  OutcomeResult  `json:"outcome"`
	Critical CriticalResult `json:"critical"`
}

// Resolve runs the target-number check and critical classification over roll.
func Resolve(roll pool.EvaluatedRoll, target int64, opts CriticalOptions) Resolution {
	outcome := CheckRoll(roll, target, opts.EffectiveMaxFace())
	return Resolution{
		Outcome:  outcome,
		Critical: ClassifyCritical(outcome.NaturalDie, outcome.Success, opts),
	}
}
