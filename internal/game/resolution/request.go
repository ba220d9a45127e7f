// Package resolution provides the standard workflow actions that turn a roll
// request into a parsed formula, dice pools, evaluated totals, and a
// classified outcome.
package resolution

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/cory-johannsen/rollflow/internal/game/check"
	"github.com/cory-johannsen/rollflow/internal/game/pool"
)

// Result keys written to workflow state.
const (
	KeyRequest      = "request"
	KeyParsed       = "parsed"
	KeyPool         = "pool"
	KeyRoll         = "roll"
	KeyCriticalRoll = "critical_roll"
	KeyOutcome      = "outcome"
	KeyCritical     = "critical"
	KeyDamage       = "damage"
	KeySummary      = "summary"
)

// Request describes one roll to resolve. Either Formula or Terms supplies the
// pool; Formula is parsed and split into terms carrying Category.
type Request struct {
	Kind     pool.RollKind `json:"kind" validate:"required,oneof=check damage"`
	Formula  string        `json:"formula,omitempty" validate:"required_without=Terms,excluded_with=Terms"`
	Terms    []pool.Term   `json:"terms,omitempty" validate:"required_without=Formula,dive"`
	Category string        `json:"category,omitempty"`

	// Target is the number a check must meet. Required by Resolve.
	Target *int64 `json:"target,omitempty"`

	Advantage         *bool      `json:"advantage,omitempty"`
	UseMinDieFaces    bool       `json:"use_min_die_faces,omitempty"`
	WantCriticalPool  bool       `json:"want_critical_pool,omitempty"`
	ExtraCriticalTerm *pool.Term `json:"extra_critical_term,omitempty"`
	DefaultCategory   string     `json:"default_category,omitempty"`

	MaxFace            uint32 `json:"max_face,omitempty" validate:"omitempty,min=1,max=10000"`
	CriticalThreshold  uint32 `json:"critical_threshold,omitempty" validate:"omitempty,min=1,max=10000"`
	ThresholdModifiers []int  `json:"threshold_modifiers,omitempty"`

	// Damage is rolled by RollDamage after a successful check. Its critical
	// pool is added when the check was critical.
	Damage *Request `json:"damage,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request's structural constraints.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if r.Damage != nil && r.Damage.Kind != pool.Damage {
		return errors.New("invalid request: damage request must have kind damage")
	}
	return nil
}

// Options returns the pool-building options for the request.
func (r Request) Options() pool.Options {
	return pool.Options{
		Advantage:         r.Advantage,
		UseMinDieFaces:    r.UseMinDieFaces,
		WantCriticalPool:  r.WantCriticalPool,
		ExtraCriticalTerm: r.ExtraCriticalTerm,
		DefaultCategory:   r.DefaultCategory,
	}
}

// CriticalOptions returns the critical-detection options for the request.
func (r Request) CriticalOptions(defaultMaxFace uint32) check.CriticalOptions {
	maxFace := r.MaxFace
	if maxFace == 0 {
		maxFace = defaultMaxFace
	}
	return check.CriticalOptions{
		MaxFace:            maxFace,
		Threshold:          r.CriticalThreshold,
		ThresholdModifiers: r.ThresholdModifiers,
	}
}

// Seed returns the workflow seed carrying req.
func Seed(req Request) map[string]any {
	return map[string]any{KeyRequest: req}
}

// DamageResult is the evaluated damage of a successful check.
type DamageResult struct {
	Pool     pool.DicePool      `json:"pool"`
	Roll     pool.EvaluatedRoll `json:"roll"`
	Critical bool               `json:"critical"`
}

// Summary is the condensed result written by Complete.
type Summary struct {
	Formula    string             `json:"formula,omitempty"`
	Total      int64              `json:"total"`
	ByCategory map[string]int64   `json:"by_category,omitempty"`
	Success    *bool              `json:"success,omitempty"`
	Margin     *int64             `json:"margin,omitempty"`
	NaturalDie uint32             `json:"natural_die,omitempty"`
	Critical   check.CriticalKind `json:"critical"`
	Damage     *int64             `json:"damage,omitempty"`
	DamageBy   map[string]int64   `json:"damage_by_category,omitempty"`
	Errors     int                `json:"errors"`
}
