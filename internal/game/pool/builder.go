// Package pool builds the concrete dice pools for a roll and evaluates them
// through a dice.Randomizer.
package pool

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cory-johannsen/rollflow/internal/game/dice"
)

// RollKind selects the pool-building rules.
type RollKind string

const (
	// Damage rolls may derive a critical pool.
	Damage RollKind = "damage"
	// Check rolls never produce a critical pool.
	Check RollKind = "check"
)

// Term is one formula fragment in a pool. Category is a free-form aggregation
// tag, e.g. a damage type; the empty string means uncategorized.
type Term struct {
	Formula              string `json:"formula" validate:"required"`
	Category             string `json:"category,omitempty"`
	CountsTowardCritical bool   `json:"counts_toward_critical,omitempty"`
}

// DicePool is the base pool and, when requested, the critical pool.
//
// Invariant: Critical is empty unless Options.WantCriticalPool was set, and
// every Critical term derives from a source term that counts toward critical.
type DicePool struct {
	Base     []Term `json:"base"`
	Critical []Term `json:"critical,omitempty"`
}

// Options controls Build.
type Options struct {
	// Advantage is nil for a normal roll, true for advantage, false for disadvantage.
	Advantage *bool `json:"advantage,omitempty"`
	// UseMinDieFaces raises each die's minimum face to the MinimumFaces table value.
	UseMinDieFaces bool `json:"use_min_die_faces,omitempty"`
	// MinimumFaces overrides DefaultMinimumFaces when non-nil.
	MinimumFaces     map[uint32]uint32 `json:"minimum_faces,omitempty"`
	WantCriticalPool bool              `json:"want_critical_pool,omitempty"`
	// ExtraCriticalTerm is appended to the critical pool when WantCriticalPool is set.
	ExtraCriticalTerm *Term `json:"extra_critical_term,omitempty"`
	// DefaultCategory is assigned to uncategorized damage terms.
	DefaultCategory string `json:"default_category,omitempty"`
}

// Advantage and Disadvantage return pointers suitable for Options.Advantage.
func Advantage() *bool    { v := true; return &v }
func Disadvantage() *bool { v := false; return &v }

// DefaultMinimumFaces is the conventional per-die minimum for common die sizes.
var DefaultMinimumFaces = map[uint32]uint32{4: 2, 6: 2, 8: 3, 10: 4, 12: 5, 20: 8}

// Build turns raw terms into a DicePool. An empty input yields an empty pool.
//
// Transform order is fixed: pool assembly, then the minimum-face rewrite, then
// the advantage wrap. Reversing the last two changes results.
func Build(terms []Term, kind RollKind, opts Options) DicePool {
	var p DicePool
	for _, t := range terms {
		if kind == Damage && t.Category == "" {
			t.Category = opts.DefaultCategory
		}
		p.Base = append(p.Base, t)
		if kind == Damage && opts.WantCriticalPool && t.CountsTowardCritical {
			p.Critical = append(p.Critical, t)
		}
	}
	if kind == Damage && opts.WantCriticalPool && opts.ExtraCriticalTerm != nil {
		extra := *opts.ExtraCriticalTerm
		if extra.Category == "" {
			extra.Category = opts.DefaultCategory
		}
		extra.CountsTowardCritical = true
		p.Critical = append(p.Critical, extra)
	}

	if opts.UseMinDieFaces {
		table := opts.MinimumFaces
		if table == nil {
			table = DefaultMinimumFaces
		}
		rewrite(p.Base, func(f string) string { return ApplyMinimumFaces(f, table) })
		rewrite(p.Critical, func(f string) string { return ApplyMinimumFaces(f, table) })
	}

	if opts.Advantage != nil {
		wrap(p.Base, kind, *opts.Advantage)
		wrap(p.Critical, kind, *opts.Advantage)
	}
	return p
}

func rewrite(terms []Term, fn func(string) string) {
	for i := range terms {
		terms[i].Formula = fn(terms[i].Formula)
	}
}

// wrap applies the advantage transform. Damage pools wrap only terms that count
// toward critical; check pools wrap only dice-bearing terms.
func wrap(terms []Term, kind RollKind, advantage bool) {
	for i := range terms {
		t := &terms[i]
		switch kind {
		case Damage:
			if !t.CountsTowardCritical {
				continue
			}
		case Check:
			if isNumeric(t.Formula) {
				continue
			}
		}
		t.Formula = WrapAdvantage(t.Formula, advantage)
	}
}

// WrapAdvantage returns "max(F,F)" for advantage or "min(F,F)" for disadvantage.
func WrapAdvantage(formula string, advantage bool) string {
	fn := "min"
	if advantage {
		fn = "max"
	}
	return fn + "(" + formula + "," + formula + ")"
}

var numericPattern = regexp.MustCompile(`^\s*[+-]?\s*\d+\s*$`)

func isNumeric(formula string) bool {
	return strings.TrimSpace(formula) == "" || numericPattern.MatchString(formula)
}

// dicePattern matches a dice group with its trailing modifiers.
var dicePattern = regexp.MustCompile(`(?i)\b(\d*)d(\d+)((?:kh\d+|kl\d+|k\d+|r\d+|min\d+)*)`)

var minModifier = regexp.MustCompile(`(?i)min(\d+)`)

// ApplyMinimumFaces rewrites every dice group in formula so its minimum face is
// max(existing, table[sides]). Die sizes absent from table are left unchanged.
func ApplyMinimumFaces(formula string, table map[uint32]uint32) string {
	return dicePattern.ReplaceAllStringFunc(formula, func(group string) string {
		m := dicePattern.FindStringSubmatch(group)
		sides, err := strconv.ParseUint(m[2], 10, 32)
		if err != nil {
			return group
		}
		floor, ok := table[uint32(sides)]
		if !ok {
			return group
		}
		head, mods := group[:len(group)-len(m[3])], m[3]
		if loc := minModifier.FindStringSubmatchIndex(mods); loc != nil {
			existing, err := strconv.ParseUint(mods[loc[2]:loc[3]], 10, 32)
			if err != nil || uint32(existing) >= floor {
				return group
			}
			return head + mods[:loc[2]] + strconv.FormatUint(uint64(floor), 10) + mods[loc[3]:]
		}
		return head + mods + "min" + strconv.FormatUint(uint64(floor), 10)
	})
}

// TermsFromFormula converts a parsed formula into pool terms. Dice groups count
// toward critical; flat modifiers do not. Invalid formulas yield no terms.
func TermsFromFormula(pf dice.ParsedFormula, category string) []Term {
	if !pf.Valid {
		return nil
	}
	out := make([]Term, 0, len(pf.Terms))
	for _, t := range pf.Terms {
		switch t.Kind {
		case dice.TermDice:
			f := t.Dice.Raw
			if t.Dice.Negative {
				f = "-" + f
			}
			out = append(out, Term{Formula: f, Category: category, CountsTowardCritical: true})
		case dice.TermFlat:
			out = append(out, Term{Formula: strconv.FormatInt(t.Flat.Value, 10), Category: category})
		}
	}
	return out
}
