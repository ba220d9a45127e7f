package dice

import (
	"encoding/json"
	"fmt"
)

// Bounds for a single dice group.
const (
	MinQuantity = 1
	MaxQuantity = 1000
	MinSides    = 1
	MaxSides    = 10000
)

// KeepKind selects which dice a keep modifier retains.
type KeepKind int

const (
	KeepHighest KeepKind = iota
	KeepLowest
)

// String returns "kh" or "kl".
func (k KeepKind) String() string {
	if k == KeepLowest {
		return "kl"
	}
	return "kh"
}

// Keep is a keep-highest/keep-lowest modifier on a dice group.
type Keep struct {
	Kind  KeepKind `json:"kind"`
	Count uint32   `json:"count"`
}

// DiceGroup is a term such as "2d8kh1".
//
// Invariant after a successful parse: Quantity in [1, 1000]; Sides in [1, 10000];
// Keep.Count <= Quantity; RerollThreshold < Sides; MinFace <= Sides.
type DiceGroup struct {
	Quantity uint32 `json:"quantity"`
	Sides    uint32 `json:"sides"`
	Keep     *Keep  `json:"keep,omitempty"`
	// RerollThreshold rerolls once any die showing <= the threshold. Zero means none.
	RerollThreshold uint32 `json:"reroll_threshold,omitempty"`
	// MinFace is the per-die minimum counted face. Zero means none.
	MinFace  uint32 `json:"min_face,omitempty"`
	Negative bool   `json:"negative,omitempty"`
	Raw      string `json:"raw"`
}

// FlatModifier is a constant added to a roll total.
type FlatModifier struct {
	Value int64  `json:"value"`
	Raw   string `json:"raw"`
}

// TermKind tags a FormulaTerm.
type TermKind string

const (
	TermDice TermKind = "dice"
	TermFlat TermKind = "flat"
)

// FormulaTerm is a tagged union: exactly one of Dice or Flat is set, matching Kind.
type FormulaTerm struct {
	Kind TermKind      `json:"kind"`
	Dice *DiceGroup    `json:"dice,omitempty"`
	Flat *FlatModifier `json:"flat,omitempty"`
}

// DiceTerm wraps g in a FormulaTerm.
func DiceTerm(g DiceGroup) FormulaTerm { return FormulaTerm{Kind: TermDice, Dice: &g} }

// FlatTerm wraps m in a FormulaTerm.
func FlatTerm(m FlatModifier) FormulaTerm { return FormulaTerm{Kind: TermFlat, Flat: &m} }

// Raw returns the source fragment of the term.
func (t FormulaTerm) Raw() string {
	switch t.Kind {
	case TermDice:
		return t.Dice.Raw
	case TermFlat:
		return t.Flat.Raw
	}
	return ""
}

func (t FormulaTerm) clone() FormulaTerm {
	out := FormulaTerm{Kind: t.Kind}
	if t.Dice != nil {
		g := *t.Dice
		if g.Keep != nil {
			k := *g.Keep
			g.Keep = &k
		}
		out.Dice = &g
	}
	if t.Flat != nil {
		f := *t.Flat
		out.Flat = &f
	}
	return out
}

// Complexity is a coarse cost class for a formula. Higher values are worse.
type Complexity int

const (
	Simple Complexity = iota
	Moderate
	Complex
)

// String returns the lower-case complexity name.
func (c Complexity) String() string {
	switch c {
	case Moderate:
		return "moderate"
	case Complex:
		return "complex"
	default:
		return "simple"
	}
}

// MarshalJSON encodes the complexity by name.
func (c Complexity) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a complexity name.
func (c *Complexity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "simple":
		*c = Simple
	case "moderate":
		*c = Moderate
	case "complex":
		*c = Complex
	default:
		return fmt.Errorf("dice: unknown complexity %q", s)
	}
	return nil
}

// ParsedFormula is the result of Parse.
//
// Invariant: Valid == (Error == ""); a valid formula has at least one term.
type ParsedFormula struct {
	Original   string        `json:"original"`
	Terms      []FormulaTerm `json:"terms"`
	Complexity Complexity    `json:"complexity"`
	Valid      bool          `json:"valid"`
	Error      string        `json:"error,omitempty"`
}

func (p ParsedFormula) clone() ParsedFormula {
	out := p
	if p.Terms == nil {
		return out
	}
	out.Terms = make([]FormulaTerm, len(p.Terms))
	for i, t := range p.Terms {
		out.Terms[i] = t.clone()
	}
	return out
}
