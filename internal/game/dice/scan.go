package dice

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

var (
	// ErrSyntax marks malformed formula text.
	ErrSyntax = errors.New("syntax error")
	// ErrRange marks a dice quantity, sides, or modifier count out of bounds.
	ErrRange = errors.New("out of range")
	// ErrUnknownFunction marks a call to a function other than max or min.
	ErrUnknownFunction = errors.New("unknown function")
)

// scanner is a byte cursor over normalized formula text.
type scanner struct {
	s   string
	pos int
}

func (sc *scanner) eof() bool { return sc.pos >= len(sc.s) }

func (sc *scanner) peek() byte {
	if sc.eof() {
		return 0
	}
	return sc.s[sc.pos]
}

func (sc *scanner) skipSpace() {
	for !sc.eof() && sc.s[sc.pos] == ' ' {
		sc.pos++
	}
}

// accept advances past lit if the remaining input starts with it.
func (sc *scanner) accept(lit string) bool {
	if len(sc.s)-sc.pos >= len(lit) && sc.s[sc.pos:sc.pos+len(lit)] == lit {
		sc.pos += len(lit)
		return true
	}
	return false
}

// number consumes a run of ASCII digits. Values that overflow uint64 are
// reported as math.MaxUint64 so that range validation rejects them.
func (sc *scanner) number() (uint64, bool) {
	start := sc.pos
	for !sc.eof() && isDigit(sc.s[sc.pos]) {
		sc.pos++
	}
	if sc.pos == start {
		return 0, false
	}
	v, err := strconv.ParseUint(sc.s[start:sc.pos], 10, 64)
	if err != nil {
		return math.MaxUint64, true
	}
	return v, true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// scanDiceGroup parses a dice group at the cursor. matched is false when the
// input at the cursor is not a dice group at all, in which case the cursor is
// left untouched. When matched is true and err is non-nil the group was
// recognizably a dice group but malformed or out of range.
func scanDiceGroup(sc *scanner) (g DiceGroup, matched bool, err error) {
	start := sc.pos
	quantity, hasQuantity := sc.number()
	if !hasQuantity {
		quantity = 1
	}
	if sc.peek() != 'd' {
		sc.pos = start
		return DiceGroup{}, false, nil
	}
	sc.pos++

	sides, ok := sc.number()
	if !ok {
		sc.pos = start
		if hasQuantity {
			return DiceGroup{}, true, fmt.Errorf("%w: missing die sides in %q", ErrSyntax, sc.s[start:])
		}
		return DiceGroup{}, false, nil
	}

	var (
		keep       *Keep
		keepCount  uint64
		reroll     uint64
		hasReroll  bool
		minFace    uint64
		hasMinFace bool
	)
	for {
		var (
			kind KeepKind
			name string
		)
		switch {
		case sc.accept("kh"):
			kind, name = KeepHighest, "kh"
		case sc.accept("kl"):
			kind, name = KeepLowest, "kl"
		case sc.accept("min"):
			name = "min"
		case sc.accept("k"):
			kind, name = KeepHighest, "k"
		case sc.accept("r"):
			name = "r"
		}
		if name == "" {
			break
		}
		v, ok := sc.number()
		if !ok {
			return DiceGroup{}, true, fmt.Errorf("%w: modifier %q requires a number in %q", ErrSyntax, name, sc.s[start:sc.pos])
		}
		switch name {
		case "min":
			if hasMinFace {
				return DiceGroup{}, true, fmt.Errorf("%w: duplicate min modifier in %q", ErrSyntax, sc.s[start:sc.pos])
			}
			minFace, hasMinFace = v, true
		case "r":
			if hasReroll {
				return DiceGroup{}, true, fmt.Errorf("%w: duplicate reroll modifier in %q", ErrSyntax, sc.s[start:sc.pos])
			}
			reroll, hasReroll = v, true
		default:
			if keep != nil {
				return DiceGroup{}, true, fmt.Errorf("%w: duplicate keep modifier in %q", ErrSyntax, sc.s[start:sc.pos])
			}
			keep = &Keep{Kind: kind}
			keepCount = v
		}
	}

	raw := sc.s[start:sc.pos]
	if err := validateGroup(raw, quantity, sides, keep != nil, keepCount, hasReroll, reroll, hasMinFace, minFace); err != nil {
		return DiceGroup{}, true, err
	}

	g = DiceGroup{
		Quantity:        uint32(quantity),
		Sides:           uint32(sides),
		RerollThreshold: uint32(reroll),
		MinFace:         uint32(minFace),
		Raw:             raw,
	}
	if keep != nil {
		keep.Count = uint32(keepCount)
		g.Keep = keep
	}
	return g, true, nil
}

func validateGroup(raw string, quantity, sides uint64, hasKeep bool, keepCount uint64, hasReroll bool, reroll uint64, hasMin bool, minFace uint64) error {
	if quantity < MinQuantity || quantity > MaxQuantity {
		return fmt.Errorf("%w: dice quantity %d not in [%d, %d] in %q", ErrRange, quantity, MinQuantity, MaxQuantity, raw)
	}
	if sides < MinSides || sides > MaxSides {
		return fmt.Errorf("%w: die sides %d not in [%d, %d] in %q", ErrRange, sides, MinSides, MaxSides, raw)
	}
	if hasKeep {
		if keepCount < 1 {
			return fmt.Errorf("%w: keep count must be at least 1 in %q", ErrRange, raw)
		}
		if keepCount > quantity {
			return fmt.Errorf("%w: keep count %d exceeds quantity %d in %q", ErrRange, keepCount, quantity, raw)
		}
	}
	if hasReroll && (reroll < 1 || reroll >= sides) {
		return fmt.Errorf("%w: reroll threshold %d must be in [1, %d] in %q", ErrRange, reroll, sides-1, raw)
	}
	if hasMin && (minFace < 1 || minFace > sides) {
		return fmt.Errorf("%w: minimum face %d must be in [1, %d] in %q", ErrRange, minFace, sides, raw)
	}
	return nil
}
