package dice

import (
	"fmt"
	"math"
	"sort"
)

// MaxDicePerExpression bounds the total number of dice a single fragment may roll.
const MaxDicePerExpression = 10000

// Expression is a compiled pool fragment ready to be rolled.
type Expression struct {
	raw  string
	root node
}

// Raw returns the fragment text the expression was compiled from.
func (e Expression) Raw() string { return e.raw }

type node interface {
	roll(src Source, faces *[]Face) int64
}

type numberNode struct{ value int64 }

func (n numberNode) roll(Source, *[]Face) int64 { return n.value }

type diceNode struct{ group DiceGroup }

func (n diceNode) roll(src Source, faces *[]Face) int64 {
	g := n.group
	rolled := make([]Face, g.Quantity)
	for i := range rolled {
		f := uint32(src.Intn(int(g.Sides)) + 1)
		if g.RerollThreshold > 0 && f <= g.RerollThreshold {
			f = uint32(src.Intn(int(g.Sides)) + 1)
		}
		if g.MinFace > 0 && f < g.MinFace {
			f = g.MinFace
		}
		rolled[i] = Face{Sides: g.Sides, Rolled: f}
	}
	if g.Keep != nil {
		order := make([]int, len(rolled))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			if g.Keep.Kind == KeepLowest {
				return rolled[order[a]].Rolled < rolled[order[b]].Rolled
			}
			return rolled[order[a]].Rolled > rolled[order[b]].Rolled
		})
		for _, idx := range order[g.Keep.Count:] {
			rolled[idx].Discarded = true
		}
	}
	var total int64
	for _, f := range rolled {
		if !f.Discarded {
			total += int64(f.Rolled)
		}
	}
	*faces = append(*faces, rolled...)
	return total
}

type signedNode struct {
	negative bool
	n        node
}

type sumNode struct{ terms []signedNode }

func (n sumNode) roll(src Source, faces *[]Face) int64 {
	var total int64
	for _, t := range n.terms {
		v := t.n.roll(src, faces)
		if t.negative {
			v = -v
		}
		total += v
	}
	return total
}

// choiceNode evaluates every argument independently and keeps the highest
// (max) or lowest (min) total. The chosen argument's dice are reported first;
// every other argument's dice are marked discarded. Ties keep the first argument.
type choiceNode struct {
	pickMax bool
	args    []node
}

func (n choiceNode) roll(src Source, faces *[]Face) int64 {
	totals := make([]int64, len(n.args))
	branches := make([][]Face, len(n.args))
	best := 0
	for i, arg := range n.args {
		totals[i] = arg.roll(src, &branches[i])
		if i == 0 {
			continue
		}
		if (n.pickMax && totals[i] > totals[best]) || (!n.pickMax && totals[i] < totals[best]) {
			best = i
		}
	}
	*faces = append(*faces, branches[best]...)
	for i, b := range branches {
		if i == best {
			continue
		}
		for _, f := range b {
			f.Discarded = true
			*faces = append(*faces, f)
		}
	}
	return totals[best]
}

// ParseExpression compiles a pool fragment. Supported syntax: integers, dice
// groups with kh/kl/k/r/min modifiers, '+'/'-', parentheses, and max(...)/min(...).
//
// Postcondition: returns a compiled Expression or an error wrapping ErrSyntax,
// ErrRange, or ErrUnknownFunction.
func ParseExpression(formula string) (Expression, error) {
	p := &exprParser{sc: scanner{s: normalize(formula)}}
	if p.sc.s == "" {
		return Expression{}, fmt.Errorf("%w: empty formula", ErrSyntax)
	}
	root, err := p.expr(0)
	if err != nil {
		return Expression{}, err
	}
	p.sc.skipSpace()
	if !p.sc.eof() {
		return Expression{}, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrSyntax, p.sc.s[p.sc.pos:], p.sc.pos, p.sc.s)
	}
	return Expression{raw: formula, root: root}, nil
}

// Roll evaluates e using src.
//
// Precondition: src must be non-nil.
func (e Expression) Roll(src Source) RollOutcome {
	faces := []Face{}
	total := e.root.roll(src, &faces)
	return RollOutcome{Formula: e.raw, Total: total, Dice: faces}
}

type exprParser struct {
	sc   scanner
	dice uint64
}

func (p *exprParser) expr(depth int) (node, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("%w: formula nested too deeply", ErrSyntax)
	}
	var terms []signedNode
	for {
		negative := p.signs()
		n, err := p.primary(depth)
		if err != nil {
			return nil, err
		}
		terms = append(terms, signedNode{negative: negative, n: n})
		p.sc.skipSpace()
		if c := p.sc.peek(); c != '+' && c != '-' {
			break
		}
	}
	if len(terms) == 1 && !terms[0].negative {
		return terms[0].n, nil
	}
	return sumNode{terms: terms}, nil
}

// signs consumes a run of '+'/'-' and reports whether the net sign is negative.
func (p *exprParser) signs() bool {
	negative := false
	for {
		p.sc.skipSpace()
		switch p.sc.peek() {
		case '+':
			p.sc.pos++
		case '-':
			p.sc.pos++
			negative = !negative
		default:
			return negative
		}
	}
}

func (p *exprParser) primary(depth int) (node, error) {
	p.sc.skipSpace()
	switch {
	case p.sc.accept("("):
		n, err := p.expr(depth + 1)
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return n, nil
	case p.sc.accept("max"):
		return p.call(true, depth)
	case p.sc.accept("min"):
		return p.call(false, depth)
	}

	if c := p.sc.peek(); c >= 'a' && c <= 'z' && c != 'd' {
		start := p.sc.pos
		for !p.sc.eof() && p.sc.peek() >= 'a' && p.sc.peek() <= 'z' {
			p.sc.pos++
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownFunction, p.sc.s[start:p.sc.pos])
	}

	g, matched, err := scanDiceGroup(&p.sc)
	if matched {
		if err != nil {
			return nil, err
		}
		p.dice += uint64(g.Quantity)
		if p.dice > MaxDicePerExpression {
			return nil, fmt.Errorf("%w: more than %d dice in %q", ErrRange, MaxDicePerExpression, p.sc.s)
		}
		return diceNode{group: g}, nil
	}

	start := p.sc.pos
	v, ok := p.sc.number()
	if !ok {
		if p.sc.eof() {
			return nil, fmt.Errorf("%w: unexpected end of %q", ErrSyntax, p.sc.s)
		}
		return nil, fmt.Errorf("%w: unexpected %q at offset %d in %q", ErrSyntax, p.sc.s[p.sc.pos:], p.sc.pos, p.sc.s)
	}
	if v > math.MaxInt32 {
		return nil, fmt.Errorf("%w: constant %s too large", ErrRange, p.sc.s[start:p.sc.pos])
	}
	return numberNode{value: int64(v)}, nil
}

func (p *exprParser) call(pickMax bool, depth int) (node, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var args []node
	for {
		n, err := p.expr(depth + 1)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
		p.sc.skipSpace()
		if !p.sc.accept(",") {
			break
		}
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return choiceNode{pickMax: pickMax, args: args}, nil
}

func (p *exprParser) expect(c byte) error {
	p.sc.skipSpace()
	if p.sc.peek() != c {
		return fmt.Errorf("%w: expected %q at offset %d in %q", ErrSyntax, c, p.sc.pos, p.sc.s)
	}
	p.sc.pos++
	return nil
}
