package dice

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// maxNesting bounds recursion into parenthesised tokens.
const maxNesting = 16

var signReplacer = strings.NewReplacer(
	"\u2212", "-", // minus sign
	"\u2012", "-", // figure dash
	"\u2013", "-", // en dash
	"\u2014", "-", // em dash
	"\ufe63", "-", // small hyphen-minus
	"\uff0d", "-", // fullwidth hyphen-minus
	"\ufe62", "+", // small plus
	"\uff0b", "+", // fullwidth plus
)

// Parser turns formula text into a ParsedFormula. The zero value is usable and
// does not cache.
type Parser struct {
	cache *FormulaCache
}

// NewParser returns a Parser that memoizes results in cache. A nil cache disables memoization.
func NewParser(cache *FormulaCache) *Parser {
	return &Parser{cache: cache}
}

// Parse parses text without caching. A leading sign applies to the first
// term, so "+5" and "-5" each produce a single flat term.
//
// Postcondition: never panics; all failure is reported through Valid and Error.
func Parse(text string) ParsedFormula {
	return parseFormula(text)
}

// Parse parses text, consulting the parser's cache when one is configured.
// The cache key is the raw, unnormalized text.
func (p *Parser) Parse(text string) ParsedFormula {
	if p == nil || p.cache == nil {
		return parseFormula(text)
	}
	if pf, ok := p.cache.get(text); ok {
		return pf
	}
	pf := parseFormula(text)
	p.cache.put(text, pf)
	return pf
}

func parseFormula(text string) ParsedFormula {
	pf := ParsedFormula{Original: text}
	normalized := normalize(text)
	if normalized == "" {
		pf.Error = "empty formula"
		return pf
	}

	terms, errs := parseTerms(normalized, 0)
	pf.Terms = terms
	if len(terms) == 0 && len(errs) == 0 {
		errs = append(errs, errors.New("no valid dice or modifiers"))
	}
	pf.Complexity = complexityOf(terms)
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		pf.Error = strings.Join(msgs, "; ")
		return pf
	}
	pf.Valid = true
	return pf
}

// normalize trims, collapses whitespace runs to single spaces, lower-cases, and
// maps unicode plus/minus variants to ASCII.
func normalize(text string) string {
	s := signReplacer.Replace(text)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

type token struct {
	negative bool
	text     string
}

// splitTopLevel splits s on '+' and '-' outside parentheses. A leading sign
// applies to the first token; runs of signs combine ("+-" is negative).
func splitTopLevel(s string) ([]token, error) {
	var (
		tokens   []token
		buf      strings.Builder
		depth    int
		negative bool
		pending  bool
	)
	flush := func() {
		text := strings.TrimSpace(buf.String())
		buf.Reset()
		if text == "" {
			return
		}
		tokens = append(tokens, token{negative: negative, text: text})
		negative, pending = false, false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '(':
			depth++
			buf.WriteByte(c)
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced ')' in %q", ErrSyntax, s)
			}
			buf.WriteByte(c)
		case (c == '+' || c == '-') && depth == 0:
			flush()
			pending = true
			if c == '-' {
				negative = !negative
			}
		default:
			buf.WriteByte(c)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced '(' in %q", ErrSyntax, s)
	}
	flush()
	if pending {
		return tokens, fmt.Errorf("%w: dangling operator in %q", ErrSyntax, s)
	}
	return tokens, nil
}

func parseTerms(s string, depth int) ([]FormulaTerm, []error) {
	tokens, err := splitTopLevel(s)
	if err != nil && tokens == nil {
		return nil, []error{err}
	}
	var (
		terms []FormulaTerm
		errs  []error
	)
	if err != nil {
		errs = append(errs, err)
	}
	for _, tok := range tokens {
		ts, tokErrs := classify(tok, depth)
		terms = append(terms, ts...)
		errs = append(errs, tokErrs...)
	}
	return terms, errs
}

// classify turns one token into terms: a dice group, a flat integer, or the
// inlined terms of a parenthesised sub-formula.
func classify(tok token, depth int) ([]FormulaTerm, []error) {
	text := tok.text
	if isWrapped(text) {
		if depth >= maxNesting {
			return nil, []error{fmt.Errorf("%w: formula nested too deeply at %q", ErrSyntax, text)}
		}
		inner, errs := parseTerms(text[1:len(text)-1], depth+1)
		if tok.negative {
			for i := range inner {
				negate(&inner[i])
			}
		}
		if len(inner) == 0 && len(errs) == 0 {
			errs = append(errs, fmt.Errorf("%w: empty group %q", ErrSyntax, text))
		}
		return inner, errs
	}

	sc := &scanner{s: text}
	g, matched, err := scanDiceGroup(sc)
	if matched {
		if err != nil {
			return nil, []error{err}
		}
		if sc.eof() {
			g.Negative = tok.negative
			return []FormulaTerm{DiceTerm(g)}, nil
		}
	}

	v, ok := parseInteger(text)
	if !ok {
		v, ok = parseBareNumber(text)
	}
	if !ok && isDigits(text) {
		return nil, []error{fmt.Errorf("%w: constant %s too large", ErrRange, text)}
	}
	if ok {
		// The Roller compiles constants as 32-bit values.
		if v > math.MaxInt32 {
			return nil, []error{fmt.Errorf("%w: constant %s too large", ErrRange, text)}
		}
		if tok.negative {
			v = -v
		}
		return []FormulaTerm{FlatTerm(FlatModifier{Value: v, Raw: signed(tok)})}, nil
	}
	return nil, []error{fmt.Errorf("%w: unrecognized term %q", ErrSyntax, text)}
}

func negate(t *FormulaTerm) {
	switch t.Kind {
	case TermDice:
		t.Dice.Negative = !t.Dice.Negative
	case TermFlat:
		t.Flat.Value = -t.Flat.Value
	}
}

func signed(tok token) string {
	if tok.negative {
		return "-" + tok.text
	}
	return tok.text
}

// isWrapped reports whether s is "(...)" with the outer parentheses matching each other.
func isWrapped(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func parseInteger(s string) (int64, bool) {
	if !isDigits(s) {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseBareNumber accepts decimal notation with an integral value, e.g. "3.0".
func parseBareNumber(s string) (int64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || f < 0 {
		return 0, false
	}
	if f > math.MaxInt64/2 {
		return 0, false
	}
	return int64(f), true
}

func complexityOf(terms []FormulaTerm) Complexity {
	worst := Simple
	for _, t := range terms {
		if t.Kind != TermDice {
			continue
		}
		c := Simple
		g := t.Dice
		switch {
		case g.Quantity > 10 || g.Sides > 100:
			c = Complex
		case g.Quantity > 5 || g.Keep != nil:
			c = Moderate
		}
		if c > worst {
			worst = c
		}
	}
	return worst
}
