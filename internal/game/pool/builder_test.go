package pool_test

import (
	"fmt"
	"testing"

	"github.com/cory-johannsen/rollflow/internal/game/dice"
	"github.com/cory-johannsen/rollflow/internal/game/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBuild_DamageWithCriticalPool(t *testing.T) {
	terms := []pool.Term{
		{Formula: "1d8", Category: "fire", CountsTowardCritical: true},
		{Formula: "2"},
	}
	p := pool.Build(terms, pool.Damage, pool.Options{WantCriticalPool: true})
	assert.Equal(t, []pool.Term{
		{Formula: "1d8", Category: "fire", CountsTowardCritical: true},
		{Formula: "2"},
	}, p.Base)
	assert.Equal(t, []pool.Term{
		{Formula: "1d8", Category: "fire", CountsTowardCritical: true},
	}, p.Critical)
}

func TestBuild_DamageWithoutCriticalPool(t *testing.T) {
	terms := []pool.Term{{Formula: "1d8", CountsTowardCritical: true}}
	extra := pool.Term{Formula: "1d6", Category: "radiant"}
	p := pool.Build(terms, pool.Damage, pool.Options{ExtraCriticalTerm: &extra})
	assert.Len(t, p.Base, 1)
	assert.Empty(t, p.Critical)
}

func TestBuild_ExtraCriticalTerm(t *testing.T) {
	terms := []pool.Term{{Formula: "1d8", CountsTowardCritical: true}}
	extra := pool.Term{Formula: "1d6"}
	p := pool.Build(terms, pool.Damage, pool.Options{
		WantCriticalPool:  true,
		ExtraCriticalTerm: &extra,
		DefaultCategory:   "slashing",
	})
	require.Len(t, p.Critical, 2)
	assert.Equal(t, pool.Term{Formula: "1d6", Category: "slashing", CountsTowardCritical: true}, p.Critical[1])
	assert.Equal(t, "slashing", p.Base[0].Category)
	assert.Len(t, p.Base, 1, "extra critical term never joins the base pool")
}

func TestBuild_CheckNeverHasCriticalPool(t *testing.T) {
	terms := []pool.Term{{Formula: "1d20", CountsTowardCritical: true}, {Formula: "5"}}
	extra := pool.Term{Formula: "1d6"}
	p := pool.Build(terms, pool.Check, pool.Options{WantCriticalPool: true, ExtraCriticalTerm: &extra, DefaultCategory: "x"})
	assert.Len(t, p.Base, 2)
	assert.Empty(t, p.Critical)
	assert.Empty(t, p.Base[0].Category, "check terms do not inherit the default category")
}

func TestBuild_EmptyInput(t *testing.T) {
	p := pool.Build(nil, pool.Damage, pool.Options{WantCriticalPool: true, Advantage: pool.Advantage()})
	assert.Empty(t, p.Base)
	assert.Empty(t, p.Critical)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	terms := []pool.Term{{Formula: "1d8", CountsTowardCritical: true}}
	_ = pool.Build(terms, pool.Damage, pool.Options{UseMinDieFaces: true, Advantage: pool.Advantage(), DefaultCategory: "fire"})
	assert.Equal(t, pool.Term{Formula: "1d8", CountsTowardCritical: true}, terms[0])
}

func TestBuild_AdvantageDamageWrapsOnlyCriticalTerms(t *testing.T) {
	terms := []pool.Term{
		{Formula: "1d8", CountsTowardCritical: true},
		{Formula: "1d4"},
		{Formula: "3"},
	}
	p := pool.Build(terms, pool.Damage, pool.Options{Advantage: pool.Advantage(), WantCriticalPool: true})
	assert.Equal(t, "max(1d8,1d8)", p.Base[0].Formula)
	assert.Equal(t, "1d4", p.Base[1].Formula)
	assert.Equal(t, "3", p.Base[2].Formula)
	assert.Equal(t, "max(1d8,1d8)", p.Critical[0].Formula)
}

func TestBuild_AdvantageCheckWrapsOnlyDiceTerms(t *testing.T) {
	terms := []pool.Term{{Formula: "1d20"}, {Formula: "+4"}, {Formula: "1d4"}}
	p := pool.Build(terms, pool.Check, pool.Options{Advantage: pool.Disadvantage()})
	assert.Equal(t, "min(1d20,1d20)", p.Base[0].Formula)
	assert.Equal(t, "+4", p.Base[1].Formula)
	assert.Equal(t, "min(1d4,1d4)", p.Base[2].Formula)
}

func TestApplyMinimumFaces(t *testing.T) {
	cases := map[string]string{
		"5d6min4":      "5d6min4",
		"5d6":          "5d6min2",
		"2d8kh1":       "2d8kh1min3",
		"1d20min3":     "1d20min8",
		"1d7":          "1d7",
		"1d4+1d10r1+2": "1d4min2+1d10r1min4+2",
		"d12":          "d12min5",
		"3":            "3",
	}
	for in, want := range cases {
		assert.Equal(t, want, pool.ApplyMinimumFaces(in, pool.DefaultMinimumFaces), in)
	}
}

func TestBuild_MinimumFacesCustomTable(t *testing.T) {
	p := pool.Build([]pool.Term{{Formula: "1d7"}}, pool.Check, pool.Options{
		UseMinDieFaces: true,
		MinimumFaces:   map[uint32]uint32{7: 3},
	})
	assert.Equal(t, "1d7min3", p.Base[0].Formula)
}

func TestBuild_MinimumFacesRewriteKeepsFormulaParseable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		q := rapid.IntRange(1, 10).Draw(rt, "quantity")
		s := rapid.SampledFrom([]int{4, 6, 8, 10, 12, 20, 3, 100}).Draw(rt, "sides")
		f := pool.ApplyMinimumFaces(fmt.Sprintf("%dd%d+2", q, s), pool.DefaultMinimumFaces)
		assert.True(rt, dice.Parse(f).Valid, f)
		_, err := dice.ParseExpression(f)
		assert.NoError(rt, err, f)
	})
}

var sampleFormulas = []string{"1d20", "2d6", "1d8kh1", "4d6kh3", "1d12+1d4", "3d10r1"}

// TestBuild_AdvantageSymmetry verifies advantage and disadvantage wrap the same
// term as max(F,F) and min(F,F), neither equal to F.
func TestBuild_AdvantageSymmetry(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := rapid.SampledFrom(sampleFormulas).Draw(rt, "formula")
		kind := rapid.SampledFrom([]pool.RollKind{pool.Damage, pool.Check}).Draw(rt, "kind")
		terms := []pool.Term{{Formula: f, CountsTowardCritical: true}}

		adv := pool.Build(terms, kind, pool.Options{Advantage: pool.Advantage()})
		dis := pool.Build(terms, kind, pool.Options{Advantage: pool.Disadvantage()})

		assert.Equal(rt, "max("+f+","+f+")", adv.Base[0].Formula)
		assert.Equal(rt, "min("+f+","+f+")", dis.Base[0].Formula)
		assert.NotEqual(rt, f, adv.Base[0].Formula)
		assert.NotEqual(rt, f, dis.Base[0].Formula)
	})
}

// TestBuild_MinimumFacesBeforeAdvantage verifies the advantage wrap encloses
// the already-rewritten formula.
func TestBuild_MinimumFacesBeforeAdvantage(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := rapid.SampledFrom(sampleFormulas).Draw(rt, "formula")
		terms := []pool.Term{{Formula: f, CountsTowardCritical: true}}
		p := pool.Build(terms, pool.Damage, pool.Options{
			Advantage:        pool.Advantage(),
			UseMinDieFaces:   true,
			WantCriticalPool: true,
		})
		rewritten := pool.ApplyMinimumFaces(f, pool.DefaultMinimumFaces)
		want := "max(" + rewritten + "," + rewritten + ")"
		assert.Equal(rt, want, p.Base[0].Formula)
		assert.Equal(rt, want, p.Critical[0].Formula)
	})
}

// TestBuild_CriticalPoolInvariant verifies every critical term comes from a
// critical-counting source term.
func TestBuild_CriticalPoolInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(rt, "n")
		var terms []pool.Term
		crit := 0
		for i := 0; i < n; i++ {
			c := rapid.Bool().Draw(rt, fmt.Sprintf("crit%d", i))
			if c {
				crit++
			}
			terms = append(terms, pool.Term{Formula: fmt.Sprintf("1d%d", 4+2*i), CountsTowardCritical: c})
		}
		want := rapid.Bool().Draw(rt, "want")
		p := pool.Build(terms, pool.Damage, pool.Options{WantCriticalPool: want})
		assert.Len(rt, p.Base, n)
		if !want {
			assert.Empty(rt, p.Critical)
			return
		}
		assert.Len(rt, p.Critical, crit)
		for _, ct := range p.Critical {
			assert.True(rt, ct.CountsTowardCritical)
		}
	})
}

func TestTermsFromFormula(t *testing.T) {
	terms := pool.TermsFromFormula(dice.Parse("2d6kh1-1d4+3"), "fire")
	assert.Equal(t, []pool.Term{
		{Formula: "2d6kh1", Category: "fire", CountsTowardCritical: true},
		{Formula: "-1d4", Category: "fire", CountsTowardCritical: true},
		{Formula: "3", Category: "fire"},
	}, terms)
	assert.Nil(t, pool.TermsFromFormula(dice.Parse("nope"), ""))
}
