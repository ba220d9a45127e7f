package resolution_test

import (
	"context"
	"errors"
	"testing"

	"github.com/cory-johannsen/rollflow/internal/game/check"
	"github.com/cory-johannsen/rollflow/internal/game/dice"
	"github.com/cory-johannsen/rollflow/internal/game/pool"
	"github.com/cory-johannsen/rollflow/internal/game/resolution"
	"github.com/cory-johannsen/rollflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func newEngine(t *testing.T, r dice.Randomizer) *workflow.Engine {
	t.Helper()
	reg := workflow.NewRegistry()
	actions := resolution.New(dice.NewParser(dice.NewFormulaCache()), r)
	require.NoError(t, resolution.Register(reg, actions, nil, nil))
	return workflow.NewEngine(reg)
}

func run(t *testing.T, e *workflow.Engine, workflowType string, req resolution.Request) *workflow.State {
	t.Helper()
	st, err := e.Start(context.Background(), workflowType, resolution.Seed(req))
	require.NoError(t, err)
	return st
}

func summary(t *testing.T, st *workflow.State) resolution.Summary {
	t.Helper()
	var sum resolution.Summary
	require.NoError(t, st.Result(resolution.KeySummary, &sum))
	return sum
}

func TestCheckWorkflow_Success(t *testing.T) {
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(11), nil))
	st := run(t, e, "check", resolution.Request{Kind: pool.Check, Formula: "1d20+5", Target: i64(15)})

	require.Empty(t, st.Errors)
	assert.Equal(t, workflow.StatusCompleted, st.Status)
	assert.Equal(t, []string{"Start", "Roll", "Resolve", "Complete"}, st.CompletedActions)

	var outcome check.OutcomeResult
	require.NoError(t, st.Result(resolution.KeyOutcome, &outcome))
	assert.Equal(t, check.OutcomeResult{Success: true, Total: 17, Target: 15, Margin: 2, NaturalDie: 12}, outcome)

	sum := summary(t, st)
	assert.Equal(t, int64(17), sum.Total)
	require.NotNil(t, sum.Success)
	assert.True(t, *sum.Success)
	assert.Equal(t, check.NotCritical, sum.Critical)
	assert.Nil(t, sum.Damage)
}

func TestCheckWorkflow_AdvantageKeepsBetterBranch(t *testing.T) {
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(4, 16), nil))
	st := run(t, e, "check", resolution.Request{
		Kind: pool.Check, Formula: "1d20+2", Target: i64(10), Advantage: pool.Advantage(),
	})
	require.Empty(t, st.Errors)

	var p pool.DicePool
	require.NoError(t, st.Result(resolution.KeyPool, &p))
	assert.Equal(t, "max(1d20,1d20)", p.Base[0].Formula)
	assert.Equal(t, "2", p.Base[1].Formula)

	var outcome check.OutcomeResult
	require.NoError(t, st.Result(resolution.KeyOutcome, &outcome))
	assert.Equal(t, int64(19), outcome.Total)
	assert.Equal(t, uint32(17), outcome.NaturalDie)
}

func TestAttackWorkflow_CriticalHitAddsCriticalDamage(t *testing.T) {
	// d20 -> 20, base d8 -> 5, critical d8 -> 7
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(19, 4, 6), nil))
	st := run(t, e, "attack", resolution.Request{
		Kind:    pool.Check,
		Formula: "1d20+7",
		Target:  i64(15),
		Damage: &resolution.Request{
			Kind:     pool.Damage,
			Formula:  "1d8+3",
			Category: "slashing",
		},
	})
	require.Empty(t, st.Errors)
	assert.Equal(t, []string{"Start", "Roll", "Resolve", "RollDamage", "Complete"}, st.CompletedActions)

	var crit check.CriticalResult
	require.NoError(t, st.Result(resolution.KeyCritical, &crit))
	assert.True(t, crit.IsCritical)
	assert.Equal(t, check.NaturalMax, crit.Kind)

	var dmg resolution.DamageResult
	require.NoError(t, st.Result(resolution.KeyDamage, &dmg))
	assert.True(t, dmg.Critical)
	assert.Equal(t, int64(15), dmg.Roll.Total)
	assert.Equal(t, map[string]int64{"slashing": 15}, dmg.Roll.ByCategory)
	require.Len(t, dmg.Pool.Critical, 1)
	assert.Equal(t, "1d8", dmg.Pool.Critical[0].Formula)

	sum := summary(t, st)
	require.NotNil(t, sum.Damage)
	assert.Equal(t, int64(15), *sum.Damage)
	assert.Equal(t, check.NaturalMax, sum.Critical)
}

func TestAttackWorkflow_MissRollsNoDamage(t *testing.T) {
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(0), nil))
	st := run(t, e, "attack", resolution.Request{
		Kind:    pool.Check,
		Formula: "1d20",
		Target:  i64(15),
		Damage:  &resolution.Request{Kind: pool.Damage, Formula: "1d8"},
	})
	require.Empty(t, st.Errors)
	assert.False(t, st.HasResult(resolution.KeyDamage))
	sum := summary(t, st)
	require.NotNil(t, sum.Success)
	assert.False(t, *sum.Success)
	assert.Nil(t, sum.Damage)
}

func TestDamageWorkflow_CriticalPoolRequested(t *testing.T) {
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(2), nil))
	st := run(t, e, "damage", resolution.Request{
		Kind: pool.Damage,
		Terms: []pool.Term{
			{Formula: "1d8", Category: "fire", CountsTowardCritical: true},
			{Formula: "2"},
		},
		WantCriticalPool: true,
		DefaultCategory:  "bludgeoning",
	})
	require.Empty(t, st.Errors)

	var p pool.DicePool
	require.NoError(t, st.Result(resolution.KeyPool, &p))
	assert.Equal(t, []pool.Term{
		{Formula: "1d8", Category: "fire", CountsTowardCritical: true},
		{Formula: "2", Category: "bludgeoning"},
	}, p.Base)
	assert.Equal(t, []pool.Term{{Formula: "1d8", Category: "fire", CountsTowardCritical: true}}, p.Critical)

	var crit pool.EvaluatedRoll
	require.NoError(t, st.Result(resolution.KeyCriticalRoll, &crit))
	assert.Equal(t, int64(3), crit.Total)
	sum := summary(t, st)
	assert.Equal(t, int64(8), sum.Total)
	assert.Equal(t, map[string]int64{"fire": 6, "bludgeoning": 2}, sum.ByCategory)
}

func TestDamageWorkflow_SummaryCategoriesAddUpToTotal(t *testing.T) {
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(5), nil))
	st := run(t, e, "damage", resolution.Request{
		Kind:             pool.Damage,
		Formula:          "1d8+2",
		Category:         "fire",
		WantCriticalPool: true,
	})
	require.Empty(t, st.Errors)

	sum := summary(t, st)
	assert.Equal(t, int64(14), sum.Total)
	assert.Equal(t, map[string]int64{"fire": 14}, sum.ByCategory)
}

type failingRandomizer struct{}

func (failingRandomizer) Evaluate(context.Context, string) (dice.RollOutcome, error) {
	return dice.RollOutcome{}, errors.New("randomizer offline")
}

func TestRandomizerFailureSurfacesAtRoll(t *testing.T) {
	e := newEngine(t, failingRandomizer{})
	st := run(t, e, "check", resolution.Request{Kind: pool.Check, Formula: "1d20", Target: i64(10)})

	assert.Equal(t, workflow.StatusCompleted, st.Status)
	require.NotEmpty(t, st.Errors)
	assert.Equal(t, "Roll", st.Errors[0].Action)
	assert.Contains(t, st.Errors[0].Message, "randomizer offline")
	assert.Contains(t, st.CompletedActions, "Complete")
	assert.Equal(t, len(st.Errors), summary(t, st).Errors)
}

func TestInvalidFormulaFailsStart(t *testing.T) {
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(0), nil))
	st := run(t, e, "check", resolution.Request{Kind: pool.Check, Formula: "3d6kh4", Target: i64(10)})

	assert.Equal(t, workflow.StatusFailed, st.Status)
	require.Len(t, st.Errors, 1)
	assert.True(t, st.Errors[0].Fatal)
	assert.Contains(t, st.Errors[0].Message, "keep count 4 exceeds quantity 3")

	var parsed dice.ParsedFormula
	require.NoError(t, st.Result(resolution.KeyParsed, &parsed))
	assert.False(t, parsed.Valid)
}

func TestInvalidRequestFailsStart(t *testing.T) {
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(0), nil))
	st := run(t, e, "check", resolution.Request{Formula: "1d20"})
	assert.Equal(t, workflow.StatusFailed, st.Status)
	assert.Contains(t, st.Errors[0].Message, "invalid request")
}

func TestResolveWithoutTarget(t *testing.T) {
	e := newEngine(t, dice.NewRoller(dice.NewFixedSource(9), nil))
	st := run(t, e, "check", resolution.Request{Kind: pool.Check, Formula: "1d20"})
	require.Len(t, st.Errors, 1)
	assert.Equal(t, "Resolve", st.Errors[0].Action)
	assert.Equal(t, resolution.ErrNoTarget.Error(), st.Errors[0].Message)
	assert.Equal(t, workflow.StatusCompleted, st.Status)
}

func TestRequestValidate(t *testing.T) {
	cases := map[string]resolution.Request{
		"no kind":           {Formula: "1d20"},
		"bad kind":          {Kind: "save", Formula: "1d20"},
		"no pool":           {Kind: pool.Check},
		"formula and terms": {Kind: pool.Check, Formula: "1d20", Terms: []pool.Term{{Formula: "2"}}},
		"blank term":        {Kind: pool.Damage, Terms: []pool.Term{{Formula: ""}}},
		"damage kind":       {Kind: pool.Check, Formula: "1d20", Damage: &resolution.Request{Kind: pool.Check, Formula: "1d8"}},
		"max face":          {Kind: pool.Check, Formula: "1d20", MaxFace: 20000},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, req.Validate())
		})
	}
	assert.NoError(t, resolution.Request{Kind: pool.Check, Formula: "1d20", Target: i64(3)}.Validate())
	assert.NoError(t, resolution.Request{Kind: pool.Damage, Terms: []pool.Term{{Formula: "1d6"}}}.Validate())
}

func TestCriticalOptions(t *testing.T) {
	req := resolution.Request{ThresholdModifiers: []int{1}}
	opts := req.CriticalOptions(20)
	assert.Equal(t, uint32(20), opts.MaxFace)
	assert.Equal(t, uint32(19), opts.EffectiveThreshold())

	req.MaxFace = 12
	assert.Equal(t, uint32(12), req.CriticalOptions(20).MaxFace)
}

func TestDefaultDefinitions(t *testing.T) {
	defs, err := resolution.DefaultDefinitions()
	require.NoError(t, err)
	types := make([]string, len(defs))
	for i, d := range defs {
		types[i] = d.Type
	}
	assert.ElementsMatch(t, []string{"check", "attack", "damage"}, types)
}

func TestRegister_ExtraOverridesCatalog(t *testing.T) {
	reg := workflow.NewRegistry()
	actions := resolution.New(nil, dice.NewRoller(dice.NewFixedSource(0), nil))
	var called bool
	extra := map[string]workflow.ActionFunc{
		resolution.ActionComplete: func(context.Context, *workflow.State) error { called = true; return nil },
	}
	require.NoError(t, resolution.Register(reg, actions, nil, extra))
	_, err := workflow.NewEngine(reg).Start(context.Background(), "check",
		resolution.Seed(resolution.Request{Kind: pool.Check, Formula: "1d20", Target: i64(1)}))
	require.NoError(t, err)
	assert.True(t, called)
}
