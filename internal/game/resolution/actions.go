package resolution

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/rollflow/internal/game/check"
	"github.com/cory-johannsen/rollflow/internal/game/dice"
	"github.com/cory-johannsen/rollflow/internal/game/pool"
	"github.com/cory-johannsen/rollflow/internal/workflow"
)

// Action names in the catalog.
const (
	ActionStart      = "Start"
	ActionRoll       = "Roll"
	ActionResolve    = "Resolve"
	ActionRollDamage = "RollDamage"
	ActionComplete   = "Complete"
)

// ErrNoTarget is returned by Resolve for a request without a target.
var ErrNoTarget = errors.New("request has no target")

// Actions implements the standard resolution steps over a parser and a Randomizer.
type Actions struct {
	parser     *dice.Parser
	randomizer dice.Randomizer
	evaluator  pool.Evaluator
	maxFace    uint32
	logger     *zap.Logger
}

// Option configures Actions.
type Option func(*Actions)

// WithEvaluator sets the pool evaluator.
func WithEvaluator(ev pool.Evaluator) Option { return func(a *Actions) { a.evaluator = ev } }

// WithMaxFace sets the default primary die size.
func WithMaxFace(n uint32) Option { return func(a *Actions) { a.maxFace = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(a *Actions) { a.logger = l } }

// New creates Actions.
//
// Precondition: randomizer must be non-nil. A nil parser parses uncached.
func New(parser *dice.Parser, randomizer dice.Randomizer, opts ...Option) *Actions {
	a := &Actions{
		parser:     parser,
		randomizer: randomizer,
		maxFace:    check.DefaultMaxFace,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// Catalog returns the actions keyed by name for workflow.Registry.Bind.
func (a *Actions) Catalog() map[string]workflow.ActionFunc {
	return map[string]workflow.ActionFunc{
		ActionStart:      a.Start,
		ActionRoll:       a.Roll,
		ActionResolve:    a.Resolve,
		ActionRollDamage: a.RollDamage,
		ActionComplete:   a.Complete,
	}
}

func request(st *workflow.State) (Request, error) {
	var req Request
	if err := st.Result(KeyRequest, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// buildPool parses req and assembles its pool. The parsed formula is nil when
// req supplies raw terms.
func (a *Actions) buildPool(req Request, wantCritical bool) (*dice.ParsedFormula, pool.DicePool, error) {
	var parsed *dice.ParsedFormula
	terms := req.Terms
	if req.Formula != "" {
		pf := a.parser.Parse(req.Formula)
		parsed = &pf
		if !pf.Valid {
			return parsed, pool.DicePool{}, fmt.Errorf("invalid formula %q: %s", req.Formula, pf.Error)
		}
		terms = pool.TermsFromFormula(pf, req.Category)
	}
	opts := req.Options()
	opts.WantCriticalPool = wantCritical
	p := pool.Build(terms, req.Kind, opts)
	if len(p.Base) == 0 {
		return parsed, p, errors.New("pool is empty")
	}
	return parsed, p, nil
}

// Start validates the request and stores its parsed formula and pool.
func (a *Actions) Start(_ context.Context, st *workflow.State) error {
	req, err := request(st)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	parsed, p, err := a.buildPool(req, req.WantCriticalPool)
	if parsed != nil {
		if serr := st.SetResult(KeyParsed, parsed); serr != nil {
			return serr
		}
	}
	if err != nil {
		return err
	}
	return st.SetResult(KeyPool, p)
}

// Roll evaluates the stored pool. A critical pool, when present, is evaluated
// separately into KeyCriticalRoll.
func (a *Actions) Roll(ctx context.Context, st *workflow.State) error {
	var p pool.DicePool
	if err := st.Result(KeyPool, &p); err != nil {
		return err
	}
	roll, err := a.evaluator.Evaluate(ctx, p.Base, a.randomizer)
	if err != nil {
		return err
	}
	if err := st.SetResult(KeyRoll, roll); err != nil {
		return err
	}
	if len(p.Critical) == 0 {
		return nil
	}
	crit, err := a.evaluator.Evaluate(ctx, p.Critical, a.randomizer)
	if err != nil {
		return err
	}
	return st.SetResult(KeyCriticalRoll, crit)
}

// Resolve classifies the stored roll against the request's target.
func (a *Actions) Resolve(_ context.Context, st *workflow.State) error {
	req, err := request(st)
	if err != nil {
		return err
	}
	if req.Target == nil {
		return ErrNoTarget
	}
	var roll pool.EvaluatedRoll
	if err := st.Result(KeyRoll, &roll); err != nil {
		return err
	}
	res := check.Resolve(roll, *req.Target, req.CriticalOptions(a.maxFace))
	if err := st.SetResult(KeyOutcome, res.Outcome); err != nil {
		return err
	}
	return st.SetResult(KeyCritical, res.Critical)
}

// RollDamage rolls the request's damage after a successful check. A critical
// check adds the damage critical pool. A failed check rolls nothing.
func (a *Actions) RollDamage(ctx context.Context, st *workflow.State) error {
	req, err := request(st)
	if err != nil {
		return err
	}
	if req.Damage == nil {
		return errors.New("request has no damage")
	}
	var outcome check.OutcomeResult
	if err := st.Result(KeyOutcome, &outcome); err != nil {
		return err
	}
	if !outcome.Success {
		return nil
	}
	var crit check.CriticalResult
	if st.HasResult(KeyCritical) {
		if err := st.Result(KeyCritical, &crit); err != nil {
			return err
		}
	}

	dmg := *req.Damage
	wantCritical := crit.IsCritical
	_, p, err := a.buildPool(dmg, wantCritical)
	if err != nil {
		return fmt.Errorf("damage: %w", err)
	}
	roll, err := a.evaluator.Evaluate(ctx, p.Base, a.randomizer)
	if err != nil {
		return fmt.Errorf("damage: %w", err)
	}
	if wantCritical && len(p.Critical) > 0 {
		extra, err := a.evaluator.Evaluate(ctx, p.Critical, a.randomizer)
		if err != nil {
			return fmt.Errorf("damage: %w", err)
		}
		roll = roll.Merge(extra)
	}
	a.logger.Debug("damage rolled",
		zap.String("workflow_id", st.WorkflowID),
		zap.Int64("total", roll.Total),
		zap.Bool("critical", wantCritical),
	)
	return st.SetResult(KeyDamage, DamageResult{Pool: p, Roll: roll, Critical: wantCritical})
}

// Complete condenses whatever results exist into KeySummary.
func (a *Actions) Complete(_ context.Context, st *workflow.State) error {
	var sum Summary
	if req, err := request(st); err == nil {
		sum.Formula = req.Formula
	}
	var roll pool.EvaluatedRoll
	if err := st.Result(KeyRoll, &roll); err != nil {
		roll = pool.EvaluatedRoll{}
	}
	if st.HasResult(KeyCriticalRoll) {
		var crit pool.EvaluatedRoll
		if err := st.Result(KeyCriticalRoll, &crit); err != nil {
			return err
		}
		roll = roll.Merge(crit)
	}
	sum.Total = roll.Total
	if len(roll.ByCategory) > 0 {
		sum.ByCategory = roll.ByCategory
	}
	if st.HasResult(KeyOutcome) {
		var outcome check.OutcomeResult
		if err := st.Result(KeyOutcome, &outcome); err != nil {
			return err
		}
		sum.Success = &outcome.Success
		sum.Margin = &outcome.Margin
		sum.NaturalDie = outcome.NaturalDie
	}
	if st.HasResult(KeyCritical) {
		var crit check.CriticalResult
		if err := st.Result(KeyCritical, &crit); err != nil {
			return err
		}
		sum.Critical = crit.Kind
	}
	if st.HasResult(KeyDamage) {
		var dmg DamageResult
		if err := st.Result(KeyDamage, &dmg); err != nil {
			return err
		}
		sum.Damage = &dmg.Roll.Total
		sum.DamageBy = dmg.Roll.ByCategory
	}
	sum.Errors = len(st.Errors)
	return st.SetResult(KeySummary, sum)
}
