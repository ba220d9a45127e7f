package dice

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Roller is the concrete Randomizer: it compiles each fragment with
// ParseExpression and rolls it against a Source. Every roll is logged at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src must be non-nil. A nil logger disables logging.
func NewRoller(src Source, logger *zap.Logger) *Roller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Evaluate compiles and rolls formula.
//
// Postcondition: returns a RollOutcome, or an error if ctx is done or formula
// does not compile.
func (r *Roller) Evaluate(ctx context.Context, formula string) (RollOutcome, error) {
	if err := ctx.Err(); err != nil {
		return RollOutcome{}, err
	}
	expr, err := ParseExpression(formula)
	if err != nil {
		return RollOutcome{}, fmt.Errorf("dice: evaluating %q: %w", formula, err)
	}
	out := expr.Roll(r.src)
	r.logger.Debug("dice roll",
		zap.String("formula", out.Formula),
		zap.Int("dice", len(out.Dice)),
		zap.Int64("total", out.Total),
	)
	return out, nil
}

// MustEvaluate is Evaluate for fragments known to be valid. Panics on error.
func (r *Roller) MustEvaluate(formula string) RollOutcome {
	out, err := r.Evaluate(context.Background(), formula)
	if err != nil {
		panic("dice: MustEvaluate failed for formula " + formula + ": " + err.Error())
	}
	return out
}
