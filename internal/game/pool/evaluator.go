package pool

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/rollflow/internal/game/dice"
)

// EvaluatedRoll is the aggregated result of evaluating a pool.
//
// Invariant: Total == sum(ByCategory) + the totals of uncategorized terms.
type EvaluatedRoll struct {
	Total      int64              `json:"total"`
	ByCategory map[string]int64   `json:"by_category"`
	Faces      []dice.Face        `json:"faces"`
	Terms      []dice.RollOutcome `json:"terms"`
}

// HasDice reports whether any die was rolled.
func (r EvaluatedRoll) HasDice() bool { return len(r.Faces) > 0 }

// Merge returns the sum of r and other. Faces and terms are concatenated in order.
func (r EvaluatedRoll) Merge(other EvaluatedRoll) EvaluatedRoll {
	out := EvaluatedRoll{
		Total:      r.Total + other.Total,
		ByCategory: make(map[string]int64, len(r.ByCategory)+len(other.ByCategory)),
		Faces:      append(append([]dice.Face{}, r.Faces...), other.Faces...),
		Terms:      append(append([]dice.RollOutcome{}, r.Terms...), other.Terms...),
	}
	for k, v := range r.ByCategory {
		out.ByCategory[k] += v
	}
	for k, v := range other.ByCategory {
		out.ByCategory[k] += v
	}
	return out
}

// Evaluator drives a Randomizer over pool terms.
type Evaluator struct {
	// Concurrent evaluates terms in parallel. Only enable it when the
	// Randomizer supports concurrent calls.
	Concurrent bool
}

// Evaluate asks r to evaluate every term and aggregates the results. Blank
// fragments evaluate as "0". Faces and per-term outcomes keep pool order
// regardless of Concurrent.
//
// Postcondition: returns the aggregated roll, or the first Randomizer error.
func (e Evaluator) Evaluate(ctx context.Context, terms []Term, r dice.Randomizer) (EvaluatedRoll, error) {
	outcomes := make([]dice.RollOutcome, len(terms))
	if e.Concurrent && len(terms) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, t := range terms {
			g.Go(func() error {
				out, err := r.Evaluate(gctx, fragment(t))
				if err != nil {
					return fmt.Errorf("evaluating term %d %q: %w", i, t.Formula, err)
				}
				outcomes[i] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return EvaluatedRoll{}, err
		}
	} else {
		for i, t := range terms {
			out, err := r.Evaluate(ctx, fragment(t))
			if err != nil {
				return EvaluatedRoll{}, fmt.Errorf("evaluating term %d %q: %w", i, t.Formula, err)
			}
			outcomes[i] = out
		}
	}

	roll := EvaluatedRoll{
		ByCategory: make(map[string]int64),
		Faces:      []dice.Face{},
		Terms:      outcomes,
	}
	for i, out := range outcomes {
		roll.Total += out.Total
		if c := terms[i].Category; c != "" {
			roll.ByCategory[c] += out.Total
		}
		roll.Faces = append(roll.Faces, out.Dice...)
	}
	return roll, nil
}

// Evaluate evaluates terms sequentially.
func Evaluate(ctx context.Context, terms []Term, r dice.Randomizer) (EvaluatedRoll, error) {
	return Evaluator{}.Evaluate(ctx, terms, r)
}

func fragment(t Term) string {
	if strings.TrimSpace(t.Formula) == "" {
		return "0"
	}
	return t.Formula
}
