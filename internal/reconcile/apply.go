package reconcile

import (
	"context"
	"fmt"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/model"
)

// Destination is the write side of the destination store.
type Destination interface {
	// UpdateRow overwrites the data row at the 1-based position.
	UpdateRow(ctx context.Context, position int, record model.Application) error
	// AppendRow inserts record after the last data row.
	AppendRow(ctx context.Context, record model.Application) error
}

// ApplyResult lists what happened to each mutation of a plan.
type ApplyResult struct {
	Failed    *Mutation
	Applied   []Mutation
	Remaining []Mutation
}

// Partial reports whether some but not all mutations were written.
func (r *ApplyResult) Partial() bool {
	return r.Failed != nil && len(r.Applied) > 0
}

// ProgressFunc is called after each mutation is written.
type ProgressFunc func(done int, m Mutation)

// Apply writes the plan's mutations to dest in order.
//
// The first failed write stops application. Earlier writes are not rolled
// back; the result records which mutations landed and which did not, and the
// returned error wraps common.ErrDestinationWriteFailed.
func Apply(ctx context.Context, plan *Plan, dest Destination, progress ProgressFunc) (*ApplyResult, error) {
	result := &ApplyResult{
		Applied: make([]Mutation, 0, len(plan.Mutations)),
	}

	for idx, m := range plan.Mutations {
		if err := ctx.Err(); err != nil {
			result.Remaining = append(result.Remaining, plan.Mutations[idx:]...)
			return result, err
		}

		if err := applyOne(ctx, m, dest); err != nil {
			failed := m
			result.Failed = &failed
			result.Remaining = append(result.Remaining, plan.Mutations[idx+1:]...)
			return result, fmt.Errorf("%w: %s (%d of %d applied): %w",
				common.ErrDestinationWriteFailed, m, len(result.Applied), len(plan.Mutations), err)
		}

		result.Applied = append(result.Applied, m)
		if progress != nil {
			progress(len(result.Applied), m)
		}
	}

	return result, nil
}

func applyOne(ctx context.Context, m Mutation, dest Destination) error {
	switch m.Kind {
	case KindUpdate:
		if m.Position < 1 {
			return fmt.Errorf("invalid row position %d", m.Position)
		}
		return dest.UpdateRow(ctx, m.Position, m.Record)
	case KindAppend:
		return dest.AppendRow(ctx, m.Record)
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
}
