// Package reconcile aligns the source application list against the destination
// sheet and plans the writes that bring the sheet up to date.
//
// The source list is ordered newest first and the sheet grows by appending, so
// the engine walks the source from its tail while walking the sheet from its
// head. When the two cursors disagree it probes the sheet forward, then
// backward, before concluding that the source record is new.
package reconcile

import (
	"fmt"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/model"
)

// AlignmentExhaustedError reports a source record that could not be placed
// because the destination cursor ran off the end of the sheet.
type AlignmentExhaustedError struct {
	Key model.IdentityKey
	// SourceIndex is the index of the unplaced record in the source list.
	SourceIndex int
	// DestinationIndex is the exhausted destination cursor.
	DestinationIndex int
	// Remaining counts the source records not yet classified, this one included.
	Remaining int
	// Decided counts the mutations planned before the walk stopped.
	Decided int
}

func (e *AlignmentExhaustedError) Error() string {
	return fmt.Sprintf("%v: no destination row left for %s (source index %d, destination cursor %d, %d source records unresolved, %d mutations discarded)",
		common.ErrAlignmentExhausted, e.Key, e.SourceIndex, e.DestinationIndex, e.Remaining, e.Decided)
}

func (e *AlignmentExhaustedError) Unwrap() error {
	return common.ErrAlignmentExhausted
}

// Reconcile plans the mutations that bring destination in line with source.
//
// source must be ordered newest first; destination in sheet row order. Neither
// slice is modified. On AlignmentExhaustedError the plan is discarded and nil
// is returned with the error.
func Reconcile(source, destination []model.Application, mode Mode) (*Plan, error) {
	switch mode {
	case ModeFull:
		return reconcileFull(source, destination)
	case ModeTail:
		return reconcileTail(source, destination), nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

func newPlan(mode Mode) *Plan {
	return &Plan{Mode: mode, Mutations: []Mutation{}}
}

// position converts a destination index into a 1-based data-row position.
func position(index int) int {
	return index + 1
}

// classify records the outcome for a source record matched at destination index.
func (p *Plan) classify(src model.Application, dst model.Application, index int) {
	if src.Fresh(dst) {
		p.noop()
		return
	}
	p.add(UpdateAt(position(index), src))
}

func reconcileFull(source, destination []model.Application) (*Plan, error) {
	plan := newPlan(ModeFull)

	i := 0
	for j := len(source) - 1; j >= 0; j-- {
		src := source[j]

		if i >= len(destination) {
			return nil, &AlignmentExhaustedError{
				Key:              src.Key(),
				SourceIndex:      j,
				DestinationIndex: i,
				Remaining:        j + 1,
				Decided:          len(plan.Mutations),
			}
		}

		if src.SameJob(destination[i]) {
			plan.classify(src, destination[i], i)
			i++
			continue
		}

		original := i
		if p, ok := probeForward(src, destination, original+1); ok {
			plan.classify(src, destination[p], p)
		} else if q, ok := probeBackward(src, destination, original); ok {
			plan.classify(src, destination[q], q)
		} else {
			plan.add(AppendNew(src))
		}
		i = original + 1
	}

	return plan, nil
}

// probeForward finds the first row at or after from with the same identity.
func probeForward(src model.Application, destination []model.Application, from int) (int, bool) {
	for p := from; p < len(destination); p++ {
		if src.SameJob(destination[p]) {
			return p, true
		}
	}
	return 0, false
}

// probeBackward finds the nearest row at or before from with the same identity.
func probeBackward(src model.Application, destination []model.Application, from int) (int, bool) {
	for q := from; q >= 0; q-- {
		if src.SameJob(destination[q]) {
			return q, true
		}
	}
	return 0, false
}

func reconcileTail(source, destination []model.Application) *Plan {
	plan := newPlan(ModeTail)
	if len(source) == 0 {
		return plan
	}

	newest := source[0]
	if len(destination) == 0 {
		plan.add(AppendNew(newest))
		return plan
	}

	last := len(destination) - 1
	if newest.SameJob(destination[last]) {
		plan.classify(newest, destination[last], last)
		return plan
	}

	plan.add(AppendNew(newest))
	return plan
}
