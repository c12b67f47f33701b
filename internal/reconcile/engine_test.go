package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/Veraticus/jobsync/internal/common"
	"github.com/Veraticus/jobsync/internal/model"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func app(company, position, status string) model.Application {
	return model.Application{
		Date:     "06-29",
		Category: "Job",
		Company:  company,
		Position: position,
		Status:   status,
		Location: "Raleigh",
		Referral: model.ReferralFalse,
		Website:  "https://" + company + ".example",
	}
}

func TestReconcile_ExactMatch(t *testing.T) {
	source := []model.Application{app("Acme", "Eng", "Applied")}
	destination := []model.Application{app("Acme", "Eng", "Applied")}

	for _, mode := range []Mode{ModeFull, ModeTail} {
		t.Run(string(mode), func(t *testing.T) {
			plan, err := Reconcile(source, destination, mode)
			require.NoError(t, err)
			assert.Empty(t, plan.Mutations)
			assert.True(t, plan.Empty())
			assert.Equal(t, Stats{NoOps: 1}, plan.Stats)
		})
	}
}

func TestReconcile_StaleStatus(t *testing.T) {
	fresh := app("Acme", "Eng", "Interview")
	source := []model.Application{fresh}
	destination := []model.Application{app("Acme", "Eng", "Applied")}

	for _, mode := range []Mode{ModeFull, ModeTail} {
		t.Run(string(mode), func(t *testing.T) {
			plan, err := Reconcile(source, destination, mode)
			require.NoError(t, err)
			assert.Equal(t, []Mutation{UpdateAt(1, fresh)}, plan.Mutations)
			assert.Equal(t, Stats{Updates: 1}, plan.Stats)
		})
	}
}

func TestReconcile_TailNewApplication(t *testing.T) {
	newest := model.Application{
		Date:     "07-04",
		Category: "Job",
		Company:  "Initech",
		Position: "Platform Engineer",
		Status:   "Applied",
		Location: "Durham, NC",
		Referral: model.ReferralTrue,
		Website:  "https://initech.example/careers",
	}
	source := []model.Application{newest, app("Acme", "Eng", "Applied")}
	destination := []model.Application{app("Acme", "Eng", "Applied")}

	plan, err := Reconcile(source, destination, ModeTail)
	require.NoError(t, err)
	require.Equal(t, []Mutation{AppendNew(newest)}, plan.Mutations)
	assert.Equal(t, newest, plan.Mutations[0].Record, "appended record keeps every normalized field")
	assert.Zero(t, plan.Mutations[0].Position)
}

func TestReconcile_TailUpdatesLastRow(t *testing.T) {
	newest := app("Globex", "SRE", "Offer")
	source := []model.Application{newest, app("Acme", "Eng", "Applied")}
	destination := []model.Application{
		app("Acme", "Eng", "Applied"),
		app("Umbrella", "QA", "Rejected"),
		app("Globex", "SRE", "Interview"),
	}

	plan, err := Reconcile(source, destination, ModeTail)
	require.NoError(t, err)
	assert.Equal(t, []Mutation{UpdateAt(3, newest)}, plan.Mutations)
}

func TestReconcile_TailEdges(t *testing.T) {
	t.Run("empty source", func(t *testing.T) {
		plan, err := Reconcile(nil, []model.Application{app("Acme", "Eng", "Applied")}, ModeTail)
		require.NoError(t, err)
		assert.Empty(t, plan.Mutations)
		assert.Equal(t, Stats{}, plan.Stats)
	})

	t.Run("empty destination appends", func(t *testing.T) {
		newest := app("Acme", "Eng", "Applied")
		plan, err := Reconcile([]model.Application{newest}, nil, ModeTail)
		require.NoError(t, err)
		assert.Equal(t, []Mutation{AppendNew(newest)}, plan.Mutations)
	})

	t.Run("only the newest record is checked", func(t *testing.T) {
		source := []model.Application{
			app("Acme", "Eng", "Applied"),
			app("Old", "Stale", "Offer"),
		}
		destination := []model.Application{
			app("Old", "Stale", "Applied"),
			app("Acme", "Eng", "Applied"),
		}
		plan, err := Reconcile(source, destination, ModeTail)
		require.NoError(t, err)
		assert.Empty(t, plan.Mutations)
	})
}

func TestReconcile_ForwardProbeFindsReorderedRow(t *testing.T) {
	beta := app("Beta", "Backend", "Interview")
	source := []model.Application{beta, app("Acme", "Eng", "Applied")}
	destination := []model.Application{
		app("Acme", "Eng", "Applied"),
		app("Zeta", "Sheet Only", "Applied"),
		app("Beta", "Backend", "Applied"),
	}

	plan, err := Reconcile(source, destination, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, []Mutation{UpdateAt(3, beta)}, plan.Mutations)
	assert.Equal(t, Stats{NoOps: 1, Updates: 1}, plan.Stats)
}

func TestReconcile_BackwardProbeUsesSameOffset(t *testing.T) {
	acme := app("Acme", "Eng", "Offer")
	source := []model.Application{acme, app("Beta", "Backend", "Applied")}
	destination := []model.Application{
		app("Acme", "Eng", "Applied"),
		app("Beta", "Backend", "Applied"),
	}

	// Beta is found by the forward probe from row 1, then Acme sits behind the
	// cursor and is recovered by the backward probe.
	plan, err := Reconcile(source, destination, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, []Mutation{UpdateAt(1, acme)}, plan.Mutations)
	assert.Equal(t, Stats{NoOps: 1, Updates: 1}, plan.Stats)
}

func TestReconcile_FallbackAppendsUnknownRecord(t *testing.T) {
	xeno := app("Xeno", "Data", "Applied")
	source := []model.Application{
		app("Gamma", "ML", "Applied"),
		xeno,
		app("Acme", "Eng", "Applied"),
	}
	destination := []model.Application{
		app("Acme", "Eng", "Applied"),
		app("Yotta", "Sheet Only", "Applied"),
		app("Gamma", "ML", "Applied"),
	}

	plan, err := Reconcile(source, destination, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, []Mutation{AppendNew(xeno)}, plan.Mutations)
	assert.Equal(t, Stats{NoOps: 2, Appends: 1}, plan.Stats)
}

func TestReconcile_AlignmentExhausted(t *testing.T) {
	tests := []struct {
		name        string
		source      []model.Application
		destination []model.Application
		want        AlignmentExhaustedError
	}{
		{
			name:        "newer record than the sheet holds",
			source:      []model.Application{app("New", "Role", "Applied"), app("Acme", "Eng", "Applied")},
			destination: []model.Application{app("Acme", "Eng", "Applied")},
			want: AlignmentExhaustedError{
				Key:              model.IdentityKey{Company: "New", Position: "Role"},
				SourceIndex:      0,
				DestinationIndex: 1,
				Remaining:        1,
			},
		},
		{
			name:        "decided mutations are discarded",
			source:      []model.Application{app("New", "Role", "Applied"), app("Acme", "Eng", "Offer")},
			destination: []model.Application{app("Acme", "Eng", "Applied")},
			want: AlignmentExhaustedError{
				Key:              model.IdentityKey{Company: "New", Position: "Role"},
				SourceIndex:      0,
				DestinationIndex: 1,
				Remaining:        1,
				Decided:          1,
			},
		},
		{
			name:        "empty destination",
			source:      []model.Application{app("B", "Two", "Applied"), app("A", "One", "Applied")},
			destination: nil,
			want: AlignmentExhaustedError{
				Key:              model.IdentityKey{Company: "A", Position: "One"},
				SourceIndex:      1,
				DestinationIndex: 0,
				Remaining:        2,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Reconcile(tt.source, tt.destination, ModeFull)
			require.Error(t, err)
			assert.Nil(t, plan)
			assert.ErrorIs(t, err, common.ErrAlignmentExhausted)

			var exhausted *AlignmentExhaustedError
			require.ErrorAs(t, err, &exhausted)
			assert.Equal(t, tt.want, *exhausted)
			assert.Contains(t, err.Error(), tt.want.Key.String())
		})
	}
}

func TestReconcile_EmptySourceFull(t *testing.T) {
	plan, err := Reconcile(nil, []model.Application{app("Acme", "Eng", "Applied")}, ModeFull)
	require.NoError(t, err)
	assert.Empty(t, plan.Mutations)
}

func TestReconcile_UnknownMode(t *testing.T) {
	_, err := Reconcile(nil, nil, Mode("sideways"))
	assert.ErrorContains(t, err, "unknown mode")
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	source := []model.Application{app("Beta", "Backend", "Interview"), app("Acme", "Eng", "Offer")}
	destination := []model.Application{app("Acme", "Eng", "Applied"), app("Beta", "Backend", "Applied")}

	srcCopy := append([]model.Application(nil), source...)
	dstCopy := append([]model.Application(nil), destination...)

	_, err := Reconcile(source, destination, ModeFull)
	require.NoError(t, err)
	assert.Equal(t, srcCopy, source)
	assert.Equal(t, dstCopy, destination)
}

func TestReconcile_FullIsIdempotent(t *testing.T) {
	source := []model.Application{
		app("Gamma", "ML", "Offer"),
		app("Xeno", "Data", "Applied"),
		app("Beta", "Backend", "Interview"),
		app("Acme", "Eng", "Applied"),
	}
	sheet := newMemoryDestination(
		app("Acme", "Eng", "Applied"),
		app("Beta", "Backend", "Applied"),
		app("Yotta", "Sheet Only", "Applied"),
		app("Gamma", "ML", "Interview"),
	)

	first, err := Reconcile(source, sheet.rows, ModeFull)
	require.NoError(t, err)
	require.False(t, first.Empty())

	_, err = Apply(context.Background(), first, sheet, nil)
	require.NoError(t, err)

	second, err := Reconcile(source, sheet.rows, ModeFull)
	require.NoError(t, err)
	assert.Empty(t, second.Mutations)
	assert.Equal(t, len(source), second.Stats.NoOps)
}

// TestReconcile_Properties checks the plan invariants against random lists.
func TestReconcile_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []string{"Applied", "Interview", "Offer"}

	for run := 0; run < 500; run++ {
		pool := make([]model.Application, 8)
		for k := range pool {
			pool[k] = app(fmt.Sprintf("Co%d", k), "Role", statuses[rng.Intn(len(statuses))])
		}

		destination := make([]model.Application, 0, len(pool))
		for _, k := range rng.Perm(len(pool))[:rng.Intn(len(pool))+1] {
			d := pool[k]
			d.Status = statuses[rng.Intn(len(statuses))]
			destination = append(destination, d)
		}

		source := make([]model.Application, 0, len(pool))
		for _, k := range rng.Perm(len(pool))[:rng.Intn(len(pool))+1] {
			source = append(source, pool[k])
		}

		plan, err := Reconcile(source, destination, ModeFull)
		if err != nil {
			require.True(t, errors.Is(err, common.ErrAlignmentExhausted), "run %d: %v", run, err)
			continue
		}

		inDestination := make(map[model.IdentityKey]bool)
		for _, d := range destination {
			inDestination[d.Key()] = true
		}

		assert.Equal(t, len(source), plan.Stats.NoOps+plan.Stats.Updates+plan.Stats.Appends, "run %d", run)
		for _, m := range plan.Mutations {
			switch m.Kind {
			case KindAppend:
				assert.False(t, inDestination[m.Record.Key()], "run %d: appended %s which the sheet already has", run, m.Record.Key())
			case KindUpdate:
				require.GreaterOrEqual(t, m.Position, 1)
				require.LessOrEqual(t, m.Position, len(destination))
				row := destination[m.Position-1]
				assert.True(t, m.Record.SameJob(row), "run %d: update targets a different job", run)
				assert.False(t, m.Record.Fresh(row), "run %d: update of an up-to-date row", run)
			}
		}
	}
}

func TestReconcile_PlanGolden(t *testing.T) {
	beta := model.Application{
		Date: "06-02", Category: "Job", Company: "Beta", Position: "Backend Engineer",
		Status: "Interview", Location: "Remote", Referral: "FALSE", Website: "https://beta.example/jobs/1",
	}
	xeno := model.Application{
		Date: "06-10", Category: "Job", Company: "Xeno", Position: "Data Analyst",
		Status: "Applied", Location: "", Referral: "TRUE", Website: "",
	}
	acme := model.Application{
		Date: "05-28", Category: "Job", Company: "Acme", Position: "Engineer",
		Status: "Applied", Location: "Raleigh, NC", Referral: "FALSE", Website: "https://acme.example",
	}
	gamma := model.Application{
		Date: "06-15", Category: "Job", Company: "Gamma", Position: "ML Engineer",
		Status: "Offer", Location: "Austin, TX", Referral: "FALSE", Website: "",
	}

	staleBeta := beta
	staleBeta.Status = "Applied"

	source := []model.Application{gamma, xeno, beta, acme}
	destination := []model.Application{
		acme,
		{Date: "06-01", Category: "Job", Company: "Zeta", Position: "Sheet Only", Status: "Applied", Referral: "FALSE"},
		staleBeta,
		gamma,
	}

	plan, err := Reconcile(source, destination, ModeFull)
	require.NoError(t, err)

	data, err := json.MarshalIndent(plan, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "plan_full", data)
}

func TestParseMode(t *testing.T) {
	for _, in := range []string{"full", "r", "R", " refresh "} {
		mode, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, ModeFull, mode)
	}
	for _, in := range []string{"tail", "a", "append"} {
		mode, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, ModeTail, mode)
	}
	_, err := ParseMode("x")
	assert.Error(t, err)
}

func TestMutation_String(t *testing.T) {
	assert.Equal(t, `update row 3: "Acme" / "Eng"`, UpdateAt(3, app("Acme", "Eng", "Applied")).String())
	assert.Equal(t, `append: "Acme" / "Eng"`, AppendNew(app("Acme", "Eng", "Applied")).String())
}
