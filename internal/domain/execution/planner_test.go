package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanner_Plan(t *testing.T) {
	t.Parallel()

	user := newConfigurableStep("install:user")
	user.status = step.StatusSatisfied
	unit := newConfigurableStep("install:unit", "install:user")
	unit.diff = step.NewDiff(step.ChangeUpdate, "unit", "node_exporter.service", "", "").WithDetail("--- a\n+++ b\n")
	broken := newConfigurableStep("install:binary")
	broken.checkErr = errors.New("cannot run --version")

	plan, err := NewPlanner().Plan(context.Background(), steps(user, unit, broken))
	require.NoError(t, err)

	require.Equal(t, 3, plan.Len())
	entries := plan.Entries()
	assert.Equal(t, step.StatusSatisfied, entries[0].Status())
	assert.True(t, entries[0].Diff().IsEmpty())
	assert.Equal(t, step.StatusNeedsApply, entries[1].Status())
	assert.Equal(t, "--- a\n+++ b\n", entries[1].Diff().Detail())
	assert.Equal(t, "test step install:unit", entries[1].Explanation().Summary())
	assert.Equal(t, step.StatusUnknown, entries[2].Status())
	require.Error(t, entries[2].Error())

	assert.True(t, plan.HasChanges())
	assert.Len(t, plan.NeedsApply(), 2)
	assert.Equal(t, PlanSummary{Total: 3, NeedsApply: 1, Satisfied: 1, Unknown: 1}, plan.Summary())

	assert.Zero(t, user.applied+unit.applied+broken.applied)
}

func TestPlanner_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPlanner().Plan(ctx, steps(newConfigurableStep("install:user")))
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidateOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		steps   []step.Step
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", steps(newConfigurableStep("a:x"), newConfigurableStep("a:y", "a:x")), false},
		{"duplicate", steps(newConfigurableStep("a:x"), newConfigurableStep("a:x")), true},
		{"forward dependency", steps(newConfigurableStep("a:y", "a:x"), newConfigurableStep("a:x")), true},
		{"unknown dependency", steps(newConfigurableStep("a:y", "a:z")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateOrder(tt.steps)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOrder)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPlan_Empty(t *testing.T) {
	t.Parallel()

	plan := &Plan{}
	assert.Zero(t, plan.Len())
	assert.False(t, plan.HasChanges())
	assert.True(t, plan.UpToDate())
	assert.Equal(t, PlanSummary{}, plan.Summary())
}
