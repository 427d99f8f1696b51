package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_EmptyList(t *testing.T) {
	t.Parallel()

	result, err := NewExecutor().Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Results)
	assert.True(t, result.Succeeded())
}

func TestExecutor_AppliesInOrder(t *testing.T) {
	t.Parallel()

	var order []string
	record := func(name string) func(step.RunContext) error {
		return func(step.RunContext) error {
			order = append(order, name)
			return nil
		}
	}

	first := newConfigurableStep("install:first")
	first.applyFn = record("first")
	second := newConfigurableStep("install:second", "install:first")
	second.applyFn = record("second")
	third := newConfigurableStep("install:third")
	third.applyFn = record("third")

	result, err := NewExecutor().Execute(context.Background(), steps(first, second, third))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, order)
	require.Len(t, result.Results, 3)
	for _, r := range result.Results {
		assert.True(t, r.Success())
		assert.True(t, r.Changed())
	}
	assert.Equal(t, ResultSummary{Total: 3, Changed: 3}, result.Summary())
}

func TestExecutor_SatisfiedStepNotApplied(t *testing.T) {
	t.Parallel()

	s := newConfigurableStep("install:user")
	s.status = step.StatusSatisfied
	s.condition = step.KindAlreadyExists

	result, err := NewExecutor().Execute(context.Background(), steps(s))
	require.NoError(t, err)

	assert.Zero(t, s.applied)
	require.Len(t, result.Results, 1)
	r := result.Results[0]
	assert.True(t, r.Success())
	assert.False(t, r.Changed())
	assert.Equal(t, step.KindAlreadyExists, r.Condition())
	assert.Equal(t, ResultSummary{Total: 1, Unchanged: 1}, result.Summary())
}

func TestExecutor_BenignApplyErrors(t *testing.T) {
	t.Parallel()

	notFound := step.NewError(step.ErrCodeNotFound, step.KindNotFound, "user does not exist")
	exists := step.NewError(step.ErrCodeCommandFailed, step.KindAlreadyExists, "user already exists")

	tests := []struct {
		name     string
		executor *Executor
		err      error
		wantOK   bool
	}{
		{"already exists is benign by default", NewExecutor(), exists, true},
		{"not found fails by default", NewExecutor(), notFound, false},
		{"not found benign when configured", NewExecutor().WithBenign(step.KindAlreadyExists, step.KindNotFound), notFound, true},
		{"no benign kinds", NewExecutor().WithBenign(), exists, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newConfigurableStep("remove:user")
			s.applyFn = func(step.RunContext) error { return tt.err }
			dependent := newConfigurableStep("remove:data-dir", "remove:user")

			result, err := tt.executor.Execute(context.Background(), steps(s, dependent))
			require.NoError(t, err)

			r := result.Results[0]
			if tt.wantOK {
				assert.True(t, r.Success())
				assert.NoError(t, r.Error())
				assert.Equal(t, step.KindOf(tt.err), r.Condition())
				assert.Equal(t, 1, dependent.applied)
				return
			}
			assert.True(t, r.Failed())
			assert.Equal(t, step.KindOf(tt.err), r.Kind())
			assert.True(t, result.Results[1].Skipped())
			assert.Zero(t, dependent.applied)
		})
	}
}

func TestExecutor_FailureSkipsDependentsOnly(t *testing.T) {
	t.Parallel()

	first := newConfigurableStep("install:user")
	first.applyFn = func(step.RunContext) error {
		return step.NewError(step.ErrCodeCommandFailed, step.KindPrivilege, "permission denied")
	}
	dependent := newConfigurableStep("install:directories", "install:user")
	transitive := newConfigurableStep("install:binary", "install:directories")
	unrelated := newConfigurableStep("install:config")

	result, err := NewExecutor().Execute(context.Background(), steps(first, dependent, transitive, unrelated))
	require.NoError(t, err)

	require.Len(t, result.Results, 4)
	assert.True(t, result.Results[0].Failed())
	assert.Equal(t, step.KindPrivilege, result.Results[0].Kind())
	assert.True(t, result.Results[1].Skipped())
	assert.Contains(t, result.Results[1].Reason(), "install:user")
	assert.True(t, result.Results[2].Skipped())
	assert.True(t, result.Results[3].Success())

	assert.Zero(t, dependent.applied)
	assert.Zero(t, transitive.applied)
	assert.Equal(t, 1, unrelated.applied)
	assert.False(t, result.Aborted)
	assert.True(t, result.HasFailures())
	assert.Len(t, result.Failures(), 1)
}

func TestExecutor_NetworkFailureAborts(t *testing.T) {
	t.Parallel()

	fetch := newConfigurableStep("install:fetch")
	fetch.applyFn = func(step.RunContext) error {
		return step.NewError(step.ErrCodeDownloadFailed, step.KindNetwork, "download failed")
	}
	config := newConfigurableStep("install:config")
	unit := newConfigurableStep("install:unit")

	result, err := NewExecutor().Execute(context.Background(), steps(fetch, config, unit))
	require.NoError(t, err)

	assert.True(t, result.Aborted)
	assert.Equal(t, "install:fetch", result.AbortedBy.String())
	assert.True(t, result.Results[1].Skipped())
	assert.True(t, result.Results[2].Skipped())
	assert.Contains(t, result.Results[2].Reason(), "aborted after install:fetch")
	assert.Zero(t, config.applied)
	assert.Zero(t, unit.applied)
	assert.False(t, result.Succeeded())
}

func TestExecutor_WithAbortOnNone(t *testing.T) {
	t.Parallel()

	fetch := newConfigurableStep("remove:a")
	fetch.applyFn = func(step.RunContext) error {
		return step.NewError(step.ErrCodeDownloadFailed, step.KindNetwork, "boom")
	}
	next := newConfigurableStep("remove:b")

	result, err := NewExecutor().WithAbortOn().Execute(context.Background(), steps(fetch, next))
	require.NoError(t, err)

	assert.False(t, result.Aborted)
	assert.Equal(t, 1, next.applied)
}

func TestExecutor_CheckError(t *testing.T) {
	t.Parallel()

	s := newConfigurableStep("install:directories")
	s.checkErr = errors.New("stat exploded")

	result, err := NewExecutor().Execute(context.Background(), steps(s))
	require.NoError(t, err)

	r := result.Results[0]
	assert.True(t, r.Failed())
	assert.Zero(t, s.applied)

	var se *step.StepError
	require.ErrorAs(t, r.Error(), &se)
	assert.Equal(t, step.ErrCodeCheckFailed, se.Code)
	assert.Equal(t, "install:directories", se.StepID)
}

func TestExecutor_InterruptedBetweenSteps(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := newConfigurableStep("install:user")
	first.applyFn = func(step.RunContext) error {
		cancel()
		return nil
	}
	second := newConfigurableStep("install:directories")

	result, err := NewExecutor().Execute(ctx, steps(first, second))
	require.NoError(t, err)

	assert.True(t, result.Interrupted)
	assert.True(t, result.Results[0].Success())
	assert.True(t, result.Results[1].Skipped())
	assert.Equal(t, "interrupted", result.Results[1].Reason())
	assert.Equal(t, step.KindInterrupted, result.Results[1].Kind())
	assert.Zero(t, second.applied)
	assert.False(t, result.Succeeded())
}

func TestExecutor_DryRun(t *testing.T) {
	t.Parallel()

	first := newConfigurableStep("install:user")
	first.diff = step.NewDiff(step.ChangeCreate, "user", "node_exporter", "", "system user")
	second := newConfigurableStep("install:directories", "install:user")
	satisfied := newConfigurableStep("install:config")
	satisfied.status = step.StatusSatisfied

	result, err := NewExecutor().WithDryRun(true).Execute(context.Background(), steps(first, second, satisfied))
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Zero(t, first.applied)
	assert.Zero(t, second.applied)
	assert.Equal(t, step.StatusNeedsApply, result.Results[0].Status())
	assert.Equal(t, "create user node_exporter (system user)", result.Results[0].Diff().Summary())
	assert.Equal(t, step.StatusNeedsApply, result.Results[1].Status())
	assert.True(t, result.Results[2].Success())
}

func TestExecutor_Observer(t *testing.T) {
	t.Parallel()

	var seen []string
	exec := NewExecutor().WithObserver(func(r StepResult) {
		seen = append(seen, r.StepID().String()+"="+r.Status().String())
	})

	ok := newConfigurableStep("remove:binary")
	missing := newConfigurableStep("remove:unit")
	missing.status = step.StatusSatisfied
	missing.condition = step.KindNotFound

	_, err := exec.Execute(context.Background(), steps(ok, missing))
	require.NoError(t, err)
	assert.Equal(t, []string{"remove:binary=satisfied", "remove:unit=satisfied"}, seen)
}

func TestExecutor_InvalidOrder(t *testing.T) {
	t.Parallel()

	dependent := newConfigurableStep("install:binary", "install:extract")
	dep := newConfigurableStep("install:extract")

	_, err := NewExecutor().Execute(context.Background(), steps(dependent, dep))
	require.ErrorIs(t, err, ErrInvalidOrder)
	assert.Zero(t, dependent.applied)
}

func TestExecuteResult_Result(t *testing.T) {
	t.Parallel()

	result := ExecuteResult{Results: []StepResult{
		NewStepResult(step.MustNewID("install:user"), step.StatusSatisfied, nil),
	}}

	r, ok := result.Result(step.MustNewID("install:user"))
	assert.True(t, ok)
	assert.True(t, r.Success())

	_, ok = result.Result(step.MustNewID("install:unit"))
	assert.False(t, ok)
}
