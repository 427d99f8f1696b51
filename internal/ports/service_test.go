package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnitState_Predicates(t *testing.T) {
	t.Parallel()

	running := UnitState{
		LoadState:     LoadStateLoaded,
		ActiveState:   ActiveStateActive,
		UnitFileState: UnitFileStateEnabled,
	}
	assert.True(t, running.Loaded())
	assert.True(t, running.Active())
	assert.True(t, running.Enabled())
	assert.False(t, running.Failed())

	missing := UnitState{LoadState: LoadStateNotFound, ActiveState: ActiveStateInactive}
	assert.False(t, missing.Loaded())
	assert.False(t, missing.Active())
	assert.False(t, missing.Enabled())

	crashed := UnitState{LoadState: LoadStateLoaded, ActiveState: ActiveStateFailed, UnitFileState: "disabled"}
	assert.True(t, crashed.Failed())
	assert.False(t, crashed.Enabled())
}
