package boardcfg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuwacunu/tsiemene/internal/boardcfg"
)

func TestDefaultExecutionBudgetIsValid(t *testing.T) {
	require.NoError(t, boardcfg.DefaultExecutionBudget().Valid())
}

func TestLocalRunParametersIsValid(t *testing.T) {
	b := boardcfg.LocalRunParameters()
	require.NoError(t, b.Valid())
	require.Less(t, b.MaxSteps, boardcfg.DefaultExecutionBudget().MaxSteps)
}

func TestTrainingRunParametersAllowsZeroTimeout(t *testing.T) {
	b := boardcfg.TrainingRunParameters()
	require.NoError(t, b.Valid())
	require.Zero(t, b.StepTimeout)
	require.Greater(t, b.MaxSteps, boardcfg.DefaultExecutionBudget().MaxSteps)
}

func TestValidRejectsNonPositiveMaxSteps(t *testing.T) {
	b := boardcfg.DefaultExecutionBudget()
	b.MaxSteps = 0
	require.ErrorIs(t, b.Valid(), boardcfg.ErrInvalidMaxSteps)
}

func TestValidRejectsNegativeStepTimeout(t *testing.T) {
	b := boardcfg.DefaultExecutionBudget()
	b.StepTimeout = -1
	require.ErrorIs(t, b.Valid(), boardcfg.ErrInvalidStepTO)
}

func TestValidRejectsNegativeCheckpointCadence(t *testing.T) {
	b := boardcfg.DefaultExecutionBudget()
	b.CheckpointEverySteps = -1
	require.ErrorIs(t, b.Valid(), boardcfg.ErrInvalidCheckpoint)
}
