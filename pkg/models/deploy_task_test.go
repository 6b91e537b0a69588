package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-admingen/pkg/apperrors"
)

func TestDeployTask_ProgressIsClampedAndMonotonic(t *testing.T) {
	task := NewDeployTask(uuid.New(), AllTargets())
	assert.Equal(t, DeployStatusProcessing, task.Status)

	require.NoError(t, task.Advance(66))
	require.NoError(t, task.Advance(33))
	assert.Equal(t, 66, task.Progress)

	require.NoError(t, task.Advance(250))
	assert.Equal(t, 100, task.Progress)

	require.NoError(t, task.Advance(-5))
	assert.Equal(t, 100, task.Progress)
}

func TestDeployTask_TerminalRejectsTransitions(t *testing.T) {
	task := NewDeployTask(uuid.New(), AllTargets())
	require.NoError(t, task.Log("frontend written"))
	require.NoError(t, task.Complete())

	assert.Equal(t, DeployStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	require.NotNil(t, task.EndTime)

	assert.ErrorIs(t, task.Fail("late"), apperrors.ErrTaskTerminal)
	assert.ErrorIs(t, task.Advance(10), apperrors.ErrTaskTerminal)
	assert.ErrorIs(t, task.Log("late"), apperrors.ErrTaskTerminal)
	assert.ErrorIs(t, task.Complete(), apperrors.ErrTaskTerminal)
	assert.Equal(t, DeployStatusCompleted, task.Status)
	assert.Len(t, task.Logs, 1)
}

func TestDeployTask_FailRecordsReason(t *testing.T) {
	task := NewDeployTask(uuid.New(), DeployOptions{GenerateSQL: true})
	require.NoError(t, task.Advance(33))
	require.NoError(t, task.Fail("permission denied"))

	assert.Equal(t, DeployStatusFailed, task.Status)
	assert.Equal(t, 33, task.Progress)
	assert.Equal(t, "permission denied", task.Error)
	assert.Equal(t, "deploy failed: permission denied", task.Logs[len(task.Logs)-1].Message)
}

func TestDeployTask_CloneIsIndependent(t *testing.T) {
	task := NewDeployTask(uuid.New(), AllTargets())
	require.NoError(t, task.Log("one"))

	c := task.Clone()
	require.NoError(t, task.Log("two"))

	assert.Len(t, c.Logs, 1)
	assert.Len(t, task.Logs, 2)
}

func TestDeployOptions_Enabled(t *testing.T) {
	opts := DeployOptions{GenerateFrontend: true}
	assert.True(t, opts.Enabled(GroupFrontend))
	assert.False(t, opts.Enabled(GroupBackend))
	assert.False(t, opts.Enabled(GroupSQL))
	assert.False(t, opts.Enabled("docs"))
}

func TestValidationRule_String(t *testing.T) {
	f := FieldDescriptor{Rules: []ValidationRule{{Kind: RuleRequired}, {Kind: RuleMax, Value: 50}}}
	assert.Equal(t, []string{"required", "max:50"}, f.RuleStrings())
	assert.Equal(t, "required|max:50", f.RulesText())
	assert.True(t, f.Required())
}
