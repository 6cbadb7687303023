package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand_PrintsRoleDefaults(t *testing.T) {
	out, err := execute(t, "config", "respiratory")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 5002")
	assert.NotContains(t, out, "password")
}

func TestConfigCommand_UnknownRole(t *testing.T) {
	_, err := execute(t, "config", "liver")
	assert.Error(t, err)
}

func TestOrganCommand_RejectsOrchestrator(t *testing.T) {
	_, err := execute(t, "organ", "orchestrator")
	assert.Error(t, err)
}

func TestOrganCommand_RequiresKind(t *testing.T) {
	_, err := execute(t, "organ")
	assert.Error(t, err)
}
