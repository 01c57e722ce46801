package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bissquit/incident-dispatch/internal/dispatch"
	"github.com/bissquit/incident-dispatch/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`log:
  level: error
storage:
  driver: json
  data_dir: %s
`, filepath.Join(dir, "data"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, cfgPath, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommands_IncidentLifecycle(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, cfg, "", "register", "security", "high", "Server", "breach", "detected")
	require.NoError(t, err)
	assert.Contains(t, out, "Incident registered with id 001")

	out, err = execute(t, cfg, "", "register", "application", "low", "Checkout page is slow")
	require.NoError(t, err)
	assert.Contains(t, out, "id 002")

	out, err = execute(t, cfg, "", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "[001] Security")
	assert.Contains(t, out, "Description: Server breach detected")
	assert.Contains(t, out, "[002] Application")

	out, err = execute(t, cfg, "", "assign", "1", "ana")
	require.NoError(t, err)
	assert.Contains(t, out, "Incident 001 assigned to ana")

	out, err = execute(t, cfg, "", "search", "--status", "in_progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Results: 1 incident(s)")
	assert.Contains(t, out, "Assigned to: ana")

	out, err = execute(t, cfg, "", "resolve", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Incident 001 resolved")

	out, err = execute(t, cfg, "", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total incidents: 2")
	assert.Contains(t, out, "Resolved: 1")
	assert.Contains(t, out, "Pending: 1")
}

func TestCommands_Errors(t *testing.T) {
	cfg := writeConfig(t)

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "invalid incident", args: []string{"register", "hardware", "high", "Broken keyboard"}, want: validation.ErrInvalid},
		{name: "non-numeric id", args: []string{"resolve", "abc"}, want: validation.ErrInvalid},
		{name: "unknown incident", args: []string{"resolve", "42"}, want: dispatch.ErrIncidentNotFound},
		{name: "bad search type", args: []string{"search", "--type", "hardware"}, want: validation.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, cfg, "", tt.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCommands_Operators(t *testing.T) {
	cfg := writeConfig(t)

	for _, args := range [][]string{{"operators"}, {"operators", "list"}} {
		out, err := execute(t, cfg, "", args...)
		require.NoError(t, err)
		for _, name := range []string{"admin", "ana", "carlos", "miguel", "sofia"} {
			assert.Contains(t, out, name)
		}
	}
}

func TestCommands_SessionOnlyStateIsMenuOnly(t *testing.T) {
	cfg := writeConfig(t)

	tests := [][]string{
		{"operators", "add", "lucia", "security_analyst"},
		{"operators", "availability", "ana", "false"},
		{"history"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			out, err := execute(t, cfg, "", args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown command")
			assert.Empty(t, out)
		})
	}
}

func TestCommands_SearchOverdue(t *testing.T) {
	cfg := writeConfig(t)

	_, err := execute(t, cfg, "", "register", "application", "low", "Checkout page is slow")
	require.NoError(t, err)

	out, err := execute(t, cfg, "", "search", "--overdue", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "Results: 0 incident(s)")

	out, err = execute(t, cfg, "", "search", "--overdue", "1ns")
	require.NoError(t, err)
	assert.Contains(t, out, "Results: 1 incident(s)")
}

func TestCommands_EscalateNothing(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, cfg, "", "escalate")
	require.NoError(t, err)
	assert.Contains(t, out, "No incidents need escalation")
}

func TestCommands_Version(t *testing.T) {
	out, err := execute(t, "does-not-matter.yaml", "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "incident-dispatch")
	assert.Contains(t, out, "Git commit:")
}

func TestRoot_InteractiveMenu(t *testing.T) {
	cfg := writeConfig(t)

	out, err := execute(t, cfg, "1\n3\n2\nLogin page returns 502\n9\n0\n")
	require.NoError(t, err)
	assert.Contains(t, out, "MAIN MENU")
	assert.Contains(t, out, "Incident registered")
	assert.Contains(t, out, "Total incidents: 1")

	out, err = execute(t, cfg, "", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Login page returns 502")
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "missing.yaml"), "", "pending")
	require.Error(t, err)
}
