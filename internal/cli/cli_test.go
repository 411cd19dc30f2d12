package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "ctxaction", cmd.Use)

	for _, name := range []string{"demo", "config"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}

	check, _, err := cmd.Find([]string{"config", "check"})
	require.NoError(t, err)
	assert.Equal(t, "check", check.Name())

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestDemo(t *testing.T) {
	out, err := execute(t, "demo")
	require.NoError(t, err)

	assert.Contains(t, out, "increment(2): status=completed results=[2]")
	assert.Contains(t, out, "increment(3): status=completed results=[5]")
	assert.Contains(t, out, `increment(-1): status=aborted results=[] abort="invalid increment -1" by=validate`)
	assert.Contains(t, out, "counter=5")
	assert.Contains(t, out, "lookup: status=completed results=[cache db]")
	assert.Contains(t, out, "fetch: status=completed results=[fast-mirror] discarded=[slow-mirror]")
	assert.Contains(t, out, "chart pending=3 table cancelled=1")
	assert.Contains(t, out, "chart order=[series axes legend] table=cancelled")
	assert.Contains(t, out, "counter:changed 2\ncounter:changed 5\n")
	assert.NotContains(t, out, "archived=")
}

func TestDemoWithConfig(t *testing.T) {
	path := writeFile(t, "runtime.yaml", `
events:
  max_history: 1
  archive: "`+filepath.Join(t.TempDir(), "events.db")+`"
actions:
  halt_on_error: true
`)
	out, err := execute(t, "--config", path, "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "== events\ncounter:changed 5\narchived=2\n")
}

func TestConfigCheck(t *testing.T) {
	path := writeFile(t, "runtime.yaml", `
comparison:
  strategy: deep
  ignore_keys: [updatedAt, version]
store:
  notification_mode: batched
refs:
  default_timeout: 3s
`)

	out, err := execute(t, "config", "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, path+": ok")
	assert.Regexp(t, `comparison\.strategy\s+deep`, out)
	assert.Regexp(t, `comparison\.ignore_keys\s+updatedAt,version`, out)
	assert.Regexp(t, `store\.notification_mode\s+batched`, out)
	assert.Regexp(t, `refs\.default_timeout\s+3s`, out)
	assert.Regexp(t, `telemetry\.metrics\s+none`, out)
}

func TestConfigCheckUsesConfigFlag(t *testing.T) {
	path := writeFile(t, "runtime.json", `{"actions": {"mode": "race"}}`)
	out, err := execute(t, "--config", path, "config", "check")
	require.NoError(t, err)
	assert.Regexp(t, `actions\.mode\s+race`, out)
}

func TestConfigCheckErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    func(t *testing.T) []string
		message string
	}{
		{
			name:    "no file",
			args:    func(*testing.T) []string { return []string{"config", "check"} },
			message: "no config file given",
		},
		{
			name: "invalid value",
			args: func(t *testing.T) []string {
				return []string{"config", "check", writeFile(t, "bad.yaml", "actions:\n  mode: chaos\n")}
			},
			message: "actions.mode",
		},
		{
			name: "unsupported extension",
			args: func(t *testing.T) []string {
				return []string{"config", "check", writeFile(t, "runtime.toml", "x = 1")}
			},
			message: "unsupported config file extension",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args(t)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}
