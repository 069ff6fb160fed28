package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treykane/ali-bastion/internal/appconfig"
	"github.com/treykane/ali-bastion/internal/events"
	"github.com/treykane/ali-bastion/internal/history"
	"github.com/treykane/ali-bastion/internal/preflight"
	"github.com/treykane/ali-bastion/internal/secret"
	"github.com/treykane/ali-bastion/internal/security"
	"github.com/treykane/ali-bastion/internal/sshclient"
)

type fakeLauncher struct {
	calls []sshclient.Invocation
	out   sshclient.Outcome
	err   error
}

func (f *fakeLauncher) Launch(_ context.Context, inv sshclient.Invocation) (sshclient.Outcome, error) {
	f.calls = append(f.calls, inv)
	return f.out, f.err
}

type fakePreflight struct{ err error }

func (f fakePreflight) Ensure(context.Context, bool) error { return f.err }

// stubDispatcher replaces the real dispatcher for the duration of the test.
func stubDispatcher(t *testing.T, pf sshclient.Preflighter, l sshclient.Launcher) {
	t.Helper()
	orig := newDispatcher
	newDispatcher = func(appconfig.Config) *sshclient.Dispatcher {
		return &sshclient.Dispatcher{
			Preflight: pf,
			Toolchain: sshclient.ToolchainFor("linux"),
			Launcher:  l,
			Out:       os.Stdout,
		}
	}
	t.Cleanup(func() { newDispatcher = orig })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return captureStdout(func() error { return cmd.Execute() })
}

func TestAddListRemoveLifecycle(t *testing.T) {
	setupCLIEnv(t)

	out, err := run(t, "add", "-n", "web", "-H", "10.0.0.5", "-u", "deploy", "-p", "2222")
	require.NoError(t, err)
	assert.Contains(t, out, "Host 'web' added successfully")

	_, err = run(t, "add", "-n", "db", "-H", "10.0.0.6", "-u", "root", "-P", "s3cret")
	require.NoError(t, err)

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Configured hosts:",
		"  - web: deploy@10.0.0.5:2222",
		"  - db: root@10.0.0.6:60022 (encrypted password)",
		"",
	}, "\n"), out)

	raw, err := os.ReadFile(registryFile(t))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")

	out, err = run(t, "remove", "web")
	require.NoError(t, err)
	assert.Contains(t, out, "Host 'web' removed successfully")

	out, err = run(t, "remove", "web")
	require.NoError(t, err)
	assert.Contains(t, out, "Host 'web' not found")
}

func TestAddRefusesExistingName(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "web", "-H", "a", "-u", "u")
	require.NoError(t, err)

	out, err := run(t, "add", "-n", "web", "-H", "b", "-u", "u")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	out, err = run(t, "list", "--json")
	require.NoError(t, err)
	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Hostname)
}

func TestAddRejectsPortZero(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "web", "-H", "a", "-u", "u", "-p", "0")
	require.Error(t, err)
}

func TestListJSONHidesPassword(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "db", "-H", "h", "-u", "u", "-P", "pw")
	require.NoError(t, err)

	out, err := run(t, "list", "--json")
	require.NoError(t, err)
	assert.NotContains(t, out, `"password"`)
	assert.NotContains(t, out, secret.Obscure("pw"))
	var entries []listEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.True(t, entries[0].HasPassword)
}

func TestListRecentOrdering(t *testing.T) {
	setupCLIEnv(t)
	for _, n := range []string{"a", "b", "c"} {
		_, err := run(t, "add", "-n", n, "-H", n+".example", "-u", "u")
		require.NoError(t, err)
	}
	require.NoError(t, history.Touch("b"))

	out, err := run(t, "list", "--recent")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "  - b:"), "got %q", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "  - a:"), "got %q", lines[2])
}

func TestConnectEmptyRegistry(t *testing.T) {
	setupCLIEnv(t)
	l := &fakeLauncher{}
	stubDispatcher(t, fakePreflight{}, l)

	out, err := run(t, "connect", "any")
	require.NoError(t, err)
	assert.Contains(t, out, "No hosts configured. Use 'add' command to add a host first.")
	assert.Empty(t, l.calls)
}

func TestConnectUnknownHost(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "web", "-H", "h", "-u", "u")
	require.NoError(t, err)
	l := &fakeLauncher{}
	stubDispatcher(t, fakePreflight{}, l)

	out, err := run(t, "connect", "ghost")
	require.NoError(t, err)
	assert.Contains(t, out, "Host 'ghost' not found")
	assert.Empty(t, l.calls)
}

func TestConnectByNameLaunchesAndRecords(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "db", "-H", "10.0.0.6", "-u", "root", "-p", "22", "-P", "pw")
	require.NoError(t, err)
	l := &fakeLauncher{out: sshclient.Outcome{Kind: sshclient.OutcomeExited}}
	stubDispatcher(t, fakePreflight{}, l)

	out, err := run(t, "connect", "db")
	require.NoError(t, err)
	assert.Contains(t, out, "Launching SSH connection to root@10.0.0.6:22 with password...")
	require.Len(t, l.calls, 1)
	assert.Equal(t, []string{"sshpass", "-p", "pw", "ssh", "-p", "22", "root@10.0.0.6"}, l.calls[0].Argv())

	evts, err := events.NewStore().Read(events.Query{HostName: "db"})
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Equal(t, events.TypeConnectRequested, evts[0].EventType)
	assert.Equal(t, events.TypeSessionEnded, evts[1].EventType)
	assert.True(t, evts[1].WithPassword)

	lastUsed, err := history.LastUsed()
	require.NoError(t, err)
	assert.NotZero(t, lastUsed["db"])
}

func TestConnectDegradesOnUndecodablePassword(t *testing.T) {
	setupCLIEnv(t)
	path := registryFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	body := `{"hosts":{"old":{"name":"old","hostname":"h","port":22,"username":"u","password":"%%%"}}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	l := &fakeLauncher{}
	stubDispatcher(t, fakePreflight{}, l)

	out, err := run(t, "connect", "old")
	require.NoError(t, err)
	assert.Contains(t, out, "Warning: Failed to decrypt password:")
	assert.Contains(t, out, "Launching SSH connection to u@h:22...")
	require.Len(t, l.calls, 1)
	assert.Equal(t, []string{"ssh", "-p", "22", "u@h"}, l.calls[0].Argv())
}

func TestConnectMissingDependencyFails(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "db", "-H", "h", "-u", "u", "-P", "pw")
	require.NoError(t, err)
	l := &fakeLauncher{}
	stubDispatcher(t, fakePreflight{err: &preflight.MissingDependencyError{Binary: "sshpass", Reason: "for passwords"}}, l)

	_, err = run(t, "connect", "db")
	require.Error(t, err)
	assert.True(t, errors.Is(err, preflight.ErrMissingDependency))
	assert.Empty(t, l.calls)

	evts, err := events.NewStore().Read(events.Query{EventType: events.TypePreflightFailed})
	require.NoError(t, err)
	require.Len(t, evts, 1)
}

func TestConnectLaunchFailureFails(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "web", "-H", "h", "-u", "u")
	require.NoError(t, err)
	l := &fakeLauncher{err: &sshclient.LaunchError{Program: "ssh", Status: 255}}
	stubDispatcher(t, fakePreflight{}, l)

	_, err = run(t, "connect", "web")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sshclient.ErrLaunch))

	evts, err := events.NewStore().Read(events.Query{EventType: events.TypeLaunchFailed})
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, 255, evts[0].ExitStatus)
}

func TestConnectWithoutNameNeedsTerminal(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "web", "-H", "h", "-u", "u")
	require.NoError(t, err)
	stubTerminal(t, false)

	_, err = run(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a terminal")
}

func TestConnectSingleHostSkipsPicker(t *testing.T) {
	setupCLIEnv(t)
	_, err := run(t, "add", "-n", "solo", "-H", "h", "-u", "u")
	require.NoError(t, err)
	stubTerminal(t, true)
	l := &fakeLauncher{}
	stubDispatcher(t, fakePreflight{}, l)

	out, err := run(t, "connect")
	require.NoError(t, err)
	assert.Contains(t, out, "Launching SSH connection to u@h:60022...")
	require.Len(t, l.calls, 1)
}

func TestImportFromOpenSSHConfig(t *testing.T) {
	home := setupCLIEnv(t)
	sshCfg := filepath.Join(home, "ssh_config")
	require.NoError(t, os.WriteFile(sshCfg, []byte(strings.Join([]string{
		"Host api",
		"  HostName 127.0.0.1",
		"  User test",
		"Host nouser",
		"  HostName 10.0.0.1",
		"",
	}, "\n")), 0o600))

	out, err := run(t, "import", "--file", sshCfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 host(s), skipped 0")

	out, err = run(t, "import", "--file", sshCfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 0 host(s), skipped 1")

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "  - api: test@127.0.0.1:22")
}

func TestEventsJSONOutput(t *testing.T) {
	setupCLIEnv(t)
	out, err := run(t, "events", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestDoctorJSONOutput(t *testing.T) {
	setupCLIEnv(t)
	out, err := run(t, "doctor", "--json")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload), "output=%s", out)
	assert.Contains(t, payload, "binaries")
	assert.Contains(t, payload, "issues")
}

func TestConfigFlagOverridesRegistryPath(t *testing.T) {
	home := setupCLIEnv(t)
	custom := filepath.Join(home, "elsewhere", "hosts.json")

	_, err := run(t, "--config", custom, "add", "-n", "web", "-H", "h", "-u", "u")
	require.NoError(t, err)
	_, err = os.Stat(custom)
	require.NoError(t, err)

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No hosts configured")
}

func captureStdout(fn func() error) (string, error) {
	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}
	os.Stdout = w
	done := make(chan []byte)
	go func() {
		b, _ := io.ReadAll(r)
		done <- b
	}()
	runErr := fn()
	_ = w.Close()
	os.Stdout = orig
	return string(<-done), runErr
}

func stubTerminal(t *testing.T, isTTY bool) {
	t.Helper()
	orig := stdinIsTerminal
	stdinIsTerminal = func() bool { return isTTY }
	t.Cleanup(func() { stdinIsTerminal = orig })
}

func setupCLIEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return home
}

func registryFile(t *testing.T) string {
	t.Helper()
	p, err := appconfig.DefaultRegistryPath()
	require.NoError(t, err)
	return p
}

func TestCorruptRegistryIsClassified(t *testing.T) {
	setupCLIEnv(t)
	path := registryFile(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o600))

	_, err := run(t, "list")
	require.Error(t, err)
	var ce *security.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, security.UserMessage(err, true), "doctor")
	assert.Contains(t, security.DebugMessage(err), "parse registry")
}
