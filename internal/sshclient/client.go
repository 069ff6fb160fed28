// Package sshclient hands an interactive session over to the system ssh client.
//
// This package does NOT implement the SSH protocol. It builds an argument vector
// for the platform's client (or for a password helper wrapping it) and launches
// it in one of two ways:
//
//   - Replace: the current process image is replaced by the client. On success
//     control never comes back; a returned value always means the replacement
//     failed to start.
//
//   - Supervise: the client runs as a child process with the user's terminal,
//     and its exit status is reported back to the caller.
//
// All arguments go through argv, never through a shell, so host names and
// passwords containing shell metacharacters are passed verbatim. A password given
// to a helper as an argument is visible in process listings while the helper
// runs; that is inherent in delegating to an external client.
package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"

	"github.com/treykane/ali-bastion/internal/appconfig"
	"github.com/treykane/ali-bastion/internal/preflight"
)

// ErrLaunch is wrapped by every LaunchError.
var ErrLaunch = errors.New("ssh launch failed")

// LaunchError reports a client that could not be started or exited non-zero.
type LaunchError struct {
	Program string
	// Status is the exit status of the client, or -1 when it never started
	// or was terminated by a signal.
	Status int
	Err    error
}

func (e *LaunchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s exited with status %d", e.Program, e.Status)
	}
	// The client started but did not exit normally, e.g. killed by a signal.
	var exitErr *exec.ExitError
	if errors.As(e.Err, &exitErr) {
		return fmt.Sprintf("%s terminated: %v", e.Program, e.Err)
	}
	return fmt.Sprintf("failed to execute %s: %v", e.Program, e.Err)
}

func (e *LaunchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLaunch}
	}
	return []error{ErrLaunch, e.Err}
}

// OutcomeKind distinguishes how a launch ended.
type OutcomeKind int

const (
	// OutcomeExited means a supervised client ran and exited successfully.
	OutcomeExited OutcomeKind = iota
	// OutcomeReplaced means the process image was replaced. A real replacement
	// never returns, so callers only observe this from test doubles.
	OutcomeReplaced
)

func (k OutcomeKind) String() string {
	if k == OutcomeReplaced {
		return "replaced"
	}
	return "exited"
}

// Outcome is the successful result of a launch.
type Outcome struct {
	Kind   OutcomeKind
	Status int
}

// Target is a resolved connection request. Secret is the plaintext password,
// nil when the client should negotiate key or agent authentication itself.
type Target struct {
	Hostname string
	Port     uint16
	Username string
	Secret   *string
}

func (t Target) destination() string {
	return t.Username + "@" + t.Hostname
}

// Invocation is the program and argument vector for one client launch.
type Invocation struct {
	Program string
	Args    []string
	// secretAt is the index in Args holding the password, or -1.
	secretAt int
}

// Argv returns the full argument vector including the program name.
func (inv Invocation) Argv() []string {
	return append([]string{inv.Program}, inv.Args...)
}

// Redacted renders the command line with any password masked, for logs.
func (inv Invocation) Redacted() string {
	args := append([]string(nil), inv.Args...)
	if inv.secretAt >= 0 && inv.secretAt < len(args) {
		args[inv.secretAt] = "********"
	}
	return strings.Join(append([]string{inv.Program}, args...), " ")
}

type helperStyle int

const (
	// sshpass -p <pw> ssh -p <port> user@host
	helperChained helperStyle = iota
	// plink -P <port> -pw <pw> user@host
	helperStandalone
)

// Toolchain names the client programs for a platform.
type Toolchain struct {
	SSH            string
	PasswordHelper string
	style          helperStyle
}

// ToolchainFor returns the toolchain used on goos.
func ToolchainFor(goos string) Toolchain {
	if goos == "windows" {
		return Toolchain{SSH: preflight.SSHBinary, PasswordHelper: preflight.PlinkBinary, style: helperStandalone}
	}
	return Toolchain{SSH: preflight.SSHBinary, PasswordHelper: preflight.SSHPassBinary, style: helperChained}
}

// BuildInvocation composes the client command line for t.
//
// Examples (unix):
//
//	ssh -p 60022 ops@10.0.0.5
//	sshpass -p <pw> ssh -p 60022 ops@10.0.0.5
func (tc Toolchain) BuildInvocation(t Target) Invocation {
	port := strconv.Itoa(int(t.Port))
	if t.Secret == nil {
		return Invocation{Program: tc.SSH, Args: []string{"-p", port, t.destination()}, secretAt: -1}
	}
	if tc.style == helperStandalone {
		return Invocation{
			Program:  tc.PasswordHelper,
			Args:     []string{"-P", port, "-pw", *t.Secret, t.destination()},
			secretAt: 3,
		}
	}
	return Invocation{
		Program:  tc.PasswordHelper,
		Args:     []string{"-p", *t.Secret, tc.SSH, "-p", port, t.destination()},
		secretAt: 1,
	}
}

// Preflighter verifies external dependencies before a launch.
type Preflighter interface {
	Ensure(ctx context.Context, requiresPassword bool) error
}

// Launcher starts a client invocation.
type Launcher interface {
	Launch(ctx context.Context, inv Invocation) (Outcome, error)
}

// NewLauncher returns the launcher for mode. LaunchAuto replaces the process
// where the platform supports it and supervises otherwise.
func NewLauncher(mode appconfig.LaunchMode, usePTY bool) Launcher {
	switch mode {
	case appconfig.LaunchExec:
		return NewReplaceLauncher()
	case appconfig.LaunchSupervise:
		return NewSuperviseLauncher(usePTY)
	}
	if ReplaceSupported {
		return NewReplaceLauncher()
	}
	return NewSuperviseLauncher(usePTY)
}

// Dispatcher runs the preflight and launch steps of a connection.
type Dispatcher struct {
	Preflight Preflighter
	Toolchain Toolchain
	Launcher  Launcher
	Out       io.Writer
}

// NewDispatcher wires a dispatcher for the running platform.
func NewDispatcher(pf Preflighter, l Launcher, out io.Writer) *Dispatcher {
	return &Dispatcher{Preflight: pf, Toolchain: ToolchainFor(runtime.GOOS), Launcher: l, Out: out}
}

// Connect checks dependencies and launches the client for t. With a replacing
// launcher it returns only when the replacement failed.
func (d *Dispatcher) Connect(ctx context.Context, t Target) (Outcome, error) {
	if err := d.Preflight.Ensure(ctx, t.Secret != nil); err != nil {
		return Outcome{}, err
	}
	inv := d.Toolchain.BuildInvocation(t)
	if d.Out != nil {
		suffix := ""
		if t.Secret != nil {
			suffix = " with password"
		}
		fmt.Fprintf(d.Out, "Launching SSH connection to %s:%d%s...\n", t.destination(), t.Port, suffix)
	}
	slog.Debug("launching ssh client", "command", inv.Redacted())
	return d.Launcher.Launch(ctx, inv)
}
