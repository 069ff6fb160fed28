package sshclient

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// ReplaceLauncher replaces the current process image with the client.
type ReplaceLauncher struct {
	LookPath func(file string) (string, error)
	Exec     func(path string, argv, env []string) error
	Environ  func() []string
}

// NewReplaceLauncher returns a launcher backed by the platform exec call.
func NewReplaceLauncher() *ReplaceLauncher {
	return &ReplaceLauncher{LookPath: exec.LookPath, Exec: replaceProcess, Environ: os.Environ}
}

// Launch only returns when the replacement could not happen.
func (l *ReplaceLauncher) Launch(_ context.Context, inv Invocation) (Outcome, error) {
	path, err := l.LookPath(inv.Program)
	if err != nil {
		return Outcome{}, &LaunchError{Program: inv.Program, Status: -1, Err: err}
	}
	if err := l.Exec(path, inv.Argv(), l.Environ()); err != nil {
		return Outcome{}, &LaunchError{Program: inv.Program, Status: -1, Err: err}
	}
	return Outcome{Kind: OutcomeReplaced}, nil
}

// SuperviseLauncher runs the client as a child and waits for it to exit.
type SuperviseLauncher struct {
	// UsePTY attaches the child to a pseudo-terminal and relays the user's
	// terminal through it instead of sharing stdio directly.
	UsePTY bool
	Stdin  *os.File
	Stdout io.Writer
	Stderr io.Writer
}

// NewSuperviseLauncher returns a launcher wired to the process stdio.
func NewSuperviseLauncher(usePTY bool) *SuperviseLauncher {
	return &SuperviseLauncher{UsePTY: usePTY, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Launch blocks until the client exits. A non-zero exit is a LaunchError
// carrying the status.
func (l *SuperviseLauncher) Launch(ctx context.Context, inv Invocation) (Outcome, error) {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	var err error
	if l.UsePTY {
		err = l.runPTY(cmd)
	} else {
		if l.Stdin != nil {
			cmd.Stdin = l.Stdin
		}
		cmd.Stdout = l.Stdout
		cmd.Stderr = l.Stderr
		err = cmd.Run()
	}
	if err == nil {
		return Outcome{Kind: OutcomeExited}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return Outcome{}, &LaunchError{Program: inv.Program, Status: exitErr.ExitCode(), Err: err}
	}
	return Outcome{}, &LaunchError{Program: inv.Program, Status: -1, Err: err}
}

func (l *SuperviseLauncher) runPTY(cmd *exec.Cmd) error {
	f, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer f.Close()

	if l.Stdin != nil {
		fd := int(l.Stdin.Fd())
		if term.IsTerminal(fd) {
			_ = pty.InheritSize(l.Stdin, f)
			if old, err := term.MakeRaw(fd); err == nil {
				defer func() { _ = term.Restore(fd, old) }()
			}
		}
		go func() {
			_, _ = io.Copy(f, l.Stdin)
		}()
	}

	out := l.Stdout
	if out == nil {
		out = io.Discard
	}
	// Returns once the child closes the pty.
	_, _ = io.Copy(out, f)
	return cmd.Wait()
}
