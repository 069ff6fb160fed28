package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/treykane/ali-bastion/internal/appconfig"
	"github.com/treykane/ali-bastion/internal/events"
	"github.com/treykane/ali-bastion/internal/history"
	"github.com/treykane/ali-bastion/internal/preflight"
	"github.com/treykane/ali-bastion/internal/registry"
	"github.com/treykane/ali-bastion/internal/secret"
	"github.com/treykane/ali-bastion/internal/sshclient"
	"github.com/treykane/ali-bastion/internal/ui"
)

// newDispatcher is swapped in tests to avoid touching PATH or exec'ing ssh.
var newDispatcher = func(cfg appconfig.Config) *sshclient.Dispatcher {
	return sshclient.NewDispatcher(
		preflight.New(cfg.Preflight.AutoInstall),
		sshclient.NewLauncher(cfg.Connect.LaunchMode, cfg.Connect.UsePTY),
		os.Stdout,
	)
}

// stdinIsTerminal is swapped in tests so the picker path can run on a pipe.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// runConnect resolves a host by name or through the picker and hands it to
// the dispatcher. Unknown names and a cancelled picker are not errors.
func runConnect(cmd *cobra.Command, opts *globalOptions, name string) error {
	cfg, reg, err := opts.load()
	if err != nil {
		return err
	}
	if reg.Len() == 0 {
		fmt.Println("No hosts configured. Use 'add' command to add a host first.")
		return nil
	}

	if name == "" {
		if !stdinIsTerminal() {
			return fmt.Errorf("no host name given and stdin is not a terminal; use 'connect <name>'")
		}
		picked, ok := ui.Select(reg.List(), ui.Options{
			Context:   cmd.Context(),
			AltScreen: cfg.UI.AltScreen,
			NameWidth: cfg.UI.NameWidth,
		})
		if !ok {
			fmt.Println("No host selected")
			return nil
		}
		name = picked
	}

	host, err := reg.Lookup(name)
	if errors.Is(err, registry.ErrNotFound) {
		fmt.Printf("Host '%s' not found\n", name)
		return nil
	}
	if err != nil {
		return err
	}

	target := sshclient.Target{Hostname: host.Hostname, Port: host.Port, Username: host.Username}
	if host.Password != nil {
		pw, err := secret.Reveal(*host.Password)
		if err != nil {
			fmt.Printf("Warning: Failed to decrypt password: %v\n", err)
		} else {
			target.Secret = &pw
		}
	}

	journal := events.NewStore()
	record := func(eventType string, status int, msg string) {
		evt := events.Event{
			Timestamp:    time.Now().UTC(),
			HostName:     host.Name,
			Address:      host.Address(),
			EventType:    eventType,
			WithPassword: target.Secret != nil,
			ExitStatus:   status,
			Message:      msg,
		}
		if err := journal.Append(evt); err != nil {
			slog.Warn("failed to record event", "type", eventType, "error", err)
		}
	}

	// Both are written before launch since a replacing launcher never returns.
	record(events.TypeConnectRequested, 0, "")
	if err := history.Touch(host.Name); err != nil {
		slog.Warn("failed to update history", "host", host.Name, "error", err)
	}

	outcome, err := newDispatcher(cfg).Connect(cmd.Context(), target)
	var missing *preflight.MissingDependencyError
	switch {
	case errors.As(err, &missing):
		record(events.TypePreflightFailed, 0, missing.Error())
		printRemediation(missing)
		return err
	case err != nil:
		status := -1
		var le *sshclient.LaunchError
		if errors.As(err, &le) {
			status = le.Status
		}
		record(events.TypeLaunchFailed, status, err.Error())
		return err
	}
	record(events.TypeSessionEnded, outcome.Status, "")
	slog.Debug("ssh session ended", "host", host.Name, "outcome", outcome.Kind.String(), "status", outcome.Status)
	return nil
}

func printRemediation(e *preflight.MissingDependencyError) {
	if len(e.Remediation) == 0 {
		return
	}
	fmt.Fprintf(os.Stderr, "Please install %s manually:\n", e.Binary)
	for _, line := range e.Remediation {
		fmt.Fprintf(os.Stderr, "  - %s\n", line)
	}
}
