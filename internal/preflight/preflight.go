// Package preflight verifies that the external programs needed for a connection
// are installed, and makes a best-effort attempt to install the password helper
// when it is missing.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// ErrMissingDependency is wrapped by every MissingDependencyError.
var ErrMissingDependency = errors.New("missing dependency")

// MissingDependencyError names a required program that is absent and could not
// be installed, along with instructions for installing it by hand.
type MissingDependencyError struct {
	Binary      string
	Reason      string
	Remediation []string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s is required %s but was not found", e.Binary, e.Reason)
}

func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

const (
	SSHBinary     = "ssh"
	SSHPassBinary = "sshpass"
	PlinkBinary   = "plink"
)

// PasswordHelper returns the program used to feed a password non-interactively
// on the given platform.
func PasswordHelper(goos string) string {
	if goos == "windows" {
		return PlinkBinary
	}
	return SSHPassBinary
}

type packageManager struct {
	probe string
	argv  []string
}

// Only the first package manager found on PATH is tried.
var sshpassInstallers = []packageManager{
	{probe: "apt-get", argv: []string{"sudo", "apt-get", "install", "-y", SSHPassBinary}},
	{probe: "yum", argv: []string{"sudo", "yum", "install", "-y", SSHPassBinary}},
	{probe: "dnf", argv: []string{"sudo", "dnf", "install", "-y", SSHPassBinary}},
	{probe: "brew", argv: []string{"brew", "install", SSHPassBinary}},
	{probe: "pacman", argv: []string{"sudo", "pacman", "-S", "--noconfirm", SSHPassBinary}},
}

var sshpassRemediation = []string{
	"Ubuntu/Debian: sudo apt-get install sshpass",
	"RHEL/CentOS: sudo yum install sshpass",
	"Fedora: sudo dnf install sshpass",
	"macOS: brew install sshpass",
	"Arch Linux: sudo pacman -S sshpass",
}

var plinkRemediation = []string{
	"Download PuTTY from https://www.chiark.greenend.org.uk/~sgtatham/putty/latest.html",
	"Make sure plink.exe is on your PATH",
}

// Checker performs dependency checks. All fields are injectable for tests; New
// fills them with the real system implementations.
type Checker struct {
	GOOS        string
	LookPath    func(file string) (string, error)
	Run         func(ctx context.Context, argv []string) error
	AutoInstall bool
	Out         io.Writer
}

// New returns a Checker for the running platform.
func New(autoInstall bool) *Checker {
	return &Checker{
		GOOS:        runtime.GOOS,
		LookPath:    exec.LookPath,
		Run:         runInteractive,
		AutoInstall: autoInstall,
		Out:         os.Stdout,
	}
}

func runInteractive(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func (c *Checker) found(name string) bool {
	_, err := c.LookPath(name)
	return err == nil
}

func (c *Checker) printf(format string, args ...any) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, format, args...)
	}
}

// Ensure checks the programs needed for a connection. requiresPassword adds the
// platform's password helper to the requirements.
func (c *Checker) Ensure(ctx context.Context, requiresPassword bool) error {
	if c.GOOS == "windows" {
		return c.ensureWindows(requiresPassword)
	}
	if requiresPassword && !c.found(SSHPassBinary) {
		c.printf("sshpass is required for password-based authentication but not found.\n")
		if err := c.installSSHPass(ctx); err != nil {
			slog.Debug("sshpass install failed", "error", err)
			return &MissingDependencyError{
				Binary:      SSHPassBinary,
				Reason:      "for password-based authentication",
				Remediation: sshpassRemediation,
			}
		}
		c.printf("sshpass installed successfully.\n")
	}
	if !c.found(SSHBinary) {
		return &MissingDependencyError{
			Binary:      SSHBinary,
			Reason:      "(OpenSSH client)",
			Remediation: []string{"Install the OpenSSH client with your system package manager"},
		}
	}
	return nil
}

func (c *Checker) ensureWindows(requiresPassword bool) error {
	if requiresPassword && !c.found(PlinkBinary) {
		return &MissingDependencyError{
			Binary:      PlinkBinary,
			Reason:      "(from PuTTY) for password-based authentication on Windows",
			Remediation: plinkRemediation,
		}
	}
	if !c.found(SSHBinary) {
		slog.Warn("Windows SSH client not found; enable the OpenSSH client feature or install it manually")
	}
	return nil
}

func (c *Checker) installSSHPass(ctx context.Context) error {
	if !c.AutoInstall {
		return errors.New("automatic installation disabled")
	}
	for _, pm := range sshpassInstallers {
		if !c.found(pm.probe) {
			continue
		}
		c.printf("Attempting to install sshpass (%s)...\n", strings.Join(pm.argv, " "))
		if err := c.Run(ctx, pm.argv); err != nil {
			return fmt.Errorf("%s: %w", pm.probe, err)
		}
		if !c.found(SSHPassBinary) {
			return fmt.Errorf("%s reported success but sshpass is still not on PATH", pm.probe)
		}
		return nil
	}
	return errors.New("no supported package manager found")
}

// Binary describes one required program for diagnostics.
type Binary struct {
	Name     string `json:"name"`
	Purpose  string `json:"purpose"`
	Path     string `json:"path,omitempty"`
	Found    bool   `json:"found"`
	Required bool   `json:"required"`
}

// Status reports the programs Ensure would check, without installing anything.
// The password helper is marked required only when passwordHosts is true.
func (c *Checker) Status(passwordHosts bool) []Binary {
	probe := func(name, purpose string, required bool) Binary {
		p, err := c.LookPath(name)
		return Binary{Name: name, Purpose: purpose, Path: p, Found: err == nil, Required: required}
	}
	return []Binary{
		probe(SSHBinary, "OpenSSH client", c.GOOS != "windows"),
		probe(PasswordHelper(c.GOOS), "password-based authentication", passwordHosts),
	}
}
