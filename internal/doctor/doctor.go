package doctor

import (
	"fmt"
	"sort"

	"github.com/spf13/afero"

	"github.com/treykane/ali-bastion/internal/preflight"
	"github.com/treykane/ali-bastion/internal/registry"
	"github.com/treykane/ali-bastion/internal/secret"
	"github.com/treykane/ali-bastion/internal/security"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Issue struct {
	Severity       Severity `json:"severity"`
	Check          string   `json:"check"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type Report struct {
	Binaries []preflight.Binary `json:"binaries"`
	Issues   []Issue            `json:"issues"`
}

// Options selects what Run inspects. A nil Fs uses the OS filesystem and a
// nil Checker probes PATH without installing anything.
type Options struct {
	Fs           afero.Fs
	RegistryPath string
	Checker      *preflight.Checker
}

// Run executes local diagnostics for ali-bastion operations.
func Run(opts Options) (Report, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Checker == nil {
		opts.Checker = preflight.New(false)
	}

	var issues []Issue
	reg, err := registry.Load(opts.Fs, opts.RegistryPath)
	if err != nil {
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "registry",
			Target:         opts.RegistryPath,
			Message:        err.Error(),
			Recommendation: "fix or remove the registry file, then re-add hosts",
		})
		reg = registry.New(opts.Fs, opts.RegistryPath)
	}
	hosts := reg.List()

	passwordHosts := false
	for _, h := range hosts {
		if !h.HasPassword() {
			continue
		}
		passwordHosts = true
		if _, err := secret.Reveal(*h.Password); err != nil {
			issues = append(issues, Issue{
				Severity:       SeverityMedium,
				Check:          "stored-password",
				Target:         h.Name,
				Message:        err.Error(),
				Recommendation: fmt.Sprintf("re-add %q with a fresh password", h.Name),
			})
		}
	}

	binaries := opts.Checker.Status(passwordHosts)
	for _, b := range binaries {
		if b.Found || !b.Required {
			continue
		}
		issues = append(issues, Issue{
			Severity:       SeverityHigh,
			Check:          "binary",
			Target:         b.Name,
			Message:        fmt.Sprintf("%s not found on PATH (%s)", b.Name, b.Purpose),
			Recommendation: fmt.Sprintf("install %s and ensure it is on PATH", b.Name),
		})
	}

	for _, f := range security.RunLocalAudit(reg.Path(), hosts).Findings {
		issues = append(issues, Issue{
			Severity:       Severity(f.Severity),
			Check:          "security-audit",
			Target:         f.Target,
			Message:        f.Message,
			Recommendation: f.Recommendation,
		})
	}

	sort.Slice(issues, func(i, j int) bool {
		ri := severityRank(issues[i].Severity)
		rj := severityRank(issues[j].Severity)
		if ri != rj {
			return ri > rj
		}
		if issues[i].Check != issues[j].Check {
			return issues[i].Check < issues[j].Check
		}
		if issues[i].Target != issues[j].Target {
			return issues[i].Target < issues[j].Target
		}
		return issues[i].Message < issues[j].Message
	})
	return Report{Binaries: binaries, Issues: issues}, nil
}

func severityRank(s Severity) int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	default:
		return 1
	}
}
