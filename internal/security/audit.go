package security

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/treykane/ali-bastion/internal/appconfig"
	"github.com/treykane/ali-bastion/internal/model"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Finding struct {
	Severity       Severity `json:"severity"`
	Target         string   `json:"target"`
	Message        string   `json:"message"`
	Recommendation string   `json:"recommendation"`
}

type AuditReport struct {
	Findings []Finding `json:"findings"`
}

func (r AuditReport) HasHigh() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// RunLocalAudit inspects the posture of the registry file and the application
// config directory, and flags every host whose password is stored in the registry.
func RunLocalAudit(registryPath string, hosts []model.HostProfile) AuditReport {
	var findings []Finding

	if registryPath != "" {
		checkPathPerm(&findings, filepath.Dir(registryPath), 0o700, false)
		checkPathPerm(&findings, registryPath, 0o600, true)
	}

	if cfgDir, err := appconfig.ConfigDir(); err == nil {
		checkPathPerm(&findings, cfgDir, 0o700, false)
		checkPathPerm(&findings, filepath.Join(cfgDir, "config.yaml"), 0o600, true)
		checkPathPerm(&findings, filepath.Join(cfgDir, "history.json"), 0o600, true)
		checkPathPerm(&findings, filepath.Join(cfgDir, "events.jsonl"), 0o600, true)
	}

	for _, h := range hosts {
		if !h.HasPassword() {
			continue
		}
		findings = append(findings, Finding{
			Severity:       SeverityMedium,
			Target:         "host " + h.Name,
			Message:        "password is stored obscured, not encrypted",
			Recommendation: "switch the host to key-based authentication and re-add it without --password",
		})
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Severity != findings[j].Severity {
			return severityRank(findings[i].Severity) > severityRank(findings[j].Severity)
		}
		if findings[i].Target != findings[j].Target {
			return findings[i].Target < findings[j].Target
		}
		return findings[i].Message < findings[j].Message
	})
	return AuditReport{Findings: findings}
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

func checkPathPerm(findings *[]Finding, path string, max os.FileMode, isFile bool) {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		*findings = append(*findings, Finding{
			Severity:       SeverityLow,
			Target:         path,
			Message:        fmt.Sprintf("unable to inspect permissions: %v", err),
			Recommendation: "verify path and permissions manually",
		})
		return
	}
	mode := st.Mode().Perm()
	if mode&^max != 0 {
		kind := "directory"
		sev := SeverityMedium
		if isFile {
			kind = "file"
			// Group/world-readable registry files expose obscured passwords.
			if mode&0o044 != 0 {
				sev = SeverityHigh
			}
		}
		*findings = append(*findings, Finding{
			Severity:       sev,
			Target:         path,
			Message:        fmt.Sprintf("%s permissions are too broad (%#o)", kind, mode),
			Recommendation: fmt.Sprintf("restrict permissions to %#o or tighter", max),
		})
	}
}
