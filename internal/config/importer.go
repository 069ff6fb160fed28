// Package config imports host profiles from an OpenSSH client config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"

	"github.com/treykane/ali-bastion/internal/model"
	"github.com/treykane/ali-bastion/internal/util"
)

// DefaultSSHPort is the port assumed for imported hosts without a Port directive.
const DefaultSSHPort uint16 = 22

type ParseResult struct {
	Hosts    []model.HostProfile
	Warnings []string
}

// ParseDefault parses ~/.ssh/config.
func ParseDefault() (ParseResult, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return ParseResult{}, fmt.Errorf("resolve home dir: %w", err)
	}
	return ParseFile(filepath.Join(home, ".ssh", "config"))
}

// ParseFile turns every concrete Host alias in path into a profile. Values are
// resolved with OpenSSH first-match semantics, so Host * defaults apply.
// Aliases without a User are skipped with a warning since a profile needs one.
func ParseFile(path string) (ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ParseResult{Warnings: []string{fmt.Sprintf("config file not found: %s", path)}}, nil
		}
		return ParseResult{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return ParseResult{}, fmt.Errorf("parse %s: %w", path, err)
	}

	var res ParseResult
	seen := map[string]bool{}
	for _, host := range cfg.Hosts {
		for _, pat := range host.Patterns {
			alias := pat.String()
			if !isConcrete(alias) || seen[alias] {
				continue
			}
			seen[alias] = true
			p, warn := resolve(cfg, alias)
			if warn != "" {
				res.Warnings = append(res.Warnings, warn)
				continue
			}
			res.Hosts = append(res.Hosts, p)
		}
	}
	return res, nil
}

func resolve(cfg *ssh_config.Config, alias string) (model.HostProfile, string) {
	get := func(key string) string {
		v, err := cfg.Get(alias, key)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(v)
	}

	user := get("User")
	if user == "" {
		return model.HostProfile{}, fmt.Sprintf("skipping %s: no User configured", alias)
	}
	port := DefaultSSHPort
	if raw := get("Port"); raw != "" {
		n, err := util.ParsePort(raw)
		if err != nil {
			return model.HostProfile{}, fmt.Sprintf("skipping %s: %v", alias, err)
		}
		port = n
	}
	return model.HostProfile{
		Name:     alias,
		Hostname: util.DefaultString(get("HostName"), alias),
		Port:     port,
		Username: user,
	}, ""
}

func isConcrete(alias string) bool {
	if alias == "" || strings.HasPrefix(alias, "!") {
		return false
	}
	return !strings.ContainsAny(alias, "*?")
}
