// Package cli provides the command-line interface for ali-bastion.
package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/treykane/ali-bastion/internal/appconfig"
	"github.com/treykane/ali-bastion/internal/config"
	"github.com/treykane/ali-bastion/internal/doctor"
	"github.com/treykane/ali-bastion/internal/events"
	"github.com/treykane/ali-bastion/internal/history"
	"github.com/treykane/ali-bastion/internal/model"
	"github.com/treykane/ali-bastion/internal/preflight"
	"github.com/treykane/ali-bastion/internal/registry"
	"github.com/treykane/ali-bastion/internal/secret"
	"github.com/treykane/ali-bastion/internal/security"
	"github.com/treykane/ali-bastion/internal/util"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	registryPath string
	debug        bool
}

// load reads the app config and the registry it points at. --config wins over
// registry_path from config.yaml.
func (o *globalOptions) load() (appconfig.Config, *registry.Registry, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		slog.Warn("failed to load app config, using defaults", "error", err)
		cfg = appconfig.Default()
	}
	path, err := o.registryFile(cfg)
	if err != nil {
		return cfg, nil, err
	}
	reg, err := registry.Load(afero.NewOsFs(), path)
	if err != nil {
		return cfg, nil, security.Classify(err,
			fmt.Sprintf("host registry %s could not be loaded; run '%s doctor' for details", path, util.AppName),
			err.Error())
	}
	return cfg, reg, nil
}

func (o *globalOptions) registryFile(cfg appconfig.Config) (string, error) {
	if p := strings.TrimSpace(o.registryPath); p != "" {
		return p, nil
	}
	return cfg.ResolveRegistryPath()
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           util.AppName,
		Short:         "SSH host registry and launcher",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, opts, "")
		},
	}
	root.PersistentFlags().StringVar(&opts.registryPath, "config", "", "path to the host registry file (default ~/.ali-bastion/config.json)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging on stderr")

	root.AddCommand(newAddCmd(opts))
	root.AddCommand(newRemoveCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newConnectCmd(opts))
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newDoctorCmd(opts))
	root.AddCommand(newEventsCmd())
	return root
}

func newAddCmd(opts *globalOptions) *cobra.Command {
	var (
		p           model.HostProfile
		password    string
		askPassword bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a host to the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := registry.ValidateName(p.Name); err != nil {
				return err
			}
			if err := util.ValidatePort(int(p.Port)); err != nil {
				return err
			}
			_, reg, err := opts.load()
			if err != nil {
				return err
			}
			if reg.Has(p.Name) {
				fmt.Printf("Error: Host '%s' already exists. Please use a different name or remove the existing host first.\n", p.Name)
				return nil
			}

			if askPassword {
				fd := int(os.Stdin.Fd())
				if !term.IsTerminal(fd) {
					return fmt.Errorf("--ask-password needs an interactive terminal")
				}
				fmt.Print("Password: ")
				b, err := term.ReadPassword(fd)
				fmt.Println()
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = string(b)
			}
			if askPassword || cmd.Flags().Changed("password") {
				obscured := secret.Obscure(password)
				p.Password = &obscured
			}

			reg.Add(p)
			if err := reg.Save(); err != nil {
				return err
			}
			fmt.Printf("Host '%s' added successfully\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&p.Name, "name", "n", "", "unique name for the host")
	cmd.Flags().StringVarP(&p.Hostname, "hostname", "H", "", "hostname or IP address")
	cmd.Flags().Uint16VarP(&p.Port, "port", "p", model.DefaultPort, "SSH port")
	cmd.Flags().StringVarP(&p.Username, "username", "u", "", "login user")
	cmd.Flags().StringVarP(&password, "password", "P", "", "password, stored obscured (not encrypted)")
	cmd.Flags().BoolVar(&askPassword, "ask-password", false, "prompt for the password without echo")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("hostname")
	_ = cmd.MarkFlagRequired("username")
	cmd.MarkFlagsMutuallyExclusive("password", "ask-password")
	return cmd
}

func newRemoveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a host from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := opts.load()
			if err != nil {
				return err
			}
			name := args[0]
			if !reg.Remove(name) {
				fmt.Printf("Host '%s' not found\n", name)
				return nil
			}
			if err := reg.Save(); err != nil {
				return err
			}
			if err := history.Forget(name); err != nil {
				slog.Warn("failed to update history", "host", name, "error", err)
			}
			fmt.Printf("Host '%s' removed successfully\n", name)
			return nil
		},
	}
}

// listEntry is the JSON shape of a listed host. The stored password never
// leaves the registry, only whether one exists.
type listEntry struct {
	Name        string `json:"name"`
	Hostname    string `json:"hostname"`
	Port        uint16 `json:"port"`
	Username    string `json:"username"`
	HasPassword bool   `json:"has_password"`
}

func newListCmd(opts *globalOptions) *cobra.Command {
	var (
		recent  bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered hosts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, reg, err := opts.load()
			if err != nil {
				return err
			}
			hosts := reg.List()
			if recent {
				lastUsed, err := history.LastUsed()
				if err != nil {
					slog.Warn("failed to load history", "error", err)
				}
				hosts = history.SortHostsRecent(hosts, lastUsed)
			}

			if jsonOut {
				entries := make([]listEntry, 0, len(hosts))
				for _, h := range hosts {
					entries = append(entries, listEntry{
						Name:        h.Name,
						Hostname:    h.Hostname,
						Port:        h.Port,
						Username:    h.Username,
						HasPassword: h.HasPassword(),
					})
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}

			if len(hosts) == 0 {
				fmt.Println("No hosts configured")
				return nil
			}
			fmt.Println("Configured hosts:")
			for _, h := range hosts {
				line := fmt.Sprintf("  - %s: %s", h.Name, h.Address())
				if h.HasPassword() {
					line += " (encrypted password)"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&recent, "recent", false, "order by most recently connected")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newConnectCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "connect [name]",
		Short: "Connect to a host, or pick one interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runConnect(cmd, opts, name)
		},
	}
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	var (
		file      string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import hosts from an OpenSSH client config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				res config.ParseResult
				err error
			)
			if strings.TrimSpace(file) != "" {
				res, err = config.ParseFile(file)
			} else {
				res, err = config.ParseDefault()
			}
			if err != nil {
				return err
			}
			_, reg, err := opts.load()
			if err != nil {
				return err
			}

			added, skipped := 0, 0
			for _, h := range res.Hosts {
				if reg.Has(h.Name) && !overwrite {
					fmt.Printf("skipping %s: already registered\n", h.Name)
					skipped++
					continue
				}
				reg.Add(h)
				added++
			}
			if added > 0 {
				if err := reg.Save(); err != nil {
					return err
				}
			}
			if len(res.Warnings) > 0 {
				fmt.Fprintln(os.Stderr, "warnings:")
				for _, w := range res.Warnings {
					fmt.Fprintf(os.Stderr, "  - %s\n", w)
				}
			}
			fmt.Printf("Imported %d host(s), skipped %d\n", added, skipped)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "OpenSSH config to read (default ~/.ssh/config)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace hosts that are already registered")
	return cmd
}

func newDoctorCmd(opts *globalOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies, the registry, and file permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load()
			if err != nil {
				slog.Warn("failed to load app config, using defaults", "error", err)
				cfg = appconfig.Default()
			}
			path, err := opts.registryFile(cfg)
			if err != nil {
				return err
			}

			report, err := doctor.Run(doctor.Options{RegistryPath: path, Checker: preflight.New(false)})
			if err != nil {
				return err
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			fmt.Printf("%-10s %-8s %-10s %s\n", "BINARY", "FOUND", "REQUIRED", "PATH")
			for _, b := range report.Binaries {
				fmt.Printf("%-10s %-8t %-10t %s\n", b.Name, b.Found, b.Required, util.EmptyDash(b.Path))
			}
			fmt.Println()
			if len(report.Issues) == 0 {
				fmt.Println("No issues found")
				return nil
			}
			for _, issue := range report.Issues {
				fmt.Printf("[%s] %s %s: %s\n", strings.ToUpper(string(issue.Severity)), issue.Check, issue.Target, issue.Message)
				fmt.Printf("    fix: %s\n", issue.Recommendation)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func newEventsCmd() *cobra.Command {
	var (
		host    string
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the connection journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			evts, err := events.NewStore().Read(events.Query{HostName: host, Limit: limit})
			if err != nil {
				return err
			}
			if evts == nil {
				evts = []events.Event{}
			}
			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(evts)
			}
			fmt.Printf("%-20s %-18s %s %-28s %s\n", "TIME", "TYPE", util.PadRight("HOST", util.DefaultNameWidth), "ADDRESS", "MESSAGE")
			for _, e := range evts {
				fmt.Printf("%-20s %-18s %s %-28s %s\n",
					e.Timestamp.Local().Format("2006-01-02 15:04:05"),
					e.EventType,
					util.PadRight(util.EmptyDash(e.HostName), util.DefaultNameWidth),
					util.EmptyDash(e.Address),
					util.EmptyDash(e.Message))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "only show events for this host")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events (most recent)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}
