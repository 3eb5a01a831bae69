package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/config"
	"github.com/yllada/ssht-client/keyring"
	"github.com/yllada/ssht-client/vpn"
)

// filterFlags are the candidate filters shared by profiles and autoconnect.
type filterFlags struct {
	categories []int
	configType string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntSliceVar(&f.categories, "category", nil, "Only profiles in these category ids")
	cmd.Flags().StringVar(&f.configType, "type", "", "Profile family: all, ssh or v2ray")
}

// filter merges the flags over the configured defaults.
func (cli *CLI) filter(f filterFlags) vpn.ProfileFilter {
	out := vpn.ProfileFilter{
		Categories: cli.Config.AutoConnect.Categories,
		Type:       cli.Config.AutoConnect.Type,
	}
	if len(f.categories) > 0 {
		out.Categories = f.categories
	}
	if f.configType != "" {
		out.Type = f.configType
	}
	return out
}

func (cli *CLI) newProfilesCmd() *cobra.Command {
	var flags filterFlags
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"list"},
		Short:   "List the host's connection profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := cli.Host(ctx)
			if err != nil {
				return err
			}

			profiles := cli.filter(flags).Apply(m.ProfileManager().List(ctx))
			active := cli.adapter.ActiveProfile(ctx)

			return cli.Output.Write(profiles, func(w io.Writer) {
				if len(profiles) == 0 {
					fmt.Fprintln(w, "No profiles match.")
					return
				}
				rows := make([][]string, 0, len(profiles))
				for _, p := range profiles {
					rows = append(rows, []string{
						strconv.Itoa(p.ID),
						p.Name,
						orDash(p.CategoryName),
						p.Mode,
						yesNo(active != nil && active.ID == p.ID),
					})
				}
				_ = cli.Output.Table([]string{"ID", "NAME", "CATEGORY", "MODE", "ACTIVE"}, rows)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (cli *CLI) newSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <profile>",
		Short: "Mark a profile (name or id) as active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := cli.Host(ctx)
			if err != nil {
				return err
			}
			p, err := m.SelectProfile(ctx, args[0])
			if err != nil {
				return err
			}
			return cli.Output.Write(p, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Selected %s\n", p.Name)
			})
		},
	}
}

func (cli *CLI) newConnectCmd() *cobra.Command {
	var (
		noWait  bool
		watch   bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "connect [profile]",
		Short: "Start the tunnel with the active (or given) profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := cli.Host(ctx)
			if err != nil {
				return err
			}

			cli.warnPendingAcceptance(ctx)
			if len(args) == 1 {
				if _, err := m.SelectProfile(ctx, args[0]); err != nil {
					return err
				}
			}
			profile := cli.adapter.ActiveProfile(ctx)
			if profile == nil {
				return common.ErrNoActiveProfile
			}
			if err := cli.applySavedCredentials(ctx, *profile); err != nil {
				cli.Logger.Warnw("could not apply saved credentials", "profile", profile.Name, "error", err)
			}

			cli.Output.Printf("Connecting to %s...\n", profile.Name)
			if noWait {
				return m.Connect(ctx)
			}
			if err := m.ConnectAndWait(ctx, cli.Config.AutoConnect.PollInterval, timeout); err != nil {
				return fmt.Errorf("connection failed: %w", err)
			}

			status := m.Status(ctx)
			if err := cli.Output.Write(status, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Connected to %s\n", profile.Name)
			}); err != nil {
				return err
			}

			if watch {
				return cli.watch(ctx, m)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return once the host accepted the start command")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep running and check the tunnel's health")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for CONNECTED")
	return cmd
}

func newHealthChecker(cfg *config.Config, m *vpn.Manager) *vpn.HealthChecker {
	hcfg := vpn.DefaultHealthConfig()
	hcfg.AutoReconnect = cfg.AutoReconnect
	hcfg.ProbeURL = cfg.AutoConnect.ProbeURL
	hcfg.ProbeTimeout = cfg.AutoConnect.ProbeTimeout
	return vpn.NewHealthChecker(m, hcfg)
}

// watch runs health checks until ctx is cancelled.
func (cli *CLI) watch(ctx context.Context, m *vpn.Manager) error {
	hc := newHealthChecker(cli.Config, m)
	hc.SetOnHealthChange(func(_ int, oldState, newState vpn.HealthState) {
		cli.Output.Printf("Health: %s -> %s\n", oldState, newState)
	})
	hc.SetOnReconnecting(func(_ int, attempt int) {
		cli.Output.Printf("Reconnecting (attempt %d)...\n", attempt)
	})
	hc.SetOnReconnectFailed(func(_ int, err error) {
		cli.Output.Printf("Reconnect failed: %v\n", err)
	})

	hc.Start()
	defer hc.Stop()

	cli.Output.Printf("Watching the tunnel, press Ctrl+C to stop.\n")
	<-ctx.Done()
	return nil
}

// applySavedCredentials pushes the stored login for p, limited to the
// fields the profile does not embed.
func (cli *CLI) applySavedCredentials(ctx context.Context, p bridge.Profile) error {
	store, err := cli.keyring()
	if err != nil {
		return err
	}
	creds, err := store.Load(p.ID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !cli.adapter.ShouldShowInput(ctx, bridge.FieldUsername) {
		creds.Username = ""
	}
	if !cli.adapter.ShouldShowInput(ctx, bridge.FieldPassword) {
		creds.Password = ""
	}
	if !cli.adapter.ShouldShowInput(ctx, bridge.FieldUUID) {
		creds.UUID = ""
	}
	return keyring.Apply(ctx, cli.adapter, creds)
}

func (cli *CLI) newDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Stop the tunnel",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := cli.Host(ctx)
			if err != nil {
				return err
			}
			if err := m.Disconnect(ctx); err != nil {
				if errors.Is(err, vpn.ErrNotConnected) {
					cli.Output.Printf("No active connection.\n")
					return nil
				}
				return err
			}
			cli.Output.Printf("✓ Disconnected\n")
			return nil
		},
	}
}

func (cli *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the tunnel state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := cli.Host(ctx)
			if err != nil {
				return err
			}

			status := m.Status(ctx)
			return cli.Output.Write(status, func(w io.Writer) {
				profile := "-"
				if status.Profile != nil {
					profile = status.Profile.Name
				}
				uptime := "-"
				if status.Connected {
					uptime = formatDuration(status.Uptime)
				}
				_ = cli.Output.Table(
					[]string{"PROFILE", "STATUS", "UPTIME", "LOCAL IP", "ERROR"},
					[][]string{{profile, status.Label, uptime, orDash(cli.adapter.LocalIP(ctx)), orDash(status.Error)}},
				)
			})
		},
	}
}

func (cli *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Output.Write(cli.version, func(w io.Writer) {
				fmt.Fprintf(w, "ssht %s\n", cli.version.Version)
				if cli.version.BuildTime != "" && cli.version.BuildTime != "unknown" {
					fmt.Fprintf(w, "  Build:  %s\n", cli.version.BuildTime)
					fmt.Fprintf(w, "  Commit: %s\n", cli.version.Commit)
				}
			})
		},
	}
}
