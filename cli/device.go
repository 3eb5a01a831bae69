package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/netstats"
)

func (cli *CLI) newStatsCmd() *cobra.Command {
	var (
		count    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show tunnel throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := cli.Host(ctx); err != nil {
				return err
			}
			if interval <= 0 {
				interval = cli.Config.Stats.Interval
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			topic := &cli.adapter.Events().NetworkStats
			sampler := netstats.NewSampler(cli.adapter, topic, interval)

			// the first sample only seeds the rates
			seen := -1
			tok := topic.Subscribe(func(s bridge.NetworkStats) {
				seen++
				if seen == 0 {
					return
				}
				if cli.Output.IsJSON() {
					_ = cli.Output.WriteJSON(s)
				} else {
					cli.Output.Printf("↓ %-12s ↑ %-12s total ↓ %s ↑ %s\n",
						netstats.FormatRate(s.DownloadRate), netstats.FormatRate(s.UploadRate),
						netstats.FormatTotal(s.DownloadBytes), netstats.FormatTotal(s.UploadBytes))
				}
				if count > 0 && seen >= count {
					cancel()
				}
			})
			defer topic.Unsubscribe(tok)

			_ = sampler.Run(ctx)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Stop after this many samples (0 runs until interrupted)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Sampling interval (defaults to the configuration)")
	return cmd
}

func (cli *CLI) newHotspotCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:       "hotspot [on|off]",
		Short:     "Show or switch the hotspot",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := cli.Host(ctx); err != nil {
				return err
			}

			state := cli.adapter.HotspotStatus(ctx)
			if len(args) == 1 {
				var err error
				switch strings.ToLower(args[0]) {
				case "on":
					err = cli.adapter.StartHotspot(ctx)
				case "off":
					err = cli.adapter.StopHotspot(ctx)
				default:
					return fmt.Errorf("invalid hotspot state %q: must be 'on' or 'off'", args[0])
				}
				if err != nil {
					return err
				}
				state = waitHotspotChange(ctx, cli.adapter, state, common.HotspotPollInterval, timeout)
			}

			return cli.Output.Write(map[string]string{"hotspot": string(state)}, func(w io.Writer) {
				fmt.Fprintf(w, "Hotspot: %s\n", orDash(string(state)))
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "How long to wait for the change")
	return cmd
}

// HotspotReader reads the hotspot state.
type HotspotReader interface {
	HotspotStatus(ctx context.Context) bridge.HotspotState
}

// waitHotspotChange polls until the state differs from prev, ctx ends or
// timeout elapses, and returns the last state read.
func waitHotspotChange(ctx context.Context, r HotspotReader, prev bridge.HotspotState, interval, timeout time.Duration) bridge.HotspotState {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	state := prev
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return state
		case <-ticker.C:
		}
		state = r.HotspotStatus(ctx)
		if state != prev {
			return state
		}
	}
	return state
}

func (cli *CLI) newAirplaneCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "airplane [on|off]",
		Short:     "Show or switch airplane mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := cli.Host(ctx); err != nil {
				return err
			}

			active := cli.adapter.AirplaneActive(ctx)
			if len(args) == 1 {
				switch strings.ToLower(args[0]) {
				case "on":
					active = cli.adapter.ToggleAirplane(ctx, true)
				case "off":
					active = cli.adapter.ToggleAirplane(ctx, false)
				default:
					return fmt.Errorf("invalid airplane state %q: must be 'on' or 'off'", args[0])
				}
			}

			return cli.Output.Write(map[string]bool{"airplane": active}, func(w io.Writer) {
				fmt.Fprintf(w, "Airplane mode: %s\n", onOff(active))
			})
		},
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// hostInfo is what "ssht host" reports.
type hostInfo struct {
	Capabilities  []bridge.Capability `json:"capabilities"`
	ConfigVersion string              `json:"config_version"`
	StatusBar     int                 `json:"status_bar_height"`
	NavigationBar int                 `json:"navigation_bar_height"`
	LocalIP       string              `json:"local_ip"`
}

func (cli *CLI) newHostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Show what the host supports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := cli.Host(ctx); err != nil {
				return err
			}
			info := hostInfo{
				Capabilities:  cli.adapter.Capabilities(),
				ConfigVersion: cli.adapter.ConfigVersion(ctx),
				StatusBar:     cli.adapter.StatusBarHeight(ctx),
				NavigationBar: cli.adapter.NavigationBarHeight(ctx),
				LocalIP:       cli.adapter.LocalIP(ctx),
			}
			return cli.Output.Write(info, func(w io.Writer) {
				caps := make([]string, len(info.Capabilities))
				for i, c := range info.Capabilities {
					caps[i] = string(c)
				}
				fmt.Fprintf(w, "Capabilities:   %s\n", strings.Join(caps, ", "))
				fmt.Fprintf(w, "Config version: %s\n", orDash(info.ConfigVersion))
				fmt.Fprintf(w, "Local IP:       %s\n", orDash(info.LocalIP))
				fmt.Fprintf(w, "Bars:           status %dpx, navigation %dpx\n", info.StatusBar, info.NavigationBar)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Ask the host to clear its app data",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := cli.Host(ctx); err != nil {
				return err
			}
			if !cli.adapter.CleanApp(ctx) {
				return fmt.Errorf("host did not clear its data")
			}
			cli.Output.Printf("✓ Host data cleared\n")
			return nil
		},
	})
	return cmd
}
