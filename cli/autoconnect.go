package cli

import (
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/tui"
	"github.com/yllada/ssht-client/ui"
	"github.com/yllada/ssht-client/vpn"
)

// engine builds an auto-connect engine over the host.
func (cli *CLI) engine() *autoconnect.Engine {
	ac := cli.Config.AutoConnect
	prober := vpn.NewProber(ac.ProbeURL, ac.ProbeTimeout)
	return autoconnect.New(cli.adapter, prober, ac.Settings, cli.Logger)
}

func (cli *CLI) newAutoConnectCmd() *cobra.Command {
	var (
		flags    filterFlags
		plain    bool
		autoQuit bool
	)
	cmd := &cobra.Command{
		Use:     "autoconnect",
		Aliases: []string{"auto"},
		Short:   "Try each profile until one reaches the internet",
		Long: `autoconnect selects each candidate profile in turn, starts the tunnel,
waits for CONNECTED and checks internet access. The first profile that
passes stays connected; every other attempt is stopped before the next.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := cli.Host(ctx)
			if err != nil {
				return err
			}

			cli.warnPendingAcceptance(ctx)
			engine := cli.engine()
			profiles := m.ProfileManager().List(ctx)
			filter := cli.filter(flags)

			var res autoconnect.Result
			if plain || cli.Output.IsJSON() || !term.IsTerminal(int(os.Stdout.Fd())) {
				res, err = cli.runPlain(cmd, engine, profiles, filter)
			} else {
				res, err = tui.Run(ctx, engine, profiles, filter, tui.Options{AutoQuit: autoQuit})
			}
			if err != nil && !res.Cancelled {
				return err
			}

			if cli.Config.ShowNotifications {
				ui.NewNotifier(true).NotifyAutoConnect(res)
			}
			return cli.Output.Write(res, func(w io.Writer) {
				writeTrials(cli.Output, res)
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&plain, "plain", false, "Print progress lines instead of the interactive view")
	cmd.Flags().BoolVar(&autoQuit, "auto-quit", false, "Leave the interactive view when the run ends")
	return cmd
}

// runPlain runs the engine printing one line per trial.
func (cli *CLI) runPlain(cmd *cobra.Command, engine *autoconnect.Engine, profiles []bridge.Profile, filter vpn.ProfileFilter) (autoconnect.Result, error) {
	tok := engine.Progress().Subscribe(func(p autoconnect.Progress) {
		switch p.Phase {
		case autoconnect.PhaseTrialStarted:
			cli.Output.Printf("[%d/%d] %s: connecting...\n", p.Index+1, p.Total, p.Profile.Name)
		case autoconnect.PhaseTrialFinished:
			cli.Output.Printf("[%d/%d] %s: %s\n", p.Index+1, p.Total, p.Profile.Name, trialText(*p.Trial))
		}
	})
	defer engine.Progress().Unsubscribe(tok)

	return engine.RunFiltered(cmd.Context(), profiles, filter)
}

func trialText(t autoconnect.TrialResult) string {
	if t.Outcome == autoconnect.OutcomeSuccess {
		return "connected"
	}
	return "failed (" + t.Reason + ")"
}

func writeTrials(o *OutputWriter, res autoconnect.Result) {
	if len(res.Trials) > 0 {
		rows := make([][]string, 0, len(res.Trials))
		for i, t := range res.Trials {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				t.ProfileName,
				string(t.Outcome),
				orDash(t.Reason),
				formatDuration(t.Duration),
			})
		}
		_ = o.Table([]string{"#", "PROFILE", "OUTCOME", "REASON", "TIME"}, rows)
		o.Printf("\n")
	}

	switch {
	case res.Succeeded():
		o.Printf("✓ Connected with %s\n", res.Winner.Name)
	case res.Cancelled:
		o.Printf("Test cancelled\n")
	default:
		o.Printf("No profile worked (%d tested)\n", len(res.Trials))
	}
}
