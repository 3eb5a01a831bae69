// Package cli provides the command-line interface for the SSH T client.
// It drives a host bridge from the terminal: profiles, the tunnel,
// auto-connect, the IP finder, plans and speed tests.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/config"
	"github.com/yllada/ssht-client/vpn"
)

// VersionInfo is injected at build time.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	Commit    string `json:"commit"`
}

// CLI holds the application state for the CLI.
type CLI struct {
	Config  *config.Config
	Logger  *zap.SugaredLogger
	Output  *OutputWriter
	version VersionInfo
	rootCmd *cobra.Command

	// set once a command asks for the host
	adapter *bridge.Adapter
	manager *vpn.Manager
	closers []func()

	// Flags
	configFlag  string
	hostFlag    string
	simFlag     bool
	verboseFlag bool
	outputFlag  string
}

// New creates a new CLI instance.
func New(info VersionInfo) *CLI {
	cli := &CLI{version: info}

	cli.rootCmd = &cobra.Command{
		Use:   "ssht [command]",
		Short: "SSH T PROJECT client",
		Long: `ssht drives the SSH T PROJECT VPN host from the terminal.

It selects connection profiles, starts and stops the tunnel, tries every
profile until one reaches the internet (auto-connect), hunts for a local
IP inside a range by toggling airplane mode, and buys subscription plans.

The host is reached through its HTTP bridge (--host) or simulated
in-process (--sim).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.initialize(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			cli.close()
		},
	}

	cli.rootCmd.PersistentFlags().StringVarP(&cli.configFlag, "config", "c", "", "Path to the configuration file")
	cli.rootCmd.PersistentFlags().StringVar(&cli.hostFlag, "host", "", "Host bridge URL (overrides the configuration)")
	cli.rootCmd.PersistentFlags().BoolVar(&cli.simFlag, "sim", false, "Use the in-process simulated host")
	cli.rootCmd.PersistentFlags().BoolVarP(&cli.verboseFlag, "verbose", "v", false, "Enable verbose logging")
	cli.rootCmd.PersistentFlags().StringVarP(&cli.outputFlag, "output", "o", "text", "Output format (text, json)")

	cli.addCommands()

	return cli
}

// addCommands adds all subcommands to the root command.
func (cli *CLI) addCommands() {
	cli.rootCmd.AddCommand(
		cli.newVersionCmd(),
		cli.newProfilesCmd(),
		cli.newSelectCmd(),
		cli.newConnectCmd(),
		cli.newDisconnectCmd(),
		cli.newStatusCmd(),
		cli.newAutoConnectCmd(),
		cli.newStatsCmd(),
		cli.newIPFinderCmd(),
		cli.newPlansCmd(),
		cli.newBuyCmd(),
		cli.newCheckUserCmd(),
		cli.newCredentialsCmd(),
		cli.newHotspotCmd(),
		cli.newAirplaneCmd(),
		cli.newSpeedTestCmd(),
		cli.newAcceptCmd(),
		cli.newSimulateCmd(),
		cli.newTrayCmd(),
		cli.newHostCmd(),
		cli.newPaymentCmd(),
	)
}

// initialize loads configuration and sets up logging.
func (cli *CLI) initialize(cmd *cobra.Command) error {
	format, err := ParseOutputFormat(cli.outputFlag)
	if err != nil {
		return err
	}
	cli.Output = NewOutputWriter(format)

	var cfg *config.Config
	if cli.configFlag != "" {
		cfg, err = config.LoadFrom(cli.configFlag)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cli.Config = cfg

	if cli.hostFlag != "" {
		cli.Config.Host.Mode = config.HostRemote
		cli.Config.Host.URL = cli.hostFlag
	}
	if cli.simFlag {
		cli.Config.Host.Mode = config.HostSim
	}

	logCfg := cli.Config.Log.Common()
	if cli.verboseFlag {
		logCfg.Level = common.LevelDebug
	}
	// stdout is reserved for command output
	common.GetLogger().SetOutput(os.Stderr)
	if err := common.InitLogger(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	cli.Logger = common.GetLogger().Sugar()
	cli.closers = append(cli.closers, func() { _ = common.CloseLogger() })

	common.LogDebug("Running %s with host mode %s", cmd.CommandPath(), cli.Config.Host.Mode)
	return nil
}

func (cli *CLI) close() {
	for i := len(cli.closers) - 1; i >= 0; i-- {
		cli.closers[i]()
	}
	cli.closers = nil
}

// Execute runs the CLI.
func (cli *CLI) Execute(ctx context.Context) error {
	defer cli.close()
	return cli.rootCmd.ExecuteContext(ctx)
}

// Host returns the tunnel manager, connecting to the host on first use.
func (cli *CLI) Host(ctx context.Context) (*vpn.Manager, error) {
	if cli.manager != nil {
		return cli.manager, nil
	}

	host, err := cli.openHost(ctx)
	if err != nil {
		return nil, err
	}
	cli.adapter = bridge.New(host, cli.Logger)
	cli.manager = vpn.NewManager(cli.adapter)
	cli.closers = append(cli.closers, cli.manager.Close)
	return cli.manager, nil
}

// openHost builds the host selected by the configuration.
func (cli *CLI) openHost(ctx context.Context) (any, error) {
	switch cli.Config.Host.Mode {
	case config.HostSim:
		simCfg := bridge.DefaultSimConfig()
		if cli.Config.Host.SimFile != "" {
			loaded, err := bridge.LoadSimConfig(cli.Config.Host.SimFile)
			if err != nil {
				return nil, err
			}
			simCfg = loaded
		}
		return bridge.NewSimHost(simCfg), nil

	default:
		remote, err := bridge.Dial(ctx, cli.Config.Host.URL, cli.Logger)
		if err != nil {
			return nil, err
		}

		listenCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		go func() {
			if err := remote.Listen(listenCtx); err != nil && listenCtx.Err() == nil {
				cli.Logger.Warnw("event stream stopped", "error", err)
			}
		}()
		cli.closers = append(cli.closers, cancel)
		return remote, nil
	}
}
