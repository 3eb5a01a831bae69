package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yllada/ssht-client/speedtest"
)

func (cli *CLI) newSpeedTestCmd() *cobra.Command {
	var (
		listOnly bool
		server   string
	)
	cmd := &cobra.Command{
		Use:   "speedtest",
		Short: "Measure ping, download and upload speed",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tester := speedtest.New(cli.Config.SpeedTest, cli.Logger)

			cli.Output.Printf("Finding servers...\n")
			servers, err := tester.Servers(ctx, true)
			if err != nil {
				return err
			}

			if listOnly {
				return cli.Output.Write(servers, func(w io.Writer) {
					rows := make([][]string, 0, len(servers))
					for _, s := range servers {
						rows = append(rows, []string{s.Name, s.Location.City, s.Location.Country, pingText(s)})
					}
					_ = cli.Output.Table([]string{"SERVER", "CITY", "COUNTRY", "PING"}, rows)
				})
			}

			target, err := pickServer(servers, server)
			if err != nil {
				return err
			}
			cli.Output.Printf("Testing against %s (%s, %s)\n", target.Name, target.Location.City, target.Location.Country)

			last := speedtest.Phase("")
			res, err := tester.Run(ctx, target, func(phase speedtest.Phase, value float64) {
				if phase == speedtest.PhasePing {
					return
				}
				if phase != last {
					last = phase
					cli.Output.Printf("\n")
				}
				cli.Output.Printf("\r%-9s %8.2f Mbps", phase, value)
			})
			cli.Output.Printf("\n\n")
			if err != nil {
				return err
			}

			return cli.Output.Write(res, func(w io.Writer) {
				fmt.Fprintf(w, "Ping:     %d ms\n", res.Ping.Milliseconds())
				fmt.Fprintf(w, "Download: %.2f Mbps\n", res.Download)
				fmt.Fprintf(w, "Upload:   %.2f Mbps\n", res.Upload)
			})
		},
	}
	cmd.Flags().BoolVar(&listOnly, "list", false, "Only list servers with their ping")
	cmd.Flags().StringVar(&server, "server", "", "Use the server whose name contains this text")
	return cmd
}

// pickServer returns the first server matching name, or the first server.
func pickServer(servers []speedtest.Server, name string) (speedtest.Server, error) {
	if len(servers) == 0 {
		return speedtest.Server{}, fmt.Errorf("no speed test server available")
	}
	if name == "" {
		return servers[0], nil
	}
	for _, s := range servers {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(name)) {
			return s, nil
		}
	}
	return speedtest.Server{}, fmt.Errorf("no server matches %q", name)
}

func pingText(s speedtest.Server) string {
	if s.Ping <= 0 || s.Ping.Hours() > 1 {
		return "-"
	}
	return fmt.Sprintf("%d ms", s.Ping.Milliseconds())
}
