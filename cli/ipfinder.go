package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yllada/ssht-client/ipfinder"
	"github.com/yllada/ssht-client/storage"
)

// store opens local storage and closes it with the CLI.
func (cli *CLI) store() (*storage.Store, error) {
	s, err := storage.OpenDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}
	cli.closers = append(cli.closers, func() { _ = s.Close() })
	return s, nil
}

func (cli *CLI) newIPFinderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ipfinder",
		Short: "Cycle airplane mode until the local IP falls inside a range",
	}
	cmd.AddCommand(
		cli.newIPFinderSearchCmd(),
		cli.newIPFinderSaveCmd(),
		cli.newIPFinderListsCmd(),
		cli.newIPFinderDeleteCmd(),
	)
	return cmd
}

func (cli *CLI) newIPFinderSearchCmd() *cobra.Command {
	var list string
	cmd := &cobra.Command{
		Use:   "search [ranges]",
		Short: "Search for an IP in comma separated ranges, e.g. 10.1,100.64",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var ranges []string
			switch {
			case list != "":
				s, err := cli.store()
				if err != nil {
					return err
				}
				saved, err := ipfinder.NewLists(s).Get(ctx, list)
				if err != nil {
					return fmt.Errorf("list %s: %w", list, err)
				}
				ranges = saved.Ranges()
			case len(args) == 1:
				ranges = ipfinder.ParseRanges(args[0])
			default:
				return fmt.Errorf("give ranges or --list")
			}

			if _, err := cli.Host(ctx); err != nil {
				return err
			}
			finder := ipfinder.New(cli.adapter, cli.Config.IPFinder, cli.Logger)
			res, err := finder.Search(ctx, ranges, func(line string) {
				cli.Output.Printf("%s\n", line)
			})
			if err != nil {
				return err
			}

			return cli.Output.Write(res, func(w io.Writer) {
				switch {
				case res.Found:
					fmt.Fprintf(w, "✓ Found %s after %d cycle(s)\n", res.IP, res.Iterations)
				case res.Cancelled:
					fmt.Fprintln(w, "Search cancelled")
				default:
					fmt.Fprintf(w, "No IP in range after %d cycle(s)\n", res.Iterations)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&list, "list", "l", "", "Use a saved list")
	return cmd
}

func (cli *CLI) newIPFinderSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <ranges>",
		Short: "Save a range list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ranges := ipfinder.ParseRanges(args[0])
			if len(ranges) == 0 {
				return ipfinder.ErrNoRanges
			}
			s, err := cli.store()
			if err != nil {
				return err
			}
			name, err := ipfinder.NewLists(s).Save(cmd.Context(), strings.Join(ranges, ","))
			if err != nil {
				return err
			}
			return cli.Output.Write(map[string]string{"name": name}, func(w io.Writer) {
				fmt.Fprintf(w, "✓ Saved as %s\n", name)
			})
		},
	}
}

func (cli *CLI) newIPFinderListsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Show saved range lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.store()
			if err != nil {
				return err
			}
			lists, err := ipfinder.NewLists(s).All(cmd.Context())
			if err != nil {
				return err
			}
			return cli.Output.Write(lists, func(w io.Writer) {
				if len(lists) == 0 {
					fmt.Fprintln(w, "No saved lists.")
					return
				}
				rows := make([][]string, 0, len(lists))
				for _, l := range lists {
					rows = append(rows, []string{l.Name, l.Value})
				}
				_ = cli.Output.Table([]string{"NAME", "RANGES"}, rows)
			})
		},
	}
}

func (cli *CLI) newIPFinderDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a saved range list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.store()
			if err != nil {
				return err
			}
			if err := ipfinder.NewLists(s).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			cli.Output.Printf("✓ Deleted %s\n", args[0])
			return nil
		},
	}
}
