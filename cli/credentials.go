package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/keyring"
)

// keyring opens the credential store.
func (cli *CLI) keyring() (*keyring.Store, error) {
	return keyring.Open(keyring.Options{Logger: cli.Logger})
}

// profileArg resolves args[0], or the active profile when args is empty.
func (cli *CLI) profileArg(ctx context.Context, args []string) (bridge.Profile, error) {
	m, err := cli.Host(ctx)
	if err != nil {
		return bridge.Profile{}, err
	}
	if len(args) > 0 {
		return m.ProfileManager().Get(ctx, args[0])
	}
	p := cli.adapter.ActiveProfile(ctx)
	if p == nil {
		return bridge.Profile{}, common.ErrNoActiveProfile
	}
	return *p, nil
}

func (cli *CLI) newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage saved logins per profile",
	}
	cmd.AddCommand(
		cli.newCredentialsSetCmd(),
		cli.newCredentialsPushCmd(),
		cli.newCredentialsDeleteCmd(),
	)
	return cmd
}

func (cli *CLI) newCredentialsSetCmd() *cobra.Command {
	var username, uuid string
	cmd := &cobra.Command{
		Use:   "set [profile]",
		Short: "Save a login for a profile (active profile by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := cli.profileArg(ctx, args)
			if err != nil {
				return err
			}

			var creds keyring.Credentials
			if p.IsV2Ray() {
				if uuid == "" {
					if uuid, err = promptLine("UUID: "); err != nil {
						return err
					}
				}
				creds.UUID = uuid
			} else {
				if username == "" {
					if username, err = promptLine("Username: "); err != nil {
						return err
					}
				}
				password, err := promptPassword("Password: ")
				if err != nil {
					return err
				}
				creds.Username = username
				creds.Password = password
			}

			store, err := cli.keyring()
			if err != nil {
				return err
			}
			if err := store.Save(p.ID, creds); err != nil {
				return err
			}
			cli.Output.Printf("✓ Saved login for %s (%s keyring)\n", p.Name, store.Backend())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username for SSH profiles")
	cmd.Flags().StringVar(&uuid, "uuid", "", "UUID for V2Ray profiles")
	return cmd
}

func (cli *CLI) newCredentialsPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push [profile]",
		Short: "Send the saved login to the host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := cli.profileArg(ctx, args)
			if err != nil {
				return err
			}
			store, err := cli.keyring()
			if err != nil {
				return err
			}
			creds, err := store.Load(p.ID)
			if errors.Is(err, keyring.ErrNotFound) {
				return fmt.Errorf("%w for %s", common.ErrCredentialsNotFound, p.Name)
			}
			if err != nil {
				return err
			}
			if err := keyring.Apply(ctx, cli.adapter, creds); err != nil {
				return err
			}
			cli.Output.Printf("✓ Sent login for %s to the host\n", p.Name)
			return nil
		},
	}
}

func (cli *CLI) newCredentialsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [profile]",
		Short: "Forget the saved login of a profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := cli.profileArg(cmd.Context(), args)
			if err != nil {
				return err
			}
			store, err := cli.keyring()
			if err != nil {
				return err
			}
			if err := store.Delete(p.ID); err != nil {
				return err
			}
			cli.Output.Printf("✓ Deleted login for %s\n", p.Name)
			return nil
		},
	}
}

// stdin is shared so piped answers are not lost between prompts.
var stdin = bufio.NewReader(os.Stdin)

func promptLine(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo when stdin is a terminal.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptLine(label)
	}
	fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
