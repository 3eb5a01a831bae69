package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/keyring"
	"github.com/yllada/ssht-client/sales"
)

func (cli *CLI) salesClient() *sales.Client {
	return sales.NewClient(cli.Config.API.BaseURL, cli.Config.API.Timeout, cli.Logger)
}

func (cli *CLI) newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List the subscription plans on sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := cli.salesClient().Plans(cmd.Context())
			if err != nil {
				return err
			}
			return cli.Output.Write(plans, func(w io.Writer) {
				if len(plans) == 0 {
					fmt.Fprintln(w, "No plans available.")
					return
				}
				rows := make([][]string, 0, len(plans))
				for _, p := range plans {
					rows = append(rows, []string{
						strconv.Itoa(p.ID),
						p.Name,
						sales.FormatPrice(p.Price),
						strconv.Itoa(p.Limit),
						fmt.Sprintf("%d days", p.Validate),
					})
				}
				_ = cli.Output.Table([]string{"ID", "PLAN", "PRICE", "CONNECTIONS", "VALIDITY"}, rows)
			})
		},
	}
}

func (cli *CLI) newBuyCmd() *cobra.Command {
	var (
		planID int
		email  string
		name   string
		noWait bool
		saveTo string
	)
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy a plan and wait for the login",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := cli.salesClient()

			purchase, err := client.CreatePurchase(ctx, sales.PurchaseRequest{
				PlanID:        planID,
				CustomerEmail: strings.TrimSpace(email),
				CustomerName:  strings.TrimSpace(name),
			})
			if err != nil {
				return err
			}

			if noWait {
				return cli.Output.Write(purchase, func(w io.Writer) { writePurchase(w, purchase) })
			}
			if !cli.Output.IsJSON() {
				writePurchase(cli.Output.writer, purchase)
			}

			poller := sales.NewPaymentPoller(client, cli.Logger)
			creds, err := poller.Poll(ctx, purchase.PaymentID, func(a sales.Attempt) {
				if a.Err != nil {
					cli.Output.Printf("Waiting for payment (%d/%d): %v\n", a.Number, a.Max, a.Err)
					return
				}
				cli.Output.Printf("Waiting for payment (%d/%d)...\n", a.Number, a.Max)
			})
			if err != nil {
				return err
			}

			if saveTo != "" {
				if err := cli.saveDelivered(ctx, saveTo, creds); err != nil {
					return err
				}
			}
			return cli.Output.Write(creds, func(w io.Writer) { writeCredentials(w, creds) })
		},
	}
	cmd.Flags().IntVar(&planID, "plan", 0, "Plan id (see 'ssht plans')")
	cmd.Flags().StringVar(&email, "email", "", "Customer e-mail")
	cmd.Flags().StringVar(&name, "name", "", "Customer name")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Print the invoice and exit")
	cmd.Flags().StringVar(&saveTo, "save", "", "Save the delivered login for this profile")
	_ = cmd.MarkFlagRequired("plan")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// saveDelivered stores purchased credentials for a profile.
func (cli *CLI) saveDelivered(ctx context.Context, profile string, creds *sales.Credentials) error {
	m, err := cli.Host(ctx)
	if err != nil {
		return err
	}
	p, err := m.ProfileManager().Get(ctx, profile)
	if err != nil {
		return err
	}

	store, err := cli.keyring()
	if err != nil {
		return err
	}
	return store.Save(p.ID, deliveredLogin(p, creds))
}

// deliveredLogin picks the part of a purchase that fits p.
func deliveredLogin(p bridge.Profile, creds *sales.Credentials) keyring.Credentials {
	var out keyring.Credentials
	if v := creds.V2RayLogin(); v != nil && p.IsV2Ray() {
		out.UUID = v.UUID
		return out
	}
	if s := creds.SSHLogin(); s != nil {
		out.Username = s.Username
		out.Password = s.Password
	}
	return out
}

func writePurchase(w io.Writer, p *sales.Purchase) {
	fmt.Fprintf(w, "Invoice:  %s\n", p.InvoiceID)
	fmt.Fprintf(w, "Amount:   %s\n", sales.FormatPrice(p.Amount))
	if p.TicketURL != "" {
		fmt.Fprintf(w, "Pay at:   %s\n", p.TicketURL)
	}
	if p.QRCode != "" {
		fmt.Fprintf(w, "PIX code: %s\n", p.QRCode)
	}
	if p.ExpiresIn > 0 {
		fmt.Fprintf(w, "Expires:  in %s\n", formatDuration(time.Duration(p.ExpiresIn)*time.Second))
	}
}

func writeCredentials(w io.Writer, c *sales.Credentials) {
	fmt.Fprintln(w, "✓ Payment confirmed")
	if c.Plan != nil {
		fmt.Fprintf(w, "Plan:       %s (%d days)\n", c.Plan.Name, c.Plan.ValidateDays)
	}
	if s := c.SSHLogin(); s != nil {
		fmt.Fprintf(w, "Username:   %s\n", s.Username)
		fmt.Fprintf(w, "Password:   %s\n", s.Password)
		fmt.Fprintf(w, "Limit:      %d\n", s.Limit)
		fmt.Fprintf(w, "Expires:    %s\n", orDash(s.ExpirationDate))
	}
	if v := c.V2RayLogin(); v != nil {
		fmt.Fprintf(w, "UUID:       %s\n", v.UUID)
		fmt.Fprintf(w, "Expires:    %s\n", orDash(v.ExpirationDate))
	}
}

func (cli *CLI) newPaymentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payment <invoice-id>",
		Short: "Show the status of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := cli.salesClient().PaymentStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return cli.Output.Write(status, func(w io.Writer) {
				fmt.Fprintf(w, "Invoice: %s\n", status.InvoiceID)
				fmt.Fprintf(w, "Status:  %s\n", status.Status)
				fmt.Fprintf(w, "Amount:  %s\n", sales.FormatPrice(status.Amount))
				if status.Status == sales.StatusPending && status.ExpiresAt != "" {
					fmt.Fprintf(w, "Expires: %s\n", sales.TimeUntilExpiration(status.ExpiresAt, time.Now()))
				}
			})
		},
	}
}

func (cli *CLI) newCheckUserCmd() *cobra.Command {
	var fromHost bool
	cmd := &cobra.Command{
		Use:   "checkuser [username]",
		Short: "Show connections and expiry of an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if fromHost {
				model, err := cli.checkUserFromHost(ctx, 10*time.Second)
				if err != nil {
					return err
				}
				return cli.Output.Write(model, func(w io.Writer) {
					writeUser(w, model.Username, model.CountConnections, model.LimitConnections, model.ExpirationDate, model.ExpirationDays)
				})
			}

			if len(args) == 0 {
				return fmt.Errorf("give a username or --host")
			}
			info, err := cli.salesClient().CheckUser(ctx, args[0])
			if err != nil {
				return err
			}
			return cli.Output.Write(info, func(w io.Writer) {
				writeUser(w, info.Username, strconv.Itoa(info.CountConnections), strconv.Itoa(info.LimitConnections),
					info.ExpirationDate, strconv.Itoa(info.ExpirationDays))
			})
		},
	}
	cmd.Flags().BoolVar(&fromHost, "host", false, "Ask the host for the logged-in account")
	return cmd
}

// checkUserFromHost asks the host for the account summary and waits for
// the CheckUserModel event.
func (cli *CLI) checkUserFromHost(ctx context.Context, timeout time.Duration) (bridge.CheckUserModel, error) {
	if _, err := cli.Host(ctx); err != nil {
		return bridge.CheckUserModel{}, err
	}

	got := make(chan bridge.CheckUserModel, 1)
	topic := &cli.adapter.Events().CheckUserModel
	tok := topic.Subscribe(func(m bridge.CheckUserModel) {
		select {
		case got <- m:
		default:
		}
	})
	defer topic.Unsubscribe(tok)

	if err := cli.adapter.StartCheckUser(ctx); err != nil {
		return bridge.CheckUserModel{}, err
	}

	select {
	case m := <-got:
		return m, nil
	case <-time.After(timeout):
		return bridge.CheckUserModel{}, fmt.Errorf("host sent no account summary within %s", timeout)
	case <-ctx.Done():
		return bridge.CheckUserModel{}, ctx.Err()
	}
}

func writeUser(w io.Writer, username, count, limit, expiration, days string) {
	fmt.Fprintf(w, "User:        %s\n", username)
	fmt.Fprintf(w, "Connections: %s/%s\n", count, limit)
	fmt.Fprintf(w, "Expires:     %s (%s days)\n", orDash(expiration), days)
}
