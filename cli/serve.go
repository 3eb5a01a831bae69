package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/metrics"
	"github.com/yllada/ssht-client/netstats"
	"github.com/yllada/ssht-client/storage"
	"github.com/yllada/ssht-client/ui"
)

// serveHTTP serves handler on addr until ctx is done.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (cli *CLI) newSimulateCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Serve a simulated host over the bridge protocol",
		Long: `simulate runs an in-memory host and exposes it on the same HTTP
surface a native host bridge offers, plus Prometheus metrics at /metrics.
Point other commands at it with --host http://<listen>.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			simCfg := bridge.DefaultSimConfig()
			if cli.Config.Host.SimFile != "" {
				loaded, err := bridge.LoadSimConfig(cli.Config.Host.SimFile)
				if err != nil {
					return err
				}
				simCfg = loaded
			}
			adapter := bridge.New(bridge.NewSimHost(simCfg), cli.Logger)

			mm := metrics.NewManager(cli.Logger)
			defer mm.Close()
			mm.ObserveHost(adapter.Events())

			sampler := netstats.NewSampler(adapter, &adapter.Events().NetworkStats, cli.Config.Stats.Interval)
			go func() { _ = sampler.Run(ctx) }()

			cli.Output.Printf("Simulated host listening on http://%s\n", listen)
			return serveHTTP(ctx, listen, bridge.NewHandler(adapter, cli.Logger, mm.Handler()))
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8765", "Address to listen on")
	return cmd
}

func (cli *CLI) newTrayCmd() *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "tray",
		Short: "Show the system tray indicator",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := cli.Host(ctx)
			if err != nil {
				return err
			}
			engine := cli.engine()
			cli.warnPendingAcceptance(ctx)

			if metricsAddr != "" {
				mm := metrics.NewManager(cli.Logger)
				defer mm.Close()
				mm.ObserveEngine(engine.Progress())
				mm.ObserveHost(cli.adapter.Events())

				r := chi.NewRouter()
				r.Handle("/metrics", mm.Handler())
				go func() {
					if err := serveHTTP(ctx, metricsAddr, r); err != nil {
						cli.Logger.Warnw("metrics server stopped", "error", err)
					}
				}()
			}

			if cli.Config.AutoReconnect {
				hc := newHealthChecker(cli.Config, m)
				hc.Start()
				defer hc.Stop()
			}

			tray := ui.NewTrayIndicator(m, engine, ui.TrayOptions{
				Filter:   cli.filter(filterFlags{}),
				Notifier: ui.NewNotifier(cli.Config.ShowNotifications),
				Logger:   cli.Logger,
			})
			if err := tray.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-listen", "", "Serve Prometheus metrics on this address")
	return cmd
}

func (cli *CLI) newAcceptCmd() *cobra.Command {
	var terms, privacy bool
	cmd := &cobra.Command{
		Use:   "accept",
		Short: "Show or record acceptance of the terms and privacy policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := cli.store()
			if err != nil {
				return err
			}
			acc := storage.NewAcceptance(s)

			if terms {
				if err := acc.AcceptTerms(ctx); err != nil {
					return err
				}
			}
			if privacy {
				if err := acc.AcceptPrivacy(ctx); err != nil {
					return err
				}
			}

			termsOK, err := acc.TermsAccepted(ctx)
			if err != nil {
				return err
			}
			privacyOK, err := acc.PrivacyAccepted(ctx)
			if err != nil {
				return err
			}
			state := map[string]bool{"terms": termsOK, "privacy": privacyOK}
			return cli.Output.Write(state, func(w io.Writer) {
				fmt.Fprintf(w, "Terms of use:   %s\n", acceptedText(termsOK))
				fmt.Fprintf(w, "Privacy policy: %s\n", acceptedText(privacyOK))
			})
		},
	}
	cmd.Flags().BoolVar(&terms, "terms", false, "Accept the terms of use")
	cmd.Flags().BoolVar(&privacy, "privacy", false, "Accept the privacy policy")
	return cmd
}

// warnPendingAcceptance reminds the user of unaccepted documents.
func (cli *CLI) warnPendingAcceptance(ctx context.Context) {
	s, err := cli.store()
	if err != nil {
		return
	}
	if pending, err := storage.NewAcceptance(s).Pending(ctx); err == nil && pending {
		fmt.Fprintln(os.Stderr, "Note: the terms of use or privacy policy are not accepted yet, see 'ssht accept'.")
	}
}

func acceptedText(ok bool) string {
	if ok {
		return "accepted"
	}
	return "pending"
}
