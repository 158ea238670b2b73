// Switchyardd - testbed switch load balancer daemon
//
// Loads the device catalog, probes every switch, and serves the reservation
// and ticket APIs. Configuration comes from the environment:
//
//	CONFIG_DIR                   directory with device.yaml and credentials.yaml
//	TICKET_PATH                  root of the ticket active/ and archive/ trees
//	API_BEARER_TOKEN             shared token for the machine and admin endpoints
//	SWITCHYARD_LISTEN            listen address (default :8000)
//	SWITCHYARD_MONITOR_INTERVAL  reconciler period (default 10s)
//	SWITCHYARD_LOG_LEVEL         logrus level (default info)
//	SWITCHYARD_LOG_JSON          JSON log output
//	SWITCHYARD_WATCH_CATALOG     hot-reload on device.yaml changes
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/switchyard-lab/switchyard/internal/config"
	"github.com/switchyard-lab/switchyard/internal/metrics"
	"github.com/switchyard-lab/switchyard/internal/server"
	"github.com/switchyard-lab/switchyard/pkg/catalog"
	"github.com/switchyard-lab/switchyard/pkg/device"
	"github.com/switchyard-lab/switchyard/pkg/inventory"
	"github.com/switchyard-lab/switchyard/pkg/monitor"
	"github.com/switchyard-lab/switchyard/pkg/ticket"
	"github.com/switchyard-lab/switchyard/pkg/util"
	"github.com/switchyard-lab/switchyard/pkg/version"
)

const shutdownGrace = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "switchyardd",
		Short:         "Testbed switch load balancer",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("switchyardd %s (%s)\n", version.Version, version.GitCommit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := util.SetLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if cfg.LogJSON {
		util.SetJSONFormat()
	}
	util.Infof("switchyardd %s starting", version.Version)

	creds, err := catalog.LoadCredentials(cfg.CredentialsPath())
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	connector := device.NewConnector(creds)

	inv, err := inventory.NewManager(cfg.CatalogPath(), connector)
	if err != nil {
		return fmt.Errorf("loading device catalog: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	util.Info("probing initial machine status")
	inv.InitializeStatus(ctx)

	tickets, err := ticket.NewManager(cfg.TicketPath, inv, ticket.NewTask(connector, 0))
	if err != nil {
		return fmt.Errorf("initializing ticket storage: %w", err)
	}
	tickets.Recover()

	go monitor.New(inv, connector, cfg.MonitorInterval).Run(ctx)

	if cfg.WatchCatalog {
		w, err := catalog.NewWatcher(cfg.CatalogPath(), func() {
			if count, err := inv.Reload(); err != nil {
				util.Errorf("catalog reload failed: %v", err)
			} else {
				util.Infof("catalog reloaded, %d devices", count)
			}
		})
		if err != nil {
			return fmt.Errorf("watching catalog: %w", err)
		}
		go w.Run(ctx)
	}

	m := metrics.New(inv, tickets)
	tickets.SetCompletionHook(func(s ticket.Status) {
		m.TicketsTotal.WithLabelValues(string(s)).Inc()
	})
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.New(inv, tickets, m, cfg.BearerToken).Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		util.Infof("listening on %s", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	util.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
