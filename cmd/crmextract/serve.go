package main

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"crmextract/internal/bus"
	"crmextract/internal/dispatch"
	"crmextract/internal/extracthtml"
	"crmextract/internal/notify"
	"crmextract/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and, when configured, the NATS trigger",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override server.port from config")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	ex, err := a.extractor()
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.startMetrics(ctx)

	loader := extracthtml.NewLoader(0)
	page := &dispatch.CurrentPage{}
	if p := a.cfg.Page; p.Path != "" {
		pg, err := loader.Load(ctx, extracthtml.Input{Path: p.Path, URL: p.URL})
		if err != nil {
			return errors.Wrapf(err, "load page %s", p.Path)
		}
		page.Set(pg)
		zap.S().Infof("serving snapshot %s (%s)", p.Path, pg.URL)
	}

	notices := &notify.MemoryHost{}
	notifier := notify.New(notify.Hosts(notify.LogHost{}, notices), notify.WithDismissAfter(a.cfg.Notify.DismissAfter))
	defer notifier.Close()

	d := dispatch.New(page, ex, store, notifier)
	srv := server.NewServer(a.cfg.Server.Port, server.NewHandler(store, d, page, loader, notices))

	var nc *nats.Conn
	if n := a.cfg.Nats; n.Endpoint != "" {
		if nc, err = bus.Connect(bus.Config{Endpoint: n.Endpoint, Subject: n.Subject, Name: "crmextract"}); err != nil {
			return err
		}
		defer nc.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.GracefulShutdown(sctx)
	})
	if nc != nil {
		g.Go(func() error {
			return bus.Serve(gctx, nc, a.cfg.Nats.Subject, d.Handle)
		})
	}
	return g.Wait()
}

func newTriggerCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Send one extract trigger over NATS to a running server",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := a.cfg.Nats
			if n.Endpoint == "" {
				return usageErrorf("nats.endpoint is not configured")
			}
			nc, err := bus.Connect(bus.Config{Endpoint: n.Endpoint, Subject: n.Subject, Name: "crmextract-trigger"})
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := bus.Trigger(ctx, nc, n.Subject)
			if err != nil {
				return err
			}
			if err := a.printJSON(resp); err != nil {
				return err
			}
			if resp.Status != dispatch.StatusSuccess {
				return errors.New(resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the reply")
	return cmd
}
