// Command xmlrpcd serves the example XML-RPC methods over HTTP and optionally
// advertises itself in etcd.
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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dwlnetnl/xmlrpc"
	"github.com/dwlnetnl/xmlrpc/internal/config"
	"github.com/dwlnetnl/xmlrpc/internal/registry"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "xmlrpcd:", err)
		os.Exit(2)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	log, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "xmlrpcd:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("xmlrpcd failed", zap.Error(err))
		os.Exit(1)
	}
}

// newServer builds the XML-RPC handler described by cfg.
func newServer(cfg *config.Config, log *zap.Logger) (*xmlrpc.Server, error) {
	mws := []xmlrpc.Middleware{xmlrpc.Recover(log), xmlrpc.Logging(log)}
	if cfg.Rate > 0 {
		mws = append(mws, xmlrpc.RateLimit(cfg.Rate, cfg.Burst))
	}
	if cfg.Timeout > 0 {
		mws = append(mws, xmlrpc.Timeout(cfg.Timeout))
	}

	srv := xmlrpc.NewServer(
		xmlrpc.WithCodecOptions(cfg.Codec),
		xmlrpc.WithMaxBodySize(cfg.MaxBodySize),
		xmlrpc.WithLogger(log),
		xmlrpc.WithMiddleware(mws...),
	)
	if err := srv.RegisterReceiver("examples", examples{now: time.Now}); err != nil {
		return nil, err
	}
	return srv, nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	srv, err := newServer(cfg, log)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, srv)
	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("path", cfg.Path), zap.Strings("methods", srv.Methods()))
		if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hs.Shutdown(sctx)
	})

	if len(cfg.Etcd) > 0 {
		g.Go(func() error { return advertise(ctx, cfg, srv.Methods(), log) })
	}

	return g.Wait()
}

// advertise registers the endpoint in etcd until ctx is done.
func advertise(ctx context.Context, cfg *config.Config, methods []string, log *zap.Logger) error {
	reg, err := registry.New(cfg.Etcd, log)
	if err != nil {
		return err
	}
	defer reg.Close()

	ep := registry.Endpoint{
		Name:    cfg.Name,
		Addr:    cfg.Advertise,
		URL:     "http://" + cfg.Advertise + cfg.Path,
		Methods: methods,
	}
	if err := reg.Register(ctx, ep, cfg.LeaseTTL); err != nil {
		return err
	}

	<-ctx.Done()

	dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return reg.Deregister(dctx, ep)
}
