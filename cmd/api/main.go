package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"reviewdesk/auth"
	"reviewdesk/config"
	"reviewdesk/db"
	"reviewdesk/fraud"
	"reviewdesk/ledger"
	"reviewdesk/loan"
	"reviewdesk/remote"
	"reviewdesk/review"
	"reviewdesk/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := newLogger(env.LogLevel)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "reviewdesk",
		ServiceVersion: env.ServiceVersion,
		UseStdout:      env.TraceStdout,
		OTLPEndpoint:   env.OTLPEndpoint,
	})
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	keys, err := auth.NewServiceKeyVerifier(env.ServiceKeyHash)
	if err != nil {
		log.Fatalf("service key: %v", err)
	}

	feed := review.NewFeed(env.FeedCapacity).WithLogger(logger)
	scorer := fraud.NewScorer(env.ReviewThreshold)
	srv := &Server{
		panels: review.NewRegistry(),
		feed:   feed,
		keys:   keys,
		scorer: scorer,
		logger: logger,
	}

	var relay *ledger.Relay
	gateways := map[string]review.Gateway{}

	switch env.GatewayMode {
	case config.GatewayPostgres:
		pool, err := db.NewPool(ctx, env.DatabaseURL, db.PoolOptions{AppName: "reviewdesk"})
		if err != nil {
			log.Fatalf("bootstrap database pool: %v", err)
		}
		defer pool.Close()

		journal := ledger.NewJournal()
		loans := loan.NewRepository(pool, journal)
		txns := fraud.NewRepository(pool, journal, scorer)
		gateways[loan.KindName] = loan.NewGateway(loans, env.ListLimit)
		gateways[fraud.KindName] = fraud.NewGateway(txns, env.ListLimit)

		srv.loans = loans
		srv.transactions = txns
		srv.records = gateways
		relay = ledger.NewRelay(pool, ledger.LogPublisher(logger)).WithLogger(logger)

		if env.JWTSecret != "" {
			accounts := auth.NewService(auth.NewRepository(pool), env.JWTSecret).WithTokenTTL(env.TokenTTL)
			srv.accounts = accounts
			srv.tokens = accounts
		}

	case config.GatewayHTTP:
		for _, kind := range []string{loan.KindName, fraud.KindName} {
			c, err := remote.NewClient(env.RemoteBaseURL, kind, env.RemoteServiceKey)
			if err != nil {
				log.Fatalf("remote gateway %s: %v", kind, err)
			}
			gateways[kind] = c
		}
		if env.JWTSecret != "" {
			srv.tokens = auth.NewService(nil, env.JWTSecret)
		}
	}

	for _, kind := range []review.Kind{loan.PanelKind(), fraud.PanelKind()} {
		p, err := review.NewPanel(kind, gateways[kind.Name], feed, logger)
		if err != nil {
			log.Fatalf("panel %s: %v", kind.Name, err)
		}
		srv.panels.Register(p)
	}

	httpServer := &http.Server{
		Addr:              env.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Initial subscription for every panel.
	for _, p := range srv.panels.Panels() {
		g.Go(func() error {
			p.Start(gctx, nil)
			if err := p.View().Err; err != nil {
				logger.WarnContext(gctx, "initial load failed", "kind", p.Kind().Name, "err", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("reviewdesk listening", "addr", env.Addr, "gateway", env.GatewayMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if relay != nil {
		g.Go(func() error { return relay.Run(gctx, env.OutboxInterval) })
	}

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), env.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
	logger.Info("reviewdesk stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
