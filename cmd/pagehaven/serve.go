package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/sagarc03/pagehaven"
	"github.com/sagarc03/pagehaven/config"
	pagehavenhttp "github.com/sagarc03/pagehaven/http"
	"github.com/sagarc03/pagehaven/metrics"
	"github.com/sagarc03/pagehaven/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the static site server",
	Long: `Start the Pagehaven HTTP server.

Every request is routed to a site by its Host header (<subdomain>.<base_domain>),
checked against the site's access policy, and either redirected to a gate
page of the web app or answered with the stored file.`,
	RunE: runServe,
}

var serveMigrate bool

func init() {
	serveCmd.Flags().Int("port", 8080, "HTTP server port")
	serveCmd.Flags().String("base-domain", "", "domain the site subdomains live under")
	serveCmd.Flags().Int("metrics-port", 0, "port for the Prometheus /metrics listener (0 disables)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "create missing tables before serving")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openDatabase(ctx, cfg, serveMigrate)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	storage, closeStorage, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStorage()

	objects, err := pagehaven.NewObjectService(db.ObjectRepo(), storage, pagehaven.ServiceConfig{
		CleanupTimeout: cfg.Service.CleanupTimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("create object service: %w", err)
	}

	var resolver pagehaven.SiteResolver = db.SiteRepo()
	siteCache, closeCache, err := openSiteCache(ctx, cfg.Cache, resolver)
	if err != nil {
		return fmt.Errorf("open site cache: %w", err)
	}
	defer closeCache()
	if siteCache != nil {
		resolver = siteCache
	}

	dispatcher, err := pagehaven.NewDispatcher(resolver, objects, pagehaven.DispatcherConfig{
		BaseDomain:           cfg.Server.BaseDomain,
		WebBaseURL:           cfg.Server.WebBaseURL,
		PasswordCookiePrefix: cfg.Gate.PasswordCookiePrefix,
	})
	if err != nil {
		return fmt.Errorf("create dispatcher: %w", err)
	}

	var verifier pagehavenhttp.IdentityVerifier
	if cfg.Session.Secret != "" {
		v, verr := session.NewJWTVerifier(cfg.Session.Secret, cfg.Session.Issuer)
		if verr != nil {
			return fmt.Errorf("create session verifier: %w", verr)
		}
		verifier = v
	} else {
		slog.Warn("session.secret is not set; private and owner_only sites will redirect every visitor to login")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	handler := pagehavenhttp.NewHandler(&pagehavenhttp.HandlerConfig{
		SessionCookie: cfg.Session.CookieName,
		Verifier:      verifier,
		Metrics:       recorder,
		CORS:          cfg.CORS,
	}, dispatcher)

	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}}

	if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(registry))
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			slog.Info("starting server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server %s: %w", srv.Addr, err)
				return
			}
			errCh <- nil
		}()
	}

	slog.Info("serving sites", "base_domain", cfg.Server.BaseDomain, "web_base_url", cfg.Server.WebBaseURL)

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down server...")
	case serveErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "addr", srv.Addr, "err", err)
		}
	}

	return serveErr
}
