// Command chatd is the reference chat backend: auth, REST history and the realtime relay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/anshu-sharma0/chatmessage/chatd/internal/config"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/fanout"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/hub"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/metrics"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/policy"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/repository"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/service"
	internalhttp "github.com/anshu-sharma0/chatmessage/chatd/internal/transport/http"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/ws"
)

const tokenPurgeInterval = time.Hour

func main() {
	flag.Set("logtostderr", "true")
	policyFile := flag.String("policy", "", "path to a rego file replacing the built-in access policy")
	flag.Parse()
	defer glog.Flush()

	if err := run(*policyFile); err != nil {
		glog.Errorf("chatd: %v", err)
		glog.Flush()
		os.Exit(1)
	}
}

func run(policyFile string) error {
	cfg := config.Load()
	glog.Infof("Starting chatd...")
	glog.Infof("HTTP Port: %d", cfg.HTTPPort)
	glog.Infof("Database: %s", cfg.DatabaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	policyContent := policy.DefaultPolicy
	if policyFile != "" {
		data, err := os.ReadFile(policyFile)
		if err != nil {
			return fmt.Errorf("failed to read policy: %w", err)
		}
		policyContent = string(data)
	}
	engine, err := policy.NewEngine(ctx, policyContent)
	if err != nil {
		return err
	}

	m := metrics.New()
	svc := service.New(store, engine, cfg.TokenTTL, service.WithMetrics(m))
	if cfg.SeedDemoUsers {
		if err := svc.SeedDemoUsers(ctx); err != nil {
			return err
		}
	}
	go purgeTokens(ctx, svc)

	// Initialize hub
	connectionHub := hub.NewHub(m)
	go connectionHub.Run(ctx)

	if cfg.RedisURL != "" {
		relay, err := fanout.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer relay.Close()
		connectionHub.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx, connectionHub.Deliver); err != nil {
				glog.Errorf("fanout stopped: %v", err)
			}
		}()
		glog.Infof("Cross-instance fanout enabled")
	}

	wsServer := ws.NewServer(cfg, connectionHub, svc, m)
	server := internalhttp.NewServer(svc, connectionHub, wsServer, m)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	glog.Infof("HTTP server started on port %d", cfg.HTTPPort)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	glog.Infof("Shutting down chatd...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		glog.Warningf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	glog.Infof("chatd stopped")
	return nil
}

func purgeTokens(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.PurgeExpiredTokens(ctx)
			if err != nil {
				glog.Warningf("token purge failed: %v", err)
				continue
			}
			if n > 0 {
				glog.V(1).Infof("purged %d expired tokens", n)
			}
		}
	}
}
