// Command facilitator runs the A402 payment facilitator: verification and
// on-chain settlement of signed transfer authorizations on the Avalanche
// C-Chain.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/a402-foundation/a402-facilitator/internal/api"
	"github.com/a402-foundation/a402-facilitator/internal/audit"
	"github.com/a402-foundation/a402-facilitator/internal/config"
	"github.com/a402-foundation/a402-facilitator/internal/evm"
	"github.com/a402-foundation/a402-facilitator/internal/facilitator"
	"github.com/a402-foundation/a402-facilitator/internal/metrics"
	"github.com/a402-foundation/a402-facilitator/internal/settle"
	"github.com/a402-foundation/a402-facilitator/internal/token"
	"github.com/a402-foundation/a402-facilitator/internal/validate"
)

const shutdownGrace = 10 * time.Second

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Optional; the environment itself is authoritative.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration error")
	}

	backends := make(map[config.NetworkID]facilitator.Backend)
	for _, cc := range cfg.Networks() {
		client, err := evm.NewClient(cc.RPCEndpoint, cc.ChainID, cfg.RelayerPrivateKey)
		if err != nil {
			log.WithError(err).WithField("network", cc.DisplayName).Fatal("failed to connect chain client")
		}
		backends[cc.Network] = client
	}

	var sink audit.Sink = audit.NopSink{}
	if cfg.AuditURL != "" {
		sink = audit.NewHTTPSink(cfg.AuditURL, cfg.AuditKey, log)
	}

	reg := metrics.NewRegistry()
	service := facilitator.New(
		cfg,
		backends,
		validate.NewValidator(),
		settle.NewExecutor(),
		token.NewResolver(),
		sink,
		reg,
		log,
	)
	server := api.NewServer(service, reg, cfg.RateLimitPerMin, log)

	active, _ := cfg.Resolve(cfg.ActiveNetwork)
	log.WithFields(logrus.Fields{
		"network": active.DisplayName,
		"chainId": active.ChainID,
		"relayer": backends[cfg.ActiveNetwork].Address().Hex(),
		"port":    cfg.Port,
	}).Info("a402 facilitator starting")

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
}
