package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"redemption-gate/internal/api"
	"redemption-gate/internal/seed"
	"redemption-gate/internal/service"
	"redemption-gate/internal/verify"
	"redemption-gate/pkg/config"
	"redemption-gate/pkg/logging"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	log.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config) error {
	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	st, err := openStores(startCtx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	gate := service.NewAbuseGate(st.tracker, service.AbuseGateConfig{
		ScoreThreshold:           cfg.ScoreThreshold,
		IPRateLimit:              cfg.IPRateLimit,
		IPRateWindow:             cfg.IPRateWindow,
		MaxWalletsPerFingerprint: cfg.MaxWalletsPerFingerprint,
	})
	codes := service.NewCodeService(st.ledger)
	admission := service.NewAdmissionService(gate, st.ledger, service.Notifiers{service.LogNotifier{}})

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := seed.Apply(startCtx, codes, f); err != nil {
			return err
		}
	}

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	router := api.NewRouter(api.Services{
		Admission: admission,
		Codes:     codes,
		Verifier:  verify.NewChallengeVerifier(cfg.RecaptchaSecret, cfg.RecaptchaVerifyURL),
	}, api.Options{
		AdminToken:             cfg.AdminToken,
		WalletConnectProjectID: cfg.WalletConnectProjectID,
		TrustedProxies:         cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{
			"port":    cfg.Port,
			"ledger":  cfg.LedgerBackend,
			"tracker": cfg.TrackerBackend,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
