package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpadapter "github.com/fracta-fi/fracta-backend/internal/adapter/http"
	"github.com/fracta-fi/fracta-backend/internal/adapter/ledger"
	"github.com/fracta-fi/fracta-backend/internal/adapter/repository/memory"
	"github.com/fracta-fi/fracta-backend/internal/adapter/repository/postgres"
	"github.com/fracta-fi/fracta-backend/internal/config"
	"github.com/fracta-fi/fracta-backend/internal/domain"
	"github.com/fracta-fi/fracta-backend/internal/usecase/assets"
	"github.com/fracta-fi/fracta-backend/internal/usecase/fees"
	"github.com/fracta-fi/fracta-backend/internal/usecase/marketplace"
	"github.com/fracta-fi/fracta-backend/internal/usecase/offer"
	"github.com/fracta-fi/fracta-backend/internal/usecase/reward"
	"github.com/fracta-fi/fracta-backend/internal/usecase/settlement"
)

func main() {
	cfg := config.Load()
	config.InitLogger(cfg.Debug)
	defer func() { _ = zap.L().Sync() }()

	admin := mustAddress(cfg.AdminAddress, "ADMIN_ADDRESS")
	treasury := mustAddress(cfg.TreasuryAddress, "TREASURY_ADDRESS")
	feeSink := mustAddress(cfg.FeeSinkAddress, "FEE_SINK_ADDRESS")

	// 1. State stores and collaborators.
	assetStore := memory.NewAssetStore()
	listingStore := memory.NewListingStore()
	feeStore := memory.NewFeeStore()
	nonceStore := memory.NewNonceStore()
	fractionLedger := ledger.NewLedger()
	payments := ledger.NewRegistry()
	atomicParts := []memory.Snapshotter{assetStore, listingStore, feeStore, nonceStore, fractionLedger}
	for _, currency := range cfg.Currencies {
		token := ledger.NewToken(currency)
		payments.Register(currency, token)
		atomicParts = append(atomicParts, token)
	}
	settings := memory.NewTreasuryStore(treasury, feeSink)
	access := memory.NewAccessRegistry(admin)
	atomic := memory.NewAtomic(atomicParts...)

	// 2. Event recorder: postgres journal when configured, memory otherwise.
	var events domain.EventRecorder = memory.NewEventLog()
	if cfg.DatabaseURL != "" {
		db, err := postgres.NewDB(cfg.DatabaseURL)
		if err != nil {
			zap.L().Fatal("failed to connect to journal database", zap.Error(err))
		}
		defer db.Close()
		events = postgres.NewEventJournal(db)
	}

	// 3. Services.
	feeService, err := fees.NewService(access, feeStore, cfg.DefaultInitialFeeBps, cfg.DefaultBuyingFeeBps)
	if err != nil {
		zap.L().Fatal("invalid default fees", zap.Error(err))
	}
	rewardService := reward.NewService(assetStore, fractionLedger, payments, settings)
	assetService := assets.NewService(access, assetStore, fractionLedger, payments, events, atomic)
	marketplaceService := marketplace.NewService(marketplace.Config{
		Assets:   assetStore,
		Listings: listingStore,
		Fees:     feeService,
		Ledger:   fractionLedger,
		Payments: payments,
		Settings: settings,
		Nonces:   nonceStore,
		Events:   events,
		Atomic:   atomic,
		OfferDomain: offer.Domain{
			Name:    cfg.OfferDomainName,
			Version: cfg.OfferDomainVersion,
			Origin:  cfg.OfferOrigin,
		},
	})
	settlementService := settlement.NewService(assetStore, fractionLedger, payments, settings, rewardService, events, atomic)

	// 4. HTTP server.
	server := httpadapter.NewServer(assetService, feeService, marketplaceService, rewardService, settlementService, settings, access)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router(cfg.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		zap.L().Info("marketplace server listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("server failed", zap.Error(err))
		}
	}()

	waitForShutdown(httpServer)
}

// waitForShutdown blocks until SIGTERM or SIGINT, then drains the server.
func waitForShutdown(httpServer *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	zap.L().Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zap.L().Warn("shutdown incomplete", zap.Error(err))
	}
}

func mustAddress(raw, name string) domain.Address {
	addr, err := domain.HexToAddress(raw)
	if err != nil {
		zap.L().Fatal("invalid address in config", zap.String("var", name), zap.Error(err))
	}
	return addr
}
