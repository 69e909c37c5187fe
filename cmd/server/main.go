package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/quorumgate/quorumgate/internal/api"
	"github.com/quorumgate/quorumgate/internal/authorizer"
	"github.com/quorumgate/quorumgate/internal/config"
	"github.com/quorumgate/quorumgate/internal/ledger"
	applogger "github.com/quorumgate/quorumgate/internal/logger"
	"github.com/quorumgate/quorumgate/internal/metrics"
	"github.com/quorumgate/quorumgate/internal/sigset"
	"github.com/quorumgate/quorumgate/internal/storage"
	"github.com/quorumgate/quorumgate/internal/txhash"
	"github.com/quorumgate/quorumgate/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := applogger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Signer policy
	signers, err := sigset.New(cfg.Roster, cfg.Threshold)
	if err != nil {
		slog.Error("failed to initialize signer set", "error", err)
		os.Exit(1)
	}
	slog.Info("initialized signer set", "roster_size", len(cfg.Roster), "threshold", cfg.Threshold)

	ctx := context.Background()

	// Ledger backend
	var (
		idLedger ledger.Ledger
		audit    api.AuditLog
	)
	switch cfg.LedgerBackend {
	case config.LedgerBackendPostgres:
		store, err := storage.New(ctx, cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		idLedger = storage.NewAuthorizationRepository(store)
		audit = storage.NewAuditRepository(store)
		slog.Info("connected to database")
	case config.LedgerBackendMemory:
		idLedger = ledger.NewMemoryLedger()
		slog.Warn("using in-memory ledger; consumed ids are lost on restart")
	}

	// Wallet collaborator
	safe, err := newWalletClient(cfg)
	if err != nil {
		slog.Error("failed to connect to wallet", "error", err)
		os.Exit(1)
	}
	defer safe.Close()

	domain := txhash.NewDomain(safe.ChainID(), cfg.GatewayAddress)

	authz, err := authorizer.New(ctx, domain, signers, idLedger, safe, cfg.GatewayAddress)
	if err != nil {
		slog.Error("failed to initialize authorizer", "error", err)
		os.Exit(1)
	}
	slog.Info("authorizer ready",
		"wallet", cfg.WalletAddress.Hex(),
		"gateway", cfg.GatewayAddress.Hex(),
		"chain_id", safe.ChainID().String())

	server := api.NewServer(cfg, authz, audit, metrics.New())

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("error during shutdown", "error", err)
		}
	}
}

// newWalletClient builds the Safe client, decoding the optional relayer key.
func newWalletClient(cfg *config.Config) (*wallet.SafeClient, error) {
	if cfg.RelayerKeyHex == "" {
		return wallet.NewSafeClient(cfg.RPCURL, cfg.WalletAddress, nil)
	}
	key, err := crypto.HexToECDSA(cfg.RelayerKeyHex)
	if err != nil {
		return nil, err
	}
	return wallet.NewSafeClient(cfg.RPCURL, cfg.WalletAddress, key)
}
