package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stakevault/config"
	"stakevault/core"
	"stakevault/core/state"
	gatewayconfig "stakevault/gateway/config"
	"stakevault/gateway/middleware"
	"stakevault/gateway/routes"
	"stakevault/native/assets"
	"stakevault/native/staking"
	"stakevault/native/vault"
	"stakevault/observability/logging"
	"stakevault/rpc"
	"stakevault/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the node configuration file")
	gatewayPath := flag.String("gateway-config", "", "path to the gateway configuration file (defaults apply when empty)")
	flag.Parse()

	if err := run(*configPath, *gatewayPath); err != nil {
		fmt.Fprintf(os.Stderr, "stakevaultd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, gatewayPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup("stakevaultd", cfg.Environment)

	var db storage.Database
	if cfg.DataDir == "" {
		logger.Warn("no DataDir configured, running with in-memory state")
		db = storage.NewMemDB()
	} else {
		ldb, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		db = ldb
	}
	defer func() {
		_ = db.Close()
	}()

	manager, err := state.NewManager(db)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	custody := [20]byte{}
	if cfg.CustodyAddress != "" {
		custody, err = config.ParseAddress(cfg.CustodyAddress)
		if err != nil {
			return err
		}
	}

	// Registries are configured per deployment; the dev daemon runs
	// in-memory ones so staking and dispensing work out of the box.
	source := assets.NewMemSource()
	for _, seed := range cfg.Collections {
		switch seed.Kind {
		case "uniqueNFT":
			source.NFTs[seed.ID] = assets.NewMemNFT()
		case "pooledNFT":
			source.Slots[seed.ID] = assets.NewMemSlot()
		case "fungible":
			source.Fungibles[seed.ID] = assets.NewMemFungible()
		}
	}
	for _, seed := range cfg.Catalog {
		switch seed.Kind {
		case "poolNFT":
			source.NFTs[seed.ID] = assets.NewMemNFT()
		case "slotNFT":
			source.Slots[seed.ID] = assets.NewMemSlot()
		case "fungible":
			source.Fungibles[seed.ID] = assets.NewMemFungible()
		}
	}

	node, err := core.NewNode(manager, source, custody, logger)
	if err != nil {
		return err
	}
	if err := seedState(manager, cfg); err != nil {
		return fmt.Errorf("seed state: %w", err)
	}

	gatewayCfg, err := gatewayconfig.Load(gatewayPath)
	if err != nil {
		return err
	}
	if cfg.GatewayAddress != "" {
		gatewayCfg.ListenAddress = cfg.GatewayAddress
	}

	rpcServer := rpc.NewServer(node, logger)
	rpcHTTP := &http.Server{
		Addr:         cfg.RPCAddress,
		Handler:      rpcServer.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	var authenticator *middleware.Authenticator
	if gatewayCfg.Auth.Enabled {
		authenticator = middleware.NewAuthenticator(
			gatewayCfg.Auth.HMACSecret,
			gatewayCfg.Auth.Issuer,
			gatewayCfg.Auth.Audience,
			gatewayCfg.Auth.ClockSkew,
		)
	}
	gatewayHandler := routes.New(routes.Config{
		Backend:       node,
		Authenticator: authenticator,
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimit{
			RequestsPerMinute: gatewayCfg.RateLimit.RequestsPerMinute,
			Burst:             gatewayCfg.RateLimit.Burst,
		}),
		Observability: middleware.NewObservability(middleware.ObservabilityConfig{
			ServiceName:   gatewayCfg.Observability.ServiceName,
			MetricsPrefix: gatewayCfg.Observability.MetricsPrefix,
			LogRequests:   gatewayCfg.Observability.LogRequests,
			Enabled:       gatewayCfg.Observability.Enabled,
		}, logger),
	})
	gatewayHTTP := &http.Server{
		Addr:         gatewayCfg.ListenAddress,
		Handler:      gatewayHandler,
		ReadTimeout:  gatewayCfg.ReadTimeout,
		WriteTimeout: gatewayCfg.WriteTimeout,
		IdleTimeout:  gatewayCfg.IdleTimeout,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting JSON-RPC server", "addr", rpcHTTP.Addr)
		if err := rpcHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("starting fulfillment gateway", "addr", gatewayHTTP.Addr)
		if err := gatewayHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rpcHTTP.Shutdown(ctx); err != nil {
		logger.Error("rpc shutdown", "error", err)
	}
	if err := gatewayHTTP.Shutdown(ctx); err != nil {
		logger.Error("gateway shutdown", "error", err)
	}
	return nil
}

// seedState installs configured admins, collections and catalog entries.
// Seeds write through the ledger directly: boot provisioning predates any
// admin role holding.
func seedState(manager *state.Manager, cfg *config.Config) error {
	manager.Lock()
	defer manager.Unlock()

	for _, admin := range cfg.Admins {
		addr, err := config.ParseAddress(admin)
		if err != nil {
			return err
		}
		manager.GrantRole(staking.RoleAdmin, addr)
	}

	for _, seed := range cfg.Collections {
		if _, exists, err := manager.CollectionConfig(seed.ID); err != nil {
			return err
		} else if exists {
			continue
		}
		kind, err := collectionKind(seed.Kind)
		if err != nil {
			return err
		}
		collection := &staking.CollectionConfig{
			ID:               seed.ID,
			Active:           seed.Active,
			Kind:             kind,
			SlotID:           seed.SlotID,
			BaseRate:         big.NewInt(seed.BaseRate),
			PremiumBonuses:   ratesFromInts(seed.PremiumBonuses),
			SecondaryBonuses: ratesFromInts(seed.SecondaryBonuses),
		}
		if seed.TraitRoot != "" {
			root, err := config.ParseRoot(seed.TraitRoot)
			if err != nil {
				return err
			}
			collection.TraitRoot = root
		}
		if err := manager.PutCollectionConfig(collection); err != nil {
			return err
		}
	}

	for _, seed := range cfg.Catalog {
		if _, exists, err := manager.VaultEntry(seed.ID); err != nil {
			return err
		} else if exists {
			continue
		}
		kind, err := entryKind(seed.Kind)
		if err != nil {
			return err
		}
		entry := &vault.Entry{
			ID:       seed.ID,
			Name:     seed.Name,
			Kind:     kind,
			SlotID:   seed.SlotID,
			Cost:     big.NewInt(seed.Cost),
			Hurdle:   big.NewInt(seed.Hurdle),
			Stock:    seed.Stock,
			ClaimCap: seed.ClaimCap,
			Pool:     seed.Pool,
		}
		if err := manager.PutVaultEntry(entry); err != nil {
			return err
		}
	}

	return manager.Commit()
}

func collectionKind(value string) (staking.CollectionKind, error) {
	switch value {
	case "uniqueNFT":
		return staking.KindUniqueNFT, nil
	case "pooledNFT":
		return staking.KindPooledNFT, nil
	case "fungible":
		return staking.KindFungible, nil
	default:
		return 0, fmt.Errorf("unknown collection kind %q", value)
	}
}

func entryKind(value string) (vault.EntryKind, error) {
	switch value {
	case "physical":
		return vault.KindPhysical, nil
	case "poolNFT":
		return vault.KindPoolNFT, nil
	case "slotNFT":
		return vault.KindSlotNFT, nil
	case "fungible":
		return vault.KindFungible, nil
	default:
		return 0, fmt.Errorf("unknown entry kind %q", value)
	}
}

func ratesFromInts(values []int64) []*big.Int {
	if len(values) == 0 {
		return nil
	}
	rates := make([]*big.Int, len(values))
	for i, value := range values {
		rates[i] = big.NewInt(value)
	}
	return rates
}
