package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"Storefront/internal/cart"
	"Storefront/internal/catalog"
	"Storefront/internal/checkout"
	"Storefront/internal/config"
	"Storefront/internal/querycache"
	"Storefront/internal/storage"
	"Storefront/internal/storefront"
	"Storefront/internal/wishlist"
	"Storefront/pkg/kit"
)

const startupTimeout = 10 * time.Second

func main() {
	service := "storefront"

	cfg, err := config.Load()
	if err != nil {
		kit.NewLogger(service, "info").Fatal("load config failed", zap.Error(err))
	}

	log := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	taxRate, err := cfg.Tax()
	if err != nil {
		log.Fatal("invalid tax rate", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	kv, closeStorage, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		log.Fatal("open storage failed", zap.String("backend", cfg.StorageBackend), zap.Error(err))
	}
	log.Info("storage ready", zap.String("backend", cfg.StorageBackend))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cache := querycache.New(querycache.WithRegistry(reg))
	upstream := catalog.NewBreakerSource(
		catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout),
		catalog.DefaultBreakerConfig(), log.Named("catalog"), reg,
	)
	products := catalog.NewCachedClient(upstream, cache)

	c := cart.New(ctx, kv, log.Named("cart"), cart.WithRegistry(reg))
	session := storefront.NewSession(c, wishlist.New(log.Named("wishlist")), log)

	s := &storefront.Server{
		Catalog:  products,
		Session:  session,
		Checkout: checkout.NewService(c, taxRate, cfg.CheckoutDelay, log.Named("checkout")),
		Storage:  kv,
		TaxRate:  taxRate,
		Log:      log,
	}

	h := storefront.NewHandler(s, storefront.HTTPDeps{
		Log:             log,
		Service:         service,
		Registry:        reg,
		MetricsEnabled:  cfg.MetricsEnabled,
		MetricsToken:    cfg.MetricsToken,
		CheckoutLimiter: kit.NewIPRateLimiter(cfg.CheckoutRateLimit, cfg.CheckoutRateWindow),
	})

	if err := kit.RunHTTPServer(cfg.Addr(), h, log, closeStorage); err != nil {
		log.Fatal("http server stopped", zap.Error(err))
	}
}
