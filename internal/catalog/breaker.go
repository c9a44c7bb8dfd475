package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig controls when the catalog breaker opens.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "catalog",
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// BreakerSource stops calling the upstream after repeated temporary failures
// and answers with ErrUnavailable until the breaker half-opens again.
type BreakerSource struct {
	src   Source
	cb    *gobreaker.CircuitBreaker[any]
	state prometheus.Gauge
}

var _ Source = (*BreakerSource)(nil)

// NewBreakerSource wraps src. reg may be nil.
func NewBreakerSource(src Source, cfg BreakerConfig, log *zap.Logger, reg prometheus.Registerer) *BreakerSource {
	if log == nil {
		log = zap.NewNop()
	}
	b := &BreakerSource{src: src}

	if reg != nil {
		b.state = prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "storefront_circuit_breaker_state",
			Help:        "Catalog circuit breaker state (0=closed, 1=half-open, 2=open)",
			ConstLabels: prometheus.Labels{"name": cfg.Name},
		})
		reg.MustRegister(b.state)
	}

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < cfg.MinRequests {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			var ferr *FetchError
			return err == nil || !errors.As(err, &ferr) || !ferr.Temporary()
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if b.state != nil {
				b.state.Set(stateValue(to))
			}
		},
	})
	return b
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}

func (b *BreakerSource) State() gobreaker.State { return b.cb.State() }

func execute[T any](b *BreakerSource, resource string, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, &FetchError{Resource: resource, Err: ErrUnavailable}
		}
		return zero, err
	}
	return v.(T), nil
}

func (b *BreakerSource) Products(ctx context.Context) ([]Product, error) {
	return execute(b, productsResource, func() ([]Product, error) { return b.src.Products(ctx) })
}

func (b *BreakerSource) Product(ctx context.Context, id int) (Product, error) {
	return execute(b, productResource(id), func() (Product, error) { return b.src.Product(ctx, id) })
}

func (b *BreakerSource) Categories(ctx context.Context) ([]string, error) {
	return execute(b, categoriesResource, func() ([]string, error) { return b.src.Categories(ctx) })
}

func (b *BreakerSource) ProductsByCategory(ctx context.Context, category string) ([]Product, error) {
	return execute(b, categoryResource(category), func() ([]Product, error) {
		return b.src.ProductsByCategory(ctx, category)
	})
}
