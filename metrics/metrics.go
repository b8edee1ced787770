// Package metrics exposes prometheus counters for the client:
//
//	tradeassist_orders_total{side,result}        orders handed to the backend (result: ok|error)
//	tradeassist_sizing_sessions_total{event}     opened|confirmed|cancelled|rejected
//	tradeassist_refreshes_total{kind,result}     kind: prices|portfolio
//	tradeassist_stale_refreshes_total{kind}      refresh results dropped because a newer one landed first
//	tradeassist_portfolio_value_usd              last aggregated portfolio value
//
// They are registered in init() and served by Serve at /metrics when an
// address is configured.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradeassist/logger"
)

var (
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeassist_orders_total",
			Help: "Orders submitted to the backend",
		},
		[]string{"side", "result"},
	)

	SizingSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeassist_sizing_sessions_total",
			Help: "Order sizing session events",
		},
		[]string{"event"},
	)

	Refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeassist_refreshes_total",
			Help: "Market context refreshes by kind and result",
		},
		[]string{"kind", "result"},
	)

	StaleRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeassist_stale_refreshes_total",
			Help: "Refresh results discarded because a newer refresh already landed",
		},
		[]string{"kind"},
	)

	PortfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeassist_portfolio_value_usd",
			Help: "Total portfolio value in quote currency",
		},
	)
)

func init() {
	prometheus.MustRegister(Orders, SizingSessions, Refreshes, StaleRefreshes)
	prometheus.MustRegister(PortfolioValue)
}

// Result maps an error to the result label
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Serve exposes /metrics on addr until ctx is done. An empty addr is a no-op.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}
	return nil
}
