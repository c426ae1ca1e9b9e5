package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func registerDBMetrics(pool *pgxpool.Pool, logger zerolog.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "alarm_history_rows",
			Help: "Recorded alarm history rows",
		},
		func() float64 {
			return queryCount(pool, logger, "SELECT COUNT(*) FROM alarm_history")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "fact_event_rows",
			Help: "Recorded operations log rows",
		},
		func() float64 {
			return queryCount(pool, logger, "SELECT COUNT(*) FROM fact_events")
		},
	))
}

func queryCount(pool *pgxpool.Pool, logger zerolog.Logger, query string) float64 {
	if pool == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var count int64
	if err := pool.QueryRow(ctx, query).Scan(&count); err != nil {
		logger.Warn().Err(err).Msg("metrics query failed")
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
