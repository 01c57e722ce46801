package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolStat is the part of *pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
	MaxConns() int32
}

// RecordDBPoolMetrics updates the pool gauges from the live pool used by the postgres store.
func RecordDBPoolMetrics(pool *pgxpool.Pool) {
	RecordPoolStat(pool.Stat())
}

// RecordPoolStat updates the pool gauges from a stat snapshot.
func RecordPoolStat(stat PoolStat) {
	DBPoolConnections.WithLabelValues("in_use").Set(float64(stat.AcquiredConns()))
	DBPoolConnections.WithLabelValues("idle").Set(float64(stat.IdleConns()))
	DBPoolConnections.WithLabelValues("total").Set(float64(stat.TotalConns()))
	DBPoolConnections.WithLabelValues("max").Set(float64(stat.MaxConns()))
}
