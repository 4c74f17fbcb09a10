package database

import "sync/atomic"

// PoolStats is a point-in-time snapshot of the pool counters.
type PoolStats struct {
	ConnectionsCreated  int64 `json:"connections_created"`
	ConnectionsFailed   int64 `json:"connections_failed"`
	ConnectionsReused   int64 `json:"connections_reused"`
	ExhaustedWaits      int64 `json:"exhausted_waits"`
	WaitTimeouts        int64 `json:"wait_timeouts"`
	HealthChecks        int64 `json:"health_checks"`
	HealthCheckFailures int64 `json:"health_check_failures"`
	QueriesExecuted     int64 `json:"queries_executed"`
	QueriesErrored      int64 `json:"queries_errored"`
	StatementsPrepared  int64 `json:"statements_prepared"`
	StatementsReused    int64 `json:"statements_reused"`
	ResultCacheHits     int64 `json:"result_cache_hits"`
	ResultCacheMisses   int64 `json:"result_cache_misses"`
}

// Stats holds the process-wide pool counters. All increments are atomic.
type Stats struct {
	connectionsCreated  atomic.Int64
	connectionsFailed   atomic.Int64
	connectionsReused   atomic.Int64
	exhaustedWaits      atomic.Int64
	waitTimeouts        atomic.Int64
	healthChecks        atomic.Int64
	healthCheckFailures atomic.Int64
	queriesExecuted     atomic.Int64
	queriesErrored      atomic.Int64
	statementsPrepared  atomic.Int64
	statementsReused    atomic.Int64
	resultCacheHits     atomic.Int64
	resultCacheMisses   atomic.Int64
}

// Snapshot returns a consistent-enough copy of every counter.
func (s *Stats) Snapshot() PoolStats {
	return PoolStats{
		ConnectionsCreated:  s.connectionsCreated.Load(),
		ConnectionsFailed:   s.connectionsFailed.Load(),
		ConnectionsReused:   s.connectionsReused.Load(),
		ExhaustedWaits:      s.exhaustedWaits.Load(),
		WaitTimeouts:        s.waitTimeouts.Load(),
		HealthChecks:        s.healthChecks.Load(),
		HealthCheckFailures: s.healthCheckFailures.Load(),
		QueriesExecuted:     s.queriesExecuted.Load(),
		QueriesErrored:      s.queriesErrored.Load(),
		StatementsPrepared:  s.statementsPrepared.Load(),
		StatementsReused:    s.statementsReused.Load(),
		ResultCacheHits:     s.resultCacheHits.Load(),
		ResultCacheMisses:   s.resultCacheMisses.Load(),
	}
}
