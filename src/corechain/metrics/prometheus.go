package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// PrometheusMetrics implements CoreMetrics with Prometheus-compatible export.
type PrometheusMetrics struct {
	mu sync.RWMutex

	rpcMetrics map[string]*methodStats

	buildStats  *operationStats
	signStats   *operationStats
	submitStats *operationStats

	totalRPCCalls      int64
	successfulRPCCalls int64
	failedRPCCalls     int64
	lastSuccessfulCall time.Time

	totalSyncRounds   int64
	totalBlocksSynced int64
	totalSyncDuration time.Duration
}

type methodStats struct {
	totalCalls         int64
	successfulCalls    int64
	failedCalls        int64
	totalDuration      time.Duration
	minDuration        time.Duration
	maxDuration        time.Duration
	lastSuccessfulCall time.Time
	lastFailedCall     time.Time
}

type operationStats struct {
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	totalDuration   time.Duration
}

// NewPrometheusMetrics creates a new Prometheus-compatible metrics recorder.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		rpcMetrics:  make(map[string]*methodStats),
		buildStats:  &operationStats{},
		signStats:   &operationStats{},
		submitStats: &operationStats{},
	}
}

func (p *PrometheusMetrics) RecordRPCCall(method string, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalRPCCalls++
	if success {
		p.successfulRPCCalls++
		p.lastSuccessfulCall = time.Now()
	} else {
		p.failedRPCCalls++
	}

	stats, exists := p.rpcMetrics[method]
	if !exists {
		stats = &methodStats{minDuration: duration, maxDuration: duration}
		p.rpcMetrics[method] = stats
	}
	stats.totalCalls++
	stats.totalDuration += duration
	if success {
		stats.successfulCalls++
		stats.lastSuccessfulCall = time.Now()
	} else {
		stats.failedCalls++
		stats.lastFailedCall = time.Now()
	}
	if duration < stats.minDuration {
		stats.minDuration = duration
	}
	if duration > stats.maxDuration {
		stats.maxDuration = duration
	}
}

func (p *PrometheusMetrics) recordOp(op *operationStats, duration time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	op.totalCalls++
	op.totalDuration += duration
	if success {
		op.successfulCalls++
	} else {
		op.failedCalls++
	}
}

func (p *PrometheusMetrics) RecordTransferBuild(chainType string, duration time.Duration, success bool) {
	p.recordOp(p.buildStats, duration, success)
}

func (p *PrometheusMetrics) RecordTransferSign(chainType string, duration time.Duration, success bool) {
	p.recordOp(p.signStats, duration, success)
}

func (p *PrometheusMetrics) RecordTransferSubmit(chainType string, duration time.Duration, success bool) {
	p.recordOp(p.submitStats, duration, success)
}

func (p *PrometheusMetrics) RecordSyncRound(chainType string, blocksProcessed int, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalSyncRounds++
	p.totalBlocksSynced += int64(blocksProcessed)
	p.totalSyncDuration += duration
}

func successRate(total, successful int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(successful) / float64(total)
}

func avgDuration(total time.Duration, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

func (p *PrometheusMetrics) GetMetrics() *AggregatedMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &AggregatedMetrics{
		TotalRPCCalls:      p.totalRPCCalls,
		SuccessfulRPCCalls: p.successfulRPCCalls,
		FailedRPCCalls:     p.failedRPCCalls,
		RPCSuccessRate:     successRate(p.totalRPCCalls, p.successfulRPCCalls),
		LastSuccessfulCall: p.lastSuccessfulCall,

		TotalBuilds:      p.buildStats.totalCalls,
		SuccessfulBuilds: p.buildStats.successfulCalls,
		FailedBuilds:     p.buildStats.failedCalls,
		BuildSuccessRate: successRate(p.buildStats.totalCalls, p.buildStats.successfulCalls),
		AvgBuildDuration: avgDuration(p.buildStats.totalDuration, p.buildStats.totalCalls),

		TotalSigns:      p.signStats.totalCalls,
		SuccessfulSigns: p.signStats.successfulCalls,
		FailedSigns:     p.signStats.failedCalls,
		SignSuccessRate: successRate(p.signStats.totalCalls, p.signStats.successfulCalls),
		AvgSignDuration: avgDuration(p.signStats.totalDuration, p.signStats.totalCalls),

		TotalSubmits:      p.submitStats.totalCalls,
		SuccessfulSubmits: p.submitStats.successfulCalls,
		FailedSubmits:     p.submitStats.failedCalls,
		SubmitSuccessRate: successRate(p.submitStats.totalCalls, p.submitStats.successfulCalls),
		AvgSubmitDuration: avgDuration(p.submitStats.totalDuration, p.submitStats.totalCalls),

		TotalSyncRounds:     p.totalSyncRounds,
		TotalBlocksSynced:   p.totalBlocksSynced,
		AvgSyncRoundLatency: avgDuration(p.totalSyncDuration, p.totalSyncRounds),
	}
}

func (p *PrometheusMetrics) GetRPCMetrics(method string) *MethodMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.rpcMetrics[method]
	if !ok {
		return nil
	}
	return &MethodMetrics{
		Method:             method,
		TotalCalls:         s.totalCalls,
		SuccessfulCalls:    s.successfulCalls,
		FailedCalls:        s.failedCalls,
		SuccessRate:        successRate(s.totalCalls, s.successfulCalls),
		AvgDuration:        avgDuration(s.totalDuration, s.totalCalls),
		MinDuration:        s.minDuration,
		MaxDuration:        s.maxDuration,
		LastSuccessfulCall: s.lastSuccessfulCall,
		LastFailedCall:     s.lastFailedCall,
	}
}

func (p *PrometheusMetrics) GetHealthStatus() HealthStatus {
	m := p.GetMetrics()
	status := HealthStatus{Status: "OK", CheckedAt: time.Now()}
	if m.TotalRPCCalls > 0 && m.RPCSuccessRate < 0.9 {
		status.LowSuccessRate = true
	}
	if m.AvgRPCDuration > 5*time.Second {
		status.HighLatency = true
	}
	if !m.LastSuccessfulCall.IsZero() && time.Since(m.LastSuccessfulCall) > 5*time.Minute {
		status.NoRecentSuccess = true
	}
	switch {
	case status.NoRecentSuccess:
		status.Status = "Down"
		status.Message = "no successful RPC call in the last 5 minutes"
	case status.LowSuccessRate || status.HighLatency:
		status.Status = "Degraded"
		status.Message = "RPC success rate or latency outside normal bounds"
	default:
		status.Message = "healthy"
	}
	return status
}

func (p *PrometheusMetrics) Export() string {
	m := p.GetMetrics()
	var b strings.Builder
	fmt.Fprintf(&b, "# HELP corechain_rpc_calls_total Total number of RPC calls\n")
	fmt.Fprintf(&b, "# TYPE corechain_rpc_calls_total counter\n")
	p.mu.RLock()
	for method, s := range p.rpcMetrics {
		fmt.Fprintf(&b, "corechain_rpc_calls_total{method=%q,status=\"success\"} %d\n", method, s.successfulCalls)
		fmt.Fprintf(&b, "corechain_rpc_calls_total{method=%q,status=\"failure\"} %d\n", method, s.failedCalls)
	}
	p.mu.RUnlock()
	fmt.Fprintf(&b, "# HELP corechain_sync_blocks_total Blocks processed by BCS/UTXO/generic sync rounds\n")
	fmt.Fprintf(&b, "# TYPE corechain_sync_blocks_total counter\n")
	fmt.Fprintf(&b, "corechain_sync_blocks_total %d\n", m.TotalBlocksSynced)
	return b.String()
}

func (p *PrometheusMetrics) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rpcMetrics = make(map[string]*methodStats)
	p.buildStats = &operationStats{}
	p.signStats = &operationStats{}
	p.submitStats = &operationStats{}
	p.totalRPCCalls, p.successfulRPCCalls, p.failedRPCCalls = 0, 0, 0
	p.totalSyncRounds, p.totalBlocksSynced, p.totalSyncDuration = 0, 0, 0
}

var _ CoreMetrics = (*PrometheusMetrics)(nil)
