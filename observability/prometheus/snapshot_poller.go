package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-pool-registry/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SnapshotSource provides the statistics of every pool it owns.
// *core.Registry implements it.
type SnapshotSource interface {
	Snapshot() []core.PoolStats
}

var _ SnapshotSource = (*core.Registry)(nil)

// SnapshotPoller periodically exports Snapshot() results into Prometheus
// gauges labelled by pool. Series of pools that disappear from the snapshot
// are removed.
type SnapshotPoller struct {
	interval time.Duration
	source   SnapshotSource

	poolState      *prom.GaugeVec
	poolWorkers    *prom.GaugeVec
	poolQueued     *prom.GaugeVec
	poolBlocked    *prom.GaugeVec
	poolRunning    *prom.GaugeVec
	poolSubmitted  *prom.GaugeVec
	poolCompleted  *prom.GaugeVec
	poolSucceeded  *prom.GaugeVec
	poolDiscarded  *prom.GaugeVec
	poolRejected   *prom.GaugeVec
	poolPanicked   *prom.GaugeVec
	poolAvgWait    *prom.GaugeVec
	poolMaxWait    *prom.GaugeVec
	poolAvgExec    *prom.GaugeVec
	poolMaxExec    *prom.GaugeVec
	perPoolVectors []*prom.GaugeVec

	seenMu sync.Mutex
	seen   map[string]struct{}

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller over source and registers its
// collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, source SnapshotSource, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, []string{"pool"})
	}

	p := &SnapshotPoller{
		interval:      interval,
		source:        source,
		seen:          make(map[string]struct{}),
		poolState:     gauge("pool_state", "Pool lifecycle state (0=new, 1=preparing, 2=ready, 3=stopping)."),
		poolWorkers:   gauge("pool_workers", "Live workers per pool."),
		poolQueued:    gauge("pool_queued", "Queued tasks per pool."),
		poolBlocked:   gauge("pool_blocked", "Submitted tasks not yet started per pool."),
		poolRunning:   gauge("pool_running", "Running tasks per pool."),
		poolSubmitted: gauge("pool_submitted_total", "Pool submitted task count snapshot."),
		poolCompleted: gauge("pool_completed_total", "Pool completed task count snapshot."),
		poolSucceeded: gauge("pool_completed_successfully_total", "Pool successful task count snapshot."),
		poolDiscarded: gauge("pool_discarded_total", "Pool accepted-then-dropped task count snapshot."),
		poolRejected:  gauge("pool_rejected_total", "Pool refused submission count snapshot."),
		poolPanicked:  gauge("pool_panicked_total", "Pool panicked task count snapshot."),
		poolAvgWait:   gauge("pool_wait_seconds_avg", "Mean submit-to-start time per pool."),
		poolMaxWait:   gauge("pool_wait_seconds_max", "Longest submit-to-start time per pool."),
		poolAvgExec:   gauge("pool_exec_seconds_avg", "Mean execution time per pool."),
		poolMaxExec:   gauge("pool_exec_seconds_max", "Longest execution time per pool."),
	}

	vectors := []**prom.GaugeVec{
		&p.poolState, &p.poolWorkers, &p.poolQueued, &p.poolBlocked, &p.poolRunning,
		&p.poolSubmitted, &p.poolCompleted, &p.poolSucceeded, &p.poolDiscarded, &p.poolRejected,
		&p.poolPanicked,
		&p.poolAvgWait, &p.poolMaxWait, &p.poolAvgExec, &p.poolMaxExec,
	}
	for _, v := range vectors {
		registered, err := registerCollector(reg, *v)
		if err != nil {
			return nil, err
		}
		*v = registered
		p.perPoolVectors = append(p.perPoolVectors, registered)
	}

	return p, nil
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce exports one snapshot immediately.
func (p *SnapshotPoller) CollectOnce() {
	if p == nil || p.source == nil {
		return
	}

	current := make(map[string]struct{})
	for _, stats := range p.source.Snapshot() {
		name := normalizeLabel(stats.Name, "pool")
		current[name] = struct{}{}

		p.poolState.WithLabelValues(name).Set(float64(stats.State))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolBlocked.WithLabelValues(name).Set(float64(stats.Blocked))
		p.poolRunning.WithLabelValues(name).Set(float64(stats.Running))
		p.poolSubmitted.WithLabelValues(name).Set(float64(stats.Submitted))
		p.poolCompleted.WithLabelValues(name).Set(float64(stats.Completed))
		p.poolSucceeded.WithLabelValues(name).Set(float64(stats.CompletedSuccessfully))
		p.poolDiscarded.WithLabelValues(name).Set(float64(stats.Discarded))
		p.poolRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.poolPanicked.WithLabelValues(name).Set(float64(stats.Panicked))
		p.poolAvgWait.WithLabelValues(name).Set(stats.AvgWait().Seconds())
		p.poolMaxWait.WithLabelValues(name).Set(stats.MaxWait.Seconds())
		p.poolAvgExec.WithLabelValues(name).Set(stats.AvgExec().Seconds())
		p.poolMaxExec.WithLabelValues(name).Set(stats.MaxExec.Seconds())
	}

	p.seenMu.Lock()
	defer p.seenMu.Unlock()
	for name := range p.seen {
		if _, ok := current[name]; ok {
			continue
		}
		for _, v := range p.perPoolVectors {
			v.DeleteLabelValues(name)
		}
	}
	p.seen = current
}
