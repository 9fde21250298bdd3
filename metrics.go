package stellarauth

import "sync/atomic"

// MetricID indexes an engine counter.
type MetricID uint16

const (
	// MetricSignUpSuccess counts completed sign-ups.
	MetricSignUpSuccess MetricID = iota
	// MetricSignUpDuplicate counts sign-ups rejected on an existing email.
	MetricSignUpDuplicate
	// MetricSignInSuccess counts successful sign-ins.
	MetricSignInSuccess
	// MetricSignInFailure counts failed sign-ins.
	MetricSignInFailure
	// MetricSignInLocked counts sign-ins refused by an active lockout.
	MetricSignInLocked
	// MetricAccountLocked counts lockouts triggered.
	MetricAccountLocked
	// MetricRefreshSuccess counts successful token rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh tokens.
	MetricRefreshFailure
	// MetricRefreshReuseDetected counts replays of rotated-out tokens.
	MetricRefreshReuseDetected
	// MetricTokenContextMismatch counts binding-hash rejections.
	MetricTokenContextMismatch
	// MetricVerificationRequest counts verification emails requested.
	MetricVerificationRequest
	// MetricVerificationSuccess counts completed email verifications.
	MetricVerificationSuccess
	// MetricVerificationFailure counts rejected verification tokens.
	MetricVerificationFailure
	// MetricResetRequest counts password-reset emails requested.
	MetricResetRequest
	// MetricResetSuccess counts completed password resets.
	MetricResetSuccess
	// MetricResetFailure counts rejected reset tokens.
	MetricResetFailure
	// MetricOAuthBegin counts OAuth flows started.
	MetricOAuthBegin
	// MetricOAuthSuccess counts completed OAuth sign-ins.
	MetricOAuthSuccess
	// MetricOAuthFailure counts failed OAuth completions.
	MetricOAuthFailure
	// MetricAccountDeleted counts soft deletions.
	MetricAccountDeleted
	// MetricNotifyFailure counts email deliveries that failed.
	MetricNotifyFailure
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value atomic.Uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters. Increment is allocation-free;
// Snapshot copies all counters at once.
type Metrics struct {
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

func newMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{}
}

// Inc increments a counter. Nil-safe so disabled metrics cost one branch.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.counters[id].value.Add(1)
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = m.counters[id].value.Load()
	}
	return snap
}
