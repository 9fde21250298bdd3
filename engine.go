package stellarauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/susin-d/stellarauth/internal/limiters"
	"github.com/susin-d/stellarauth/internal/oauthstate"
	"github.com/susin-d/stellarauth/internal/stores"
	"github.com/susin-d/stellarauth/password"
	"github.com/susin-d/stellarauth/token"
)

// Engine orchestrates every authentication flow. Construct through
// [Builder.Build]; all methods are safe for concurrent use afterwards.
type Engine struct {
	config Config

	codec  *token.Codec
	hasher *password.Hasher

	accounts AccountStore
	notifier Notifier
	provider OAuthProvider

	onetime     *stores.OneTimeStore
	spent       *stores.SpentTokenStore
	lockout     *limiters.LockoutTracker
	oauthStates *oauthstate.Store

	audit   *auditDispatcher
	metrics *Metrics
	logger  *slog.Logger

	now func() time.Time
}

// Close releases background resources: the audit dispatcher worker and
// the OAuth state sweeper.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.oauthStates != nil {
		e.oauthStates.Close()
	}
}

// MetricsSnapshot returns a copy of every engine counter.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were shed because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && e.codec != nil && e.hasher != nil && e.accounts != nil
}

func (e *Engine) binding(ctx context.Context) token.Binding {
	return token.Binding{
		UserAgent: userAgentFromContext(ctx),
		IP:        clientIPFromContext(ctx),
	}
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

// issuePair mints a fresh access/refresh pair bound to the request
// context and assembles the caller-facing result.
func (e *Engine) issuePair(ctx context.Context, user *User) (*SessionResult, error) {
	sub := token.Subject{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	}
	binding := e.binding(ctx)

	access, err := e.codec.Mint(token.KindAccess, sub, binding)
	if err != nil {
		return nil, err
	}
	refresh, err := e.codec.Mint(token.KindRefresh, sub, binding)
	if err != nil {
		return nil, err
	}

	return &SessionResult{
		User:         user.Summary(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
