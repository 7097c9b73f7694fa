// Package quota enforces the per-identity daily request budget.
//
// Buckets are day-scoped atomic counters in an external store. The store
// may be absent or unreachable; by default the ledger then fails open and
// admits everything, because for a free tier availability beats
// strictness. The increment happens before the limit comparison, so a
// rejected request still consumes a unit and retry storms are never free.
package quota

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/luminascale/enhance-api/internal/identity"
)

// CostRejectedRequests names the increment-before-check policy: the unit
// is spent by the admission check itself, not by a successful admission.
const CostRejectedRequests = true

const keyPrefix = "quota"

// ErrUnavailable is returned for counter-store failures when fail-open is
// disabled. With fail-open enabled (the default) it never escapes the ledger.
var ErrUnavailable = errors.New("quota store unavailable")

// Decision is the outcome of one admission check. It is carried through
// to response headers on both the success and the rejection path.
type Decision struct {
	Allowed bool
	Used    int64
	Limit   int64
	ResetAt string
}

// LedgerStats is the monitoring view over today's buckets.
type LedgerStats struct {
	Connected       bool  `json:"redis_connected"`
	IPBucketsToday  int64 `json:"total_ips_today"`
	KeyBucketsToday int64 `json:"total_api_keys_today"`
	RequestsToday   int64 `json:"total_requests_today"`
}

// Ledger tracks day-bucketed request counts per quota identity.
type Ledger struct {
	counter  Counter // nil means no store configured
	limit    int64
	ttl      time.Duration
	failOpen bool
	logger   *zap.Logger

	// now is swappable for day-boundary tests.
	now func() time.Time
}

// NewLedger builds a ledger over the given counter store. A nil counter
// disables enforcement entirely.
func NewLedger(counter Counter, limit int64, ttl time.Duration, failOpen bool, logger *zap.Logger) *Ledger {
	return &Ledger{
		counter:  counter,
		limit:    limit,
		ttl:      ttl,
		failOpen: failOpen,
		logger:   logger,
		now:      time.Now,
	}
}

// Limit returns the configured daily limit.
func (l *Ledger) Limit() int64 {
	return l.limit
}

// Connected reports whether a counter store is configured and reachable.
func (l *Ledger) Connected(ctx context.Context) bool {
	return l.counter != nil && l.counter.Ping(ctx) == nil
}

// CheckAndIncrement spends one unit of the identity's daily budget and
// decides admission. The increment-and-read is a single atomic operation
// against the store; concurrent callers on the same identity each see a
// distinct value.
//
// When the store is absent, or errors while fail-open is set, the call
// returns an all-clear decision with Used=0 and never an error.
func (l *Ledger) CheckAndIncrement(ctx context.Context, id identity.Identity) (Decision, error) {
	open := Decision{Allowed: true, Used: 0, Limit: l.limit, ResetAt: ""}

	if l.counter == nil {
		return open, nil
	}

	day := l.now().UTC().Format("2006-01-02")
	key := keyPrefix + ":" + string(id.Namespace) + ":" + id.Value + ":" + day

	used, err := l.counter.IncrWithTTL(ctx, key, l.ttl)
	if err != nil {
		l.logger.Error("quota check failed, degrading",
			zap.String("namespace", string(id.Namespace)),
			zap.String("identity", id.Value),
			zap.Bool("fail_open", l.failOpen),
			zap.Error(err))
		if l.failOpen {
			return open, nil
		}
		return Decision{}, ErrUnavailable
	}

	if used == 1 {
		l.logger.Info("new quota bucket created",
			zap.String("namespace", string(id.Namespace)),
			zap.String("identity", id.Value),
			zap.String("day", day))
	}

	return Decision{
		Allowed: used <= l.limit,
		Used:    used,
		Limit:   l.limit,
		ResetAt: day + "T23:59:59Z",
	}, nil
}

// Stats reports today's bucket counts per namespace. Reads only.
func (l *Ledger) Stats(ctx context.Context) LedgerStats {
	if l.counter == nil {
		return LedgerStats{Connected: false}
	}

	ipBuckets, ipTotal, err := l.counter.Snapshot(ctx, keyPrefix+":"+string(identity.NamespaceIP)+":")
	if err != nil {
		l.logger.Error("quota stats failed", zap.Error(err))
		return LedgerStats{Connected: false}
	}
	keyBuckets, keyTotal, err := l.counter.Snapshot(ctx, keyPrefix+":"+string(identity.NamespaceAPIKey)+":")
	if err != nil {
		l.logger.Error("quota stats failed", zap.Error(err))
		return LedgerStats{Connected: false}
	}

	return LedgerStats{
		Connected:       true,
		IPBucketsToday:  ipBuckets,
		KeyBucketsToday: keyBuckets,
		RequestsToday:   ipTotal + keyTotal,
	}
}
