// Package trial limits how many questions a non-entitled user may answer.
//
// The count is a lifetime total across every topic and session, so the gate
// is consulted both before a session starts and after each answer.
package trial

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cdlprep/cdlprep/internal/logging"
	"github.com/cdlprep/cdlprep/internal/store"
)

// DefaultFreeLimit is the number of questions a user may answer without an
// entitlement.
const DefaultFreeLimit = 50

// ErrAccessDenied reports that the free budget is used up and the user is
// not entitled.
var ErrAccessDenied = errors.New("free question limit reached")

// Counter reads and bumps the lifetime answered counter.
type Counter interface {
	Lifetime(ctx context.Context, userID string) (int, error)
	IncrementLifetime(ctx context.Context, userID string) (int, error)
}

// EntitlementProvider reports whether a user has paid access. The gate only
// reads it.
type EntitlementProvider interface {
	IsEntitled(ctx context.Context, userID string) (bool, error)
}

// Static is an EntitlementProvider with a fixed answer.
type Static bool

func (s Static) IsEntitled(context.Context, string) (bool, error) { return bool(s), nil }

// StoreEntitlements reads entitlement records kept in the store.
type StoreEntitlements struct {
	Repo store.EntitlementRepo
}

func (s StoreEntitlements) IsEntitled(ctx context.Context, userID string) (bool, error) {
	return s.Repo.Entitled(ctx, userID)
}

// Status is a snapshot of a user's standing with the gate.
type Status struct {
	Entitled  bool
	Used      int
	Remaining int
	Limit     int
	// Unknown is set when the counter could not be read and no earlier
	// value was available.
	Unknown bool
}

// CanAccess reports whether the user may keep answering questions.
func (s Status) CanAccess() bool {
	return s.Entitled || s.Unknown || s.Remaining > 0
}

// Gate combines the lifetime counter with entitlement.
type Gate struct {
	counter Counter
	ent     EntitlementProvider
	limit   int
	log     logrus.FieldLogger

	mu        sync.Mutex
	lastKnown map[string]int
}

// NewGate creates a Gate. A limit of zero or less means DefaultFreeLimit.
func NewGate(counter Counter, ent EntitlementProvider, limit int, log logrus.FieldLogger) *Gate {
	if limit <= 0 {
		limit = DefaultFreeLimit
	}
	if ent == nil {
		ent = Static(false)
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Gate{
		counter:   counter,
		ent:       ent,
		limit:     limit,
		log:       log,
		lastKnown: make(map[string]int),
	}
}

// Limit returns the configured free limit.
func (g *Gate) Limit() int { return g.limit }

// Check returns the user's current status without changing anything.
func (g *Gate) Check(ctx context.Context, userID string) Status {
	used, err := g.counter.Lifetime(ctx, userID)
	return g.status(ctx, userID, used, err)
}

// RecordAnswer adds exactly one answered question to the lifetime counter
// and returns the status after the increment.
func (g *Gate) RecordAnswer(ctx context.Context, userID string) Status {
	used, err := g.counter.IncrementLifetime(ctx, userID)
	if err != nil {
		// The answer still happened; count it against the last known value.
		g.mu.Lock()
		if n, ok := g.lastKnown[userID]; ok {
			g.lastKnown[userID] = n + 1
		}
		g.mu.Unlock()
	}
	return g.status(ctx, userID, used, err)
}

func (g *Gate) status(ctx context.Context, userID string, used int, countErr error) Status {
	log := logging.FromContext(ctx, g.log).WithField("user_id", userID)

	st := Status{Limit: g.limit}

	entitled, err := g.ent.IsEntitled(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("entitlement check failed; treating user as not entitled")
		entitled = false
	}
	st.Entitled = entitled

	g.mu.Lock()
	defer g.mu.Unlock()
	if countErr != nil {
		n, ok := g.lastKnown[userID]
		if !ok {
			log.WithError(countErr).Warn("trial counter unavailable; allowing access")
			st.Unknown = true
			return st
		}
		log.WithError(countErr).Warn("trial counter unavailable; using last known count")
		used = n
	} else {
		g.lastKnown[userID] = used
	}

	st.Used = used
	st.Remaining = max(0, g.limit-used)
	return st
}
