// Package registry tracks which identity owns which live channel. It
// is the single shared mutable structure on every connection's
// processing path, so it is built on sync.Map rather than one big
// mutex: register/unregister/lookup for unrelated identities never
// serialize against each other.
package registry

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chatwire/internal/metrics"
	"chatwire/pkg/interfaces"
	"chatwire/pkg/types"
)

// Session is one registered connection. The pointer identity of a
// Session is what makes conditional unregistration work: an evicted
// session can never remove its replacement.
type Session struct {
	Identity      string
	Channel       interfaces.Channel
	EstablishedAt time.Time
}

// Registry maps identity -> *Session, with a numeric reverse index
// userID -> identity for O(1) recipient resolution during dispatch.
type Registry struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	count   atomic.Int64

	byIdentity sync.Map // identity string -> *Session
	byUserID   sync.Map // int64 userID -> *Session
}

// New creates an empty registry.
func New(log *zap.Logger, m *metrics.Metrics) *Registry {
	return &Registry{log: log, metrics: m}
}

// Register installs a new channel for identity and returns the prior
// channel, if any, so the caller can kick and close it. At most one
// session per identity holds at every instant: the swap is atomic.
func (r *Registry) Register(identity string, ch interfaces.Channel) (*Session, interfaces.Channel) {
	sess := &Session{
		Identity:      identity,
		Channel:       ch,
		EstablishedAt: time.Now(),
	}
	prev, replaced := r.byIdentity.Swap(identity, sess)
	if !replaced {
		r.count.Add(1)
		r.metrics.ActiveConnections.Inc()
	}
	r.log.Info("session registered",
		zap.String("identity", identity),
		zap.Bool("replaced", replaced),
		zap.Int64("online", r.count.Load()))
	if replaced {
		return sess, prev.(*Session).Channel
	}
	return sess, nil
}

// Unregister removes sess if it is still the current session for its
// identity. A late unregister from a session that was already replaced
// by a newer login is a no-op and returns false.
func (r *Registry) Unregister(sess *Session) bool {
	if sess == nil {
		return false
	}
	if !r.byIdentity.CompareAndDelete(sess.Identity, sess) {
		return false
	}
	r.count.Add(-1)
	r.metrics.ActiveConnections.Dec()
	r.log.Info("session unregistered",
		zap.String("identity", sess.Identity),
		zap.Int64("online", r.count.Load()))
	return true
}

// Lookup resolves the current channel for identity.
func (r *Registry) Lookup(identity string) (interfaces.Channel, bool) {
	v, ok := r.byIdentity.Load(identity)
	if !ok {
		return nil, false
	}
	return v.(*Session).Channel, true
}

// IsOnline reports whether identity has a registered channel that is
// still open.
func (r *Registry) IsOnline(identity string) bool {
	ch, ok := r.Lookup(identity)
	return ok && ch.IsOpen()
}

// Bind records sess in the numeric reverse index. The session pointer,
// not the identity string, is the key's value: a disconnect that races
// a fast reconnect for the same identity must not be able to clear the
// replacement's binding.
func (r *Registry) Bind(userID int64, sess *Session) {
	r.byUserID.Store(userID, sess)
}

// Unbind removes the reverse index entry only while it still belongs
// to sess, mirroring the conditional session removal.
func (r *Registry) Unbind(userID int64, sess *Session) {
	r.byUserID.CompareAndDelete(userID, sess)
}

// IdentityOf resolves a numeric user id to its registered identity.
func (r *Registry) IdentityOf(userID int64) (string, bool) {
	v, ok := r.byUserID.Load(userID)
	if !ok {
		return "", false
	}
	return v.(*Session).Identity, true
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int64 {
	return r.count.Load()
}

// Deliver sends env to the identity's current channel. A send error is
// "recipient unreachable now": the envelope is dropped for this
// attempt, logged, and registry state is untouched. Returns true only
// when the channel accepted the envelope.
func (r *Registry) Deliver(identity string, env *types.Envelope) bool {
	ch, ok := r.Lookup(identity)
	if !ok {
		r.metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeOffline).Inc()
		return false
	}
	if err := ch.Send(env); err != nil {
		r.metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		r.log.Warn("delivery failed, dropping envelope",
			zap.String("identity", identity),
			zap.String("kind", string(env.Type)),
			zap.Error(err))
		return false
	}
	r.metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeDelivered).Inc()
	return true
}

// DeliverToUser resolves userID through the reverse index and delivers
// env to that identity's channel.
func (r *Registry) DeliverToUser(userID int64, env *types.Envelope) bool {
	identity, ok := r.IdentityOf(userID)
	if !ok {
		r.metrics.DeliveriesTotal.WithLabelValues(metrics.OutcomeOffline).Inc()
		return false
	}
	return r.Deliver(identity, env)
}
