// Package capacity tracks how much of each interface's capacity is
// committed to services.
//
// Interfaces themselves carry no locks, so concurrent admission against a
// shared interface goes through a Ledger. The ledger is the only writer of
// an interface's used capacity once the interface is tracked.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/signalsfoundry/ce-endpoints/core"
	"github.com/signalsfoundry/ce-endpoints/internal/logging"
	"github.com/signalsfoundry/ce-endpoints/internal/observability"
	"github.com/signalsfoundry/ce-endpoints/model"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrBadInput             = errors.New("invalid capacity request")
	ErrAlreadyTracked       = errors.New("interface already tracked")
	ErrNotTracked           = errors.New("interface not tracked")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrReservationNotFound  = errors.New("reservation not found")
)

// Reservation is a slice of bandwidth committed on one interface.
type Reservation struct {
	ID        uuid.UUID
	CP        model.ConnectPoint
	Bandwidth model.Bandwidth
	Owner     string
	CreatedAt time.Time
}

// Usage is a point-in-time view of one tracked interface.
type Usage struct {
	CP           model.ConnectPoint
	Type         core.Type
	Capacity     model.Bandwidth
	Used         model.Bandwidth
	Reservations int
}

// Available returns the uncommitted capacity. It is never negative.
func (u Usage) Available() model.Bandwidth {
	if u.Capacity.LessOrEqual(u.Used) {
		return 0
	}
	return u.Capacity.Sub(u.Used)
}

type entry struct {
	ni           core.NetworkInterface
	used         model.Bandwidth
	reservations map[uuid.UUID]struct{}
}

func (e *entry) usage() Usage {
	return Usage{
		CP:           e.ni.CP(),
		Type:         e.ni.Type(),
		Capacity:     e.ni.Capacity(),
		Used:         e.used,
		Reservations: len(e.reservations),
	}
}

// Ledger owns the used capacity of a set of interfaces.
type Ledger struct {
	mu sync.Mutex

	entries      map[model.ConnectPoint]*entry
	reservations map[uuid.UUID]Reservation

	log     logging.Logger
	metrics *observability.CapacityCollector
	now     func() time.Time
	newID   func() uuid.UUID
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for admission decisions.
func WithLogger(log logging.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// WithMetrics publishes capacity gauges and admission counters to c.
func WithMetrics(c *observability.CapacityCollector) Option {
	return func(l *Ledger) { l.metrics = c }
}

// NewLedger returns an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		entries:      make(map[model.ConnectPoint]*entry),
		reservations: make(map[uuid.UUID]Reservation),
		log:          logging.Noop(),
		now:          time.Now,
		newID:        uuid.New,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Track starts accounting for ni. Whatever used capacity ni already carries
// is taken as the committed baseline.
func (l *Ledger) Track(ni core.NetworkInterface) error {
	if core.IsNil(ni) {
		return fmt.Errorf("%w: nil interface", ErrBadInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cp := core.Key(ni)
	if _, ok := l.entries[cp]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyTracked, cp)
	}
	e := &entry{
		ni:           ni,
		used:         ni.UsedCapacity(),
		reservations: make(map[uuid.UUID]struct{}),
	}
	l.entries[cp] = e
	l.publishLocked(e)
	return nil
}

// Untrack stops accounting for the interface on cp and drops its
// reservations. The interface keeps its last used capacity.
func (l *Ledger) Untrack(cp model.ConnectPoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[cp]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotTracked, cp)
	}
	for id := range e.reservations {
		delete(l.reservations, id)
	}
	delete(l.entries, cp)
	l.metrics.ForgetInterface(cp.String(), string(e.ni.Type()))
	return nil
}

// Admit commits bw on the interface at cp for owner. The check against
// capacity and the update of used capacity happen atomically.
func (l *Ledger) Admit(ctx context.Context, cp model.ConnectPoint, bw model.Bandwidth, owner string) (res Reservation, err error) {
	ctx, span := observability.StartSpan(ctx, "capacity.Admit", cp.String(),
		attribute.Float64("ce.bandwidth_bps", bw.Bps()),
		attribute.String("ce.owner", owner),
	)
	defer func() { observability.EndSpan(span, err) }()

	if bw <= 0 {
		return Reservation{}, fmt.Errorf("%w: bandwidth must be positive, got %s", ErrBadInput, bw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[cp]
	if !ok {
		l.metrics.IncAdmission(observability.AdmissionRejected)
		return Reservation{}, fmt.Errorf("%w: %s", ErrNotTracked, cp)
	}

	next := e.used.Add(bw)
	if !next.LessOrEqual(e.ni.Capacity()) {
		l.metrics.IncAdmission(observability.AdmissionRejected)
		l.log.Info(ctx, "admission rejected",
			logging.Stringer("connect_point", cp),
			logging.Stringer("requested", bw),
			logging.Stringer("available", e.usage().Available()),
			logging.String("owner", owner),
		)
		return Reservation{}, fmt.Errorf("%w: %s requested %s, %s available",
			ErrInsufficientCapacity, cp, bw, e.usage().Available())
	}

	res = Reservation{
		ID:        l.newID(),
		CP:        cp,
		Bandwidth: bw,
		Owner:     owner,
		CreatedAt: l.now(),
	}
	e.used = next
	e.ni.SetUsedCapacity(next)
	e.reservations[res.ID] = struct{}{}
	l.reservations[res.ID] = res

	l.metrics.IncAdmission(observability.AdmissionAdmitted)
	l.publishLocked(e)
	l.log.Debug(ctx, "bandwidth admitted",
		logging.Stringer("connect_point", cp),
		logging.Stringer("reservation", res.ID),
		logging.Stringer("bandwidth", bw),
		logging.Stringer("used", next),
	)
	return res, nil
}

// Release returns the bandwidth of reservation id to its interface.
func (l *Ledger) Release(ctx context.Context, id uuid.UUID) (res Reservation, err error) {
	ctx, span := observability.StartSpan(ctx, "capacity.Release", "",
		attribute.String("ce.reservation", id.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[id]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: %s", ErrReservationNotFound, id)
	}
	span.SetAttributes(
		observability.ConnectPointAttr(res.CP.String()),
		attribute.Float64("ce.bandwidth_bps", res.Bandwidth.Bps()),
	)
	l.releaseLocked(ctx, res)
	return res, nil
}

// ReleaseOwner releases every reservation held by owner and returns them
// ordered by creation time.
func (l *Ledger) ReleaseOwner(ctx context.Context, owner string) []Reservation {
	ctx, span := observability.StartSpan(ctx, "capacity.ReleaseOwner", "",
		attribute.String("ce.owner", owner),
	)
	defer func() { observability.EndSpan(span, nil) }()

	l.mu.Lock()
	defer l.mu.Unlock()

	owned := lo.Filter(lo.Values(l.reservations), func(r Reservation, _ int) bool {
		return r.Owner == owner
	})
	sortReservations(owned)
	for _, res := range owned {
		l.releaseLocked(ctx, res)
	}
	span.SetAttributes(attribute.Int("ce.released", len(owned)))
	return owned
}

// NOTE: caller must hold l.mu.
func (l *Ledger) releaseLocked(ctx context.Context, res Reservation) {
	delete(l.reservations, res.ID)
	e, ok := l.entries[res.CP]
	if !ok {
		return
	}
	delete(e.reservations, res.ID)
	e.used = e.used.Sub(res.Bandwidth)
	if e.used < 0 {
		e.used = 0
	}
	e.ni.SetUsedCapacity(e.used)

	l.metrics.IncReleases()
	l.publishLocked(e)
	l.log.Debug(ctx, "bandwidth released",
		logging.Stringer("connect_point", res.CP),
		logging.Stringer("reservation", res.ID),
		logging.Stringer("bandwidth", res.Bandwidth),
	)
}

// Available returns the uncommitted capacity of the interface on cp.
func (l *Ledger) Available(cp model.ConnectPoint) (model.Bandwidth, error) {
	u, err := l.Usage(cp)
	if err != nil {
		return 0, err
	}
	return u.Available(), nil
}

// Usage returns the accounting view of the interface on cp.
func (l *Ledger) Usage(cp model.ConnectPoint) (Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[cp]
	if !ok {
		return Usage{}, fmt.Errorf("%w: %s", ErrNotTracked, cp)
	}
	return e.usage(), nil
}

// Snapshot returns the usage of every tracked interface ordered by
// connect point.
func (l *Ledger) Snapshot() []Usage {
	l.mu.Lock()
	out := lo.Map(lo.Values(l.entries), func(e *entry, _ int) Usage { return e.usage() })
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CP.String() < out[j].CP.String() })
	return out
}

// Reservations lists the reservations on cp ordered by creation time.
func (l *Ledger) Reservations(cp model.ConnectPoint) []Reservation {
	l.mu.Lock()
	out := lo.Filter(lo.Values(l.reservations), func(r Reservation, _ int) bool { return r.CP == cp })
	l.mu.Unlock()

	sortReservations(out)
	return out
}

// NOTE: caller must hold l.mu.
func (l *Ledger) publishLocked(e *entry) {
	l.metrics.SetInterfaceCapacity(e.ni.CP().String(), string(e.ni.Type()), e.ni.Capacity().Bps(), e.used.Bps())
}

func sortReservations(rs []Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID.String() < rs[j].ID.String()
	})
}
