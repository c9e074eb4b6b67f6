package capacity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalsfoundry/ce-endpoints/core"
	"github.com/signalsfoundry/ce-endpoints/internal/observability"
	"github.com/signalsfoundry/ce-endpoints/kb"
	"github.com/signalsfoundry/ce-endpoints/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var cpA = model.NewConnectPoint("deviceA", 1)

func newINNI(t *testing.T, speed model.Bandwidth) *core.INNI {
	t.Helper()
	inv := kb.NewKnowledgeBase()
	require.NoError(t, inv.AddDevice(&model.Device{ID: "deviceA"}))
	require.NoError(t, inv.UpsertPort(model.Port{Device: "deviceA", Number: 1, Speed: speed}))

	ni, err := core.NewINNI(context.Background(), inv, cpA, "", core.INNIRoleTrunk)
	require.NoError(t, err)
	return ni
}

func TestLedger_AdmitAndRelease(t *testing.T) {
	ni := newINNI(t, model.Mbps(1000))
	l := NewLedger()
	require.NoError(t, l.Track(ni))
	ctx := context.Background()

	r1, err := l.Admit(ctx, cpA, model.Mbps(600), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, model.Mbps(600), ni.UsedCapacity(), "used capacity mirrored onto interface")

	_, err = l.Admit(ctx, cpA, model.Mbps(500), "svc-2")
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
	assert.Equal(t, model.Mbps(600), ni.UsedCapacity(), "rejected admission must not change used capacity")

	r2, err := l.Admit(ctx, cpA, model.Mbps(400), "svc-2")
	require.NoError(t, err)
	avail, err := l.Available(cpA)
	require.NoError(t, err)
	assert.Equal(t, model.Bandwidth(0), avail)

	released, err := l.Release(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, r1, released)
	assert.Equal(t, model.Mbps(400), ni.UsedCapacity())

	_, err = l.Release(ctx, r1.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	_, err = l.Release(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Bandwidth(0), ni.UsedCapacity())
}

func TestLedger_BadInputAndUntracked(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	assert.ErrorIs(t, l.Track(nil), ErrBadInput)
	assert.ErrorIs(t, l.Track((*core.INNI)(nil)), ErrBadInput)
	assert.ErrorIs(t, l.Track((*core.UNI)(nil)), ErrBadInput)
	assert.Empty(t, l.Snapshot())

	_, err := l.Admit(ctx, cpA, model.Mbps(1), "svc")
	assert.ErrorIs(t, err, ErrNotTracked)

	ni := newINNI(t, model.Mbps(100))
	require.NoError(t, l.Track(ni))
	assert.ErrorIs(t, l.Track(ni), ErrAlreadyTracked)

	_, err = l.Admit(ctx, cpA, 0, "svc")
	assert.ErrorIs(t, err, ErrBadInput)
	_, err = l.Admit(ctx, cpA, model.Mbps(-5), "svc")
	assert.ErrorIs(t, err, ErrBadInput)

	_, err = l.Available(model.NewConnectPoint("deviceZ", 9))
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestLedger_TrackKeepsExistingUsage(t *testing.T) {
	ni := newINNI(t, model.Mbps(1000))
	ni.SetUsedCapacity(model.Mbps(900))

	l := NewLedger()
	require.NoError(t, l.Track(ni))

	u, err := l.Usage(cpA)
	require.NoError(t, err)
	assert.Equal(t, model.Mbps(900), u.Used)
	assert.Equal(t, core.TypeINNI, u.Type)

	_, err = l.Admit(context.Background(), cpA, model.Mbps(200), "svc")
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestLedger_CapacityOverrideIsHonoured(t *testing.T) {
	ni := newINNI(t, model.Mbps(1000))
	l := NewLedger()
	require.NoError(t, l.Track(ni))

	ni.SetCapacity(model.Mbps(100))
	_, err := l.Admit(context.Background(), cpA, model.Mbps(150), "svc")
	assert.ErrorIs(t, err, ErrInsufficientCapacity)
}

func TestLedger_UntrackDropsReservations(t *testing.T) {
	ni := newINNI(t, model.Mbps(1000))
	l := NewLedger()
	require.NoError(t, l.Track(ni))
	ctx := context.Background()

	r, err := l.Admit(ctx, cpA, model.Mbps(10), "svc")
	require.NoError(t, err)
	require.NoError(t, l.Untrack(cpA))
	assert.ErrorIs(t, l.Untrack(cpA), ErrNotTracked)

	_, err = l.Release(ctx, r.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.Empty(t, l.Snapshot())
}

func TestLedger_ReleaseOwner(t *testing.T) {
	ni := newINNI(t, model.Mbps(1000))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	l := NewLedger()
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	require.NoError(t, l.Track(ni))
	ctx := context.Background()

	a, err := l.Admit(ctx, cpA, model.Mbps(100), "svc-1")
	require.NoError(t, err)
	_, err = l.Admit(ctx, cpA, model.Mbps(200), "svc-2")
	require.NoError(t, err)
	b, err := l.Admit(ctx, cpA, model.Mbps(300), "svc-1")
	require.NoError(t, err)

	released := l.ReleaseOwner(ctx, "svc-1")
	require.Len(t, released, 2)
	assert.Equal(t, a.ID, released[0].ID)
	assert.Equal(t, b.ID, released[1].ID)
	assert.Equal(t, model.Mbps(200), ni.UsedCapacity())

	remaining := l.Reservations(cpA)
	require.Len(t, remaining, 1)
	assert.Equal(t, "svc-2", remaining[0].Owner)

	assert.Empty(t, l.ReleaseOwner(ctx, "nobody"))
}

func TestLedger_TracesAdmitAndRelease(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ni := newINNI(t, model.Mbps(1000))
	l := NewLedger()
	require.NoError(t, l.Track(ni))
	ctx := context.Background()

	r, err := l.Admit(ctx, cpA, model.Mbps(100), "svc-1")
	require.NoError(t, err)
	_, err = l.Release(ctx, r.ID)
	require.NoError(t, err)
	_, err = l.Release(ctx, r.ID)
	require.ErrorIs(t, err, ErrReservationNotFound)
	_, err = l.Admit(ctx, cpA, model.Mbps(50), "svc-2")
	require.NoError(t, err)
	l.ReleaseOwner(ctx, "svc-2")

	spans := sr.Ended()
	require.Len(t, spans, 5)
	names := make([]string, len(spans))
	for i, s := range spans {
		names[i] = s.Name()
	}
	assert.Equal(t, []string{
		"capacity.Admit", "capacity.Release", "capacity.Release",
		"capacity.Admit", "capacity.ReleaseOwner",
	}, names)

	released := spans[1]
	assert.Equal(t, codes.Unset, released.Status().Code)
	var sawCP bool
	for _, kv := range released.Attributes() {
		if string(kv.Key) == "ce.connect_point" {
			sawCP = true
			assert.Equal(t, cpA.String(), kv.Value.AsString())
		}
	}
	assert.True(t, sawCP, "release span carries the connect point")
	assert.Equal(t, codes.Error, spans[2].Status().Code)
}

func TestLedger_DeterministicIDs(t *testing.T) {
	ni := newINNI(t, model.Mbps(1000))
	want := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	l := NewLedger()
	l.newID = func() uuid.UUID { return want }
	require.NoError(t, l.Track(ni))

	r, err := l.Admit(context.Background(), cpA, model.Mbps(1), "svc")
	require.NoError(t, err)
	assert.Equal(t, want, r.ID)
}

func TestLedger_ConcurrentAdmitNeverOvercommits(t *testing.T) {
	ni := newINNI(t, model.Mbps(1000))
	l := NewLedger()
	require.NoError(t, l.Track(ni))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Admit(ctx, cpA, model.Mbps(100), "svc"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, admitted)
	assert.Equal(t, model.Mbps(1000), ni.UsedCapacity())
}

func TestLedger_PublishesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewCapacityCollector(reg)
	require.NoError(t, err)

	ni := newINNI(t, model.Mbps(1000))
	l := NewLedger(WithMetrics(metrics))
	require.NoError(t, l.Track(ni))
	ctx := context.Background()

	r, err := l.Admit(ctx, cpA, model.Mbps(250), "svc")
	require.NoError(t, err)
	_, err = l.Admit(ctx, cpA, model.Mbps(900), "svc")
	require.Error(t, err)

	assert.Equal(t, 1e9, testutil.ToFloat64(metrics.Capacity.WithLabelValues("deviceA/1", "INNI")))
	assert.Equal(t, 2.5e8, testutil.ToFloat64(metrics.UsedCapacity.WithLabelValues("deviceA/1", "INNI")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Admissions.WithLabelValues(observability.AdmissionAdmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Admissions.WithLabelValues(observability.AdmissionRejected)))

	_, err = l.Release(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Releases))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.UsedCapacity.WithLabelValues("deviceA/1", "INNI")))
}
