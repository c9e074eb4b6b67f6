package kb

import (
	"context"
	"errors"
	"time"

	"github.com/signalsfoundry/ce-endpoints/internal/logging"
	"github.com/signalsfoundry/ce-endpoints/internal/observability"
	"github.com/signalsfoundry/ce-endpoints/model"
	"go.opentelemetry.io/otel/attribute"
)

// SpeedSource is anything that can report the line rate of a port.
// Both KnowledgeBase and the sqlite Store implement it.
type SpeedSource interface {
	PortSpeed(ctx context.Context, device model.DeviceID, port model.PortNumber) (model.Bandwidth, error)
}

// Instrumented wraps a SpeedSource with tracing, lookup metrics and debug
// logging. It satisfies core.PortResolver.
type Instrumented struct {
	next    SpeedSource
	backend string
	metrics *observability.InventoryCollector
	log     logging.Logger
	now     func() time.Time
}

// NewInstrumented decorates next. backend labels the metrics ("memory",
// "sqlite"); metrics and log may be nil.
func NewInstrumented(next SpeedSource, backend string, metrics *observability.InventoryCollector, log logging.Logger) *Instrumented {
	if log == nil {
		log = logging.Noop()
	}
	return &Instrumented{
		next:    next,
		backend: backend,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// PortSpeed forwards to the wrapped source.
func (i *Instrumented) PortSpeed(ctx context.Context, device model.DeviceID, port model.PortNumber) (bw model.Bandwidth, err error) {
	cp := model.NewConnectPoint(device, port)
	ctx, span := observability.StartSpan(ctx, "inventory.PortSpeed", cp.String(),
		attribute.String("ce.inventory_backend", i.backend))
	start := i.now()
	defer func() {
		i.metrics.ObserveLookup(i.backend, lookupResult(err), i.now().Sub(start))
		observability.EndSpan(span, err)
	}()

	bw, err = i.next.PortSpeed(ctx, device, port)
	if err != nil {
		i.log.Debug(ctx, "port lookup failed",
			logging.Stringer("connect_point", cp),
			logging.String("backend", i.backend),
			logging.Err(err),
		)
		return 0, err
	}
	span.SetAttributes(attribute.Float64("ce.port_speed_bps", bw.Bps()))
	return bw, nil
}

func lookupResult(err error) string {
	switch {
	case err == nil:
		return observability.LookupOK
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrPortNotFound):
		return observability.LookupNotFound
	default:
		return observability.LookupError
	}
}
