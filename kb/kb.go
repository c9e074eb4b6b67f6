package kb

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/signalsfoundry/ce-endpoints/model"
)

var (
	ErrDeviceExists   = errors.New("device already exists")
	ErrDeviceNotFound = errors.New("device not found")
	ErrPortNotFound   = errors.New("port not found")
	ErrPortBadInput   = errors.New("invalid port")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventPortUpdated EventType = iota
	EventPortRemoved
)

// Event is emitted to subscribers when a port changes. Interfaces built
// from the old port keep their old capacity; subscribers decide whether to
// rebuild them.
type Event struct {
	Type EventType
	Port model.Port
}

// KnowledgeBase is an in-memory, thread-safe device/port inventory. It
// satisfies core.PortResolver.
type KnowledgeBase struct {
	mu sync.RWMutex

	devices map[model.DeviceID]*model.Device
	ports   map[model.ConnectPoint]*model.Port

	subs    map[uint64]func(Event)
	nextSub uint64
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		devices: make(map[model.DeviceID]*model.Device),
		ports:   make(map[model.ConnectPoint]*model.Port),
		subs:    make(map[uint64]func(Event)),
	}
}

// AddDevice adds a new device. It returns an error if the ID already exists.
func (kb *KnowledgeBase) AddDevice(d *model.Device) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("nil or empty device")
	}

	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.devices[d.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDeviceExists, d.ID)
	}
	kb.devices[d.ID] = d
	return nil
}

// GetDevice returns the device with the given ID, or nil if not found.
func (kb *KnowledgeBase) GetDevice(id model.DeviceID) *model.Device {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.devices[id]
}

// ListDevices returns a snapshot of all devices ordered by ID.
func (kb *KnowledgeBase) ListDevices() []*model.Device {
	kb.mu.RLock()
	res := make([]*model.Device, 0, len(kb.devices))
	for _, d := range kb.devices {
		res = append(res, d)
	}
	kb.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// UpsertPort inserts or replaces a port. The owning device must exist.
func (kb *KnowledgeBase) UpsertPort(p model.Port) error {
	if p.Device == "" {
		return fmt.Errorf("%w: empty device ID", ErrPortBadInput)
	}
	if p.Speed < 0 {
		return fmt.Errorf("%w: negative speed on %s", ErrPortBadInput, p.ConnectPoint())
	}

	kb.mu.Lock()
	if _, ok := kb.devices[p.Device]; !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDeviceNotFound, p.Device)
	}
	stored := p
	kb.ports[p.ConnectPoint()] = &stored
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventPortUpdated, Port: p})
	return nil
}

// GetPort returns a copy of the port on cp.
func (kb *KnowledgeBase) GetPort(cp model.ConnectPoint) (model.Port, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.getPortLocked(cp.Device, cp.Port)
}

// ListPorts returns the ports of one device ordered by number.
func (kb *KnowledgeBase) ListPorts(device model.DeviceID) []model.Port {
	kb.mu.RLock()
	var res []model.Port
	for cp, p := range kb.ports {
		if cp.Device == device {
			res = append(res, *p)
		}
	}
	kb.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Number < res[j].Number })
	return res
}

// RemovePort deletes the port on cp.
func (kb *KnowledgeBase) RemovePort(cp model.ConnectPoint) error {
	kb.mu.Lock()
	p, ok := kb.ports[cp]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPortNotFound, cp)
	}
	delete(kb.ports, cp)
	removed := *p
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	notify(subs, Event{Type: EventPortRemoved, Port: removed})
	return nil
}

// PortSpeed implements core.PortResolver.
func (kb *KnowledgeBase) PortSpeed(ctx context.Context, device model.DeviceID, port model.PortNumber) (model.Bandwidth, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	kb.mu.RLock()
	defer kb.mu.RUnlock()

	p, err := kb.getPortLocked(device, port)
	if err != nil {
		return 0, err
	}
	return p.Speed, nil
}

// Subscribe registers fn for port events. Callbacks run on the mutating
// goroutine after the KB lock is released, in subscription order. The
// returned func removes fn and is safe to call more than once.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn
	kb.mu.Unlock()

	return func() {
		kb.mu.Lock()
		delete(kb.subs, id)
		kb.mu.Unlock()
	}
}

// NOTE: caller must hold kb.mu.
func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	ids := slices.Sorted(maps.Keys(kb.subs))
	out := make([]func(Event), len(ids))
	for i, id := range ids {
		out[i] = kb.subs[id]
	}
	return out
}

// NOTE: caller must hold kb.mu.
func (kb *KnowledgeBase) getPortLocked(device model.DeviceID, port model.PortNumber) (model.Port, error) {
	if _, ok := kb.devices[device]; !ok {
		return model.Port{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, device)
	}
	p, ok := kb.ports[model.NewConnectPoint(device, port)]
	if !ok {
		return model.Port{}, fmt.Errorf("%w: %s/%s", ErrPortNotFound, device, port)
	}
	return *p, nil
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
