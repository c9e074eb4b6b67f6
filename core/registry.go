package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/signalsfoundry/ce-endpoints/model"
)

var (
	ErrInterfaceExists   = errors.New("interface already exists")
	ErrInterfaceNotFound = errors.New("interface not found")
	ErrInterfaceBadInput = errors.New("invalid interface")
)

// Registry stores the GLOBAL-scoped interfaces of the network, keyed by
// connect point. Service-scoped interfaces live with their service and are
// never registered here.
//
// Registry is safe for concurrent use. The interfaces it hands out are
// shared pointers; callers MUST NOT mutate them without their own
// serialisation (capacity.Ledger does this for used capacity).
type Registry struct {
	mu sync.RWMutex

	interfaces map[model.ConnectPoint]NetworkInterface
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		interfaces: make(map[model.ConnectPoint]NetworkInterface),
	}
}

// Add registers ni. A second interface on the same connect point is
// rejected even if its id or cfgId differ.
func (r *Registry) Add(ni NetworkInterface) error {
	if IsNil(ni) {
		return fmt.Errorf("%w: nil interface", ErrInterfaceBadInput)
	}
	switch ni.(type) {
	case *UNI, *INNI, *ENNI:
	default:
		return fmt.Errorf("%w: unsupported interface variant %T", ErrInterfaceBadInput, ni)
	}
	if ni.Scope() != ScopeGlobal {
		return fmt.Errorf("%w: %s has scope %s, want %s", ErrInterfaceBadInput, ni.ID(), ni.Scope(), ScopeGlobal)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key(ni)
	if existing, ok := r.interfaces[key]; ok {
		return fmt.Errorf("%w: %s (registered as %q)", ErrInterfaceExists, key, existing.CfgID())
	}
	r.interfaces[key] = ni
	return nil
}

// Get returns the interface on cp, or nil if none is registered.
func (r *Registry) Get(cp model.ConnectPoint) NetworkInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.interfaces[cp]
}

// GetByCfgID scans for an interface by configuration id. It returns nil if
// none matches; cfgIds are not required to be unique, so the one with the
// lowest id wins.
func (r *Registry) GetByCfgID(cfgID string) NetworkInterface {
	matches := lo.Filter(r.List(), func(ni NetworkInterface, _ int) bool {
		return ni.CfgID() == cfgID
	})
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// List returns a snapshot of all interfaces ordered by id.
func (r *Registry) List() []NetworkInterface {
	r.mu.RLock()
	out := lo.Values(r.interfaces)
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ID() == out[j].ID() {
			return out[i].CP().String() < out[j].CP().String()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// ListByType returns the interfaces of one variant, ordered by id.
func (r *Registry) ListByType(t Type) []NetworkInterface {
	return lo.Filter(r.List(), func(ni NetworkInterface, _ int) bool {
		return ni.Type() == t
	})
}

// CountByType returns how many interfaces of each variant are registered.
// Every variant is present, with zero when none is registered.
func (r *Registry) CountByType() map[Type]int {
	counts := lo.CountValuesBy(r.List(), func(ni NetworkInterface) Type { return ni.Type() })
	for _, t := range []Type{TypeUNI, TypeINNI, TypeENNI} {
		if _, ok := counts[t]; !ok {
			counts[t] = 0
		}
	}
	return counts
}

// Remove deletes the interface on cp.
func (r *Registry) Remove(cp model.ConnectPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.interfaces[cp]; !ok {
		return fmt.Errorf("%w: %s", ErrInterfaceNotFound, cp)
	}
	delete(r.interfaces, cp)
	return nil
}

// Len returns the number of registered interfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.interfaces)
}

// GlobalLTPs builds one LTP per registered interface, using the interface
// cfgId as the LTP cfgId. LTPs are rebuilt on every call so they reflect the
// interfaces' current roles.
func (r *Registry) GlobalLTPs() ([]*LogicalTerminationPoint, error) {
	nis := r.List()
	out := make([]*LogicalTerminationPoint, 0, len(nis))
	for _, ni := range nis {
		ltp, err := NewLTP(ni.CfgID(), ni)
		if err != nil {
			return nil, err
		}
		out = append(out, ltp)
	}
	return out, nil
}
