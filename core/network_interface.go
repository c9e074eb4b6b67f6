package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/ce-endpoints/model"
)

var (
	// ErrConstruction reports a missing required reference or an otherwise
	// unusable argument passed to a constructor.
	ErrConstruction = errors.New("invalid construction")
	// ErrResolution reports that the port inventory could not resolve the
	// device/port behind a connect point.
	ErrResolution = errors.New("port resolution failed")
	// ErrRoleMapping reports an interface role with no LTP counterpart.
	ErrRoleMapping = errors.New("role has no LTP counterpart")
)

// Scope says whether an interface is a standing network resource (GLOBAL)
// or exists only for the lifetime of one service (SERVICE).
type Scope string

const (
	ScopeUnset   Scope = ""
	ScopeGlobal  Scope = "GLOBAL"
	ScopeService Scope = "SERVICE"
)

func (s Scope) valid() bool {
	return s == ScopeGlobal || s == ScopeService
}

// Type tags the interface variant. LTPs carry the same tag.
type Type string

const (
	TypeUNI  Type = "UNI"
	TypeINNI Type = "INNI"
	TypeENNI Type = "ENNI"
)

// PortResolver is the port inventory collaborator. It is called exactly
// once per interface, at construction.
type PortResolver interface {
	PortSpeed(ctx context.Context, device model.DeviceID, port model.PortNumber) (model.Bandwidth, error)
}

// NetworkInterface is a UNI, I-NNI or E-NNI. Only *UNI, *INNI and *ENNI
// are constructed by this package. A type declared elsewhere can still
// satisfy the interface by embedding one of them; NewLTP and the registry
// treat such wrappers as unknown variants and reject them.
//
// Implementations carry no locks. Callers that share an interface between
// goroutines must serialise writers themselves (see capacity.Ledger).
type NetworkInterface interface {
	CP() model.ConnectPoint
	ID() string
	CfgID() string
	Capacity() model.Bandwidth
	UsedCapacity() model.Bandwidth
	Scope() Scope
	Type() Type
	// RoleName returns the symbolic name of the variant role, or "" when
	// the interface has none (typical for service-scoped interfaces).
	RoleName() string

	SetID(id string)
	SetCfgID(cfgID string)
	SetCapacity(capacity model.Bandwidth)
	// SetUsedCapacity records bandwidth committed by services. It is the
	// orchestration layer's hook; nothing in this package calls it.
	SetUsedCapacity(used model.Bandwidth)

	String() string

	base() *niBase
}

// IsNil reports whether ni is nil, including a typed nil such as
// (*INNI)(nil) stored in the interface.
func IsNil(ni NetworkInterface) bool {
	switch v := ni.(type) {
	case nil:
		return true
	case *UNI:
		return v == nil
	case *INNI:
		return v == nil
	case *ENNI:
		return v == nil
	default:
		return false
	}
}

// niBase holds the state shared by every variant.
type niBase struct {
	cp           model.ConnectPoint
	id           string
	cfgID        string
	capacity     model.Bandwidth
	usedCapacity model.Bandwidth
	scope        Scope
	typ          Type
}

func newBase(ctx context.Context, resolver PortResolver, cp model.ConnectPoint, cfgID string, typ Type) (niBase, error) {
	if cp.IsZero() {
		return niBase{}, fmt.Errorf("%w: %s requires a connect point", ErrConstruction, typ)
	}
	if resolver == nil {
		return niBase{}, fmt.Errorf("%w: %s %s: nil port resolver", ErrConstruction, typ, cp)
	}

	speed, err := resolver.PortSpeed(ctx, cp.Device, cp.Port)
	if err != nil {
		return niBase{}, fmt.Errorf("%w: %s: %w", ErrResolution, cp, err)
	}

	id := interfaceID(cp)
	if cfgID == "" {
		cfgID = id
	}
	return niBase{
		cp:       cp,
		id:       id,
		cfgID:    cfgID,
		capacity: speed,
		typ:      typ,
		// scope is left unset; each variant constructor must choose one.
	}, nil
}

// interfaceID derives the display identifier shared by interfaces and LTPs.
func interfaceID(cp model.ConnectPoint) string {
	return cp.String()
}

func (b *niBase) base() *niBase { return b }

// CP returns the connect point the interface sits on.
func (b *niBase) CP() model.ConnectPoint { return b.cp }

// ID returns the interface identifier, "<deviceId>/<port>" unless overridden.
func (b *niBase) ID() string { return b.id }

// CfgID returns the configuration identifier.
func (b *niBase) CfgID() string { return b.cfgID }

// Capacity returns the line rate (or its override).
func (b *niBase) Capacity() model.Bandwidth { return b.capacity }

// UsedCapacity returns the bandwidth currently committed by services.
func (b *niBase) UsedCapacity() model.Bandwidth { return b.usedCapacity }

// Scope returns GLOBAL or SERVICE.
func (b *niBase) Scope() Scope { return b.scope }

// Type returns the variant tag.
func (b *niBase) Type() Type { return b.typ }

func (b *niBase) SetID(id string) { b.id = id }

func (b *niBase) SetCfgID(cfgID string) { b.cfgID = cfgID }

func (b *niBase) SetCapacity(capacity model.Bandwidth) { b.capacity = capacity }

func (b *niBase) SetUsedCapacity(used model.Bandwidth) { b.usedCapacity = used }

// describe renders the diagnostic form used by every variant's String.
func (b *niBase) describe(role string) string {
	if role == "" {
		role = "-"
	}
	return fmt.Sprintf("%s{id=%s, cfgId=%s, role=%s, scope=%s, capacity=%s, usedCapacity=%s}",
		b.typ, b.id, b.cfgID, role, b.scope, b.capacity, b.usedCapacity)
}

// finish applies the options common to all variants and checks that the
// variant picked a scope.
func (b *niBase) finish(o *options, defaultScope Scope) error {
	b.scope = defaultScope
	if o.scope != ScopeUnset {
		b.scope = o.scope
	}
	if !b.scope.valid() {
		return fmt.Errorf("%w: %s %s: invalid scope %q", ErrConstruction, b.typ, b.cp, b.scope)
	}
	return nil
}

// Equal reports whether a and b sit on the same connect point. Identifiers,
// capacity and variant do not take part.
func Equal(a, b NetworkInterface) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.CP() == b.CP()
}

// Key returns the value to use when deduplicating interfaces in maps.
func Key(ni NetworkInterface) model.ConnectPoint {
	return ni.CP()
}

// Option customises interface construction.
type Option func(*options)

type options struct {
	scope            Scope
	bandwidthProfile string
	ceVlanID         uint16
	sVlanID          uint16
	tpid             uint16
}

// WithScope overrides the variant's default scope.
func WithScope(s Scope) Option {
	return func(o *options) { o.scope = s }
}

// WithBandwidthProfile attaches a bandwidth profile name to a UNI. Other
// variants ignore it.
func WithBandwidthProfile(name string) Option {
	return func(o *options) { o.bandwidthProfile = name }
}

// WithCEVlanID sets the customer edge VLAN of a UNI. Other variants ignore it.
func WithCEVlanID(vlan uint16) Option {
	return func(o *options) { o.ceVlanID = vlan }
}

// WithSVlanID sets the service VLAN of an I-NNI or E-NNI. UNIs ignore it.
func WithSVlanID(vlan uint16) Option {
	return func(o *options) { o.sVlanID = vlan }
}

// WithTPID sets the S-tag TPID of an I-NNI or E-NNI. UNIs ignore it.
func WithTPID(tpid uint16) Option {
	return func(o *options) { o.tpid = tpid }
}

func collect(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
