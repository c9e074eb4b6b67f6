package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/signalsfoundry/ce-endpoints/model"
	"gopkg.in/yaml.v3"
)

// InterfaceSet summarises what LoadInterfaces built.
type InterfaceSet struct {
	// GlobalIDs are the ids of interfaces added to the registry.
	GlobalIDs []string
	// Service holds service-scoped interfaces; they are not registered and
	// belong to whichever service assembly asked for them.
	Service []NetworkInterface
}

// InterfaceDecl is the YAML shape of one declared interface.
type InterfaceDecl struct {
	Type             string  `yaml:"type"`          // uni | inni | enni
	ConnectPoint     string  `yaml:"connect_point"` // "<deviceId>/<port>"
	CfgID            string  `yaml:"cfg_id,omitempty"`
	Role             string  `yaml:"role,omitempty"`
	Scope            string  `yaml:"scope,omitempty"`         // GLOBAL | SERVICE; variant default when empty
	CapacityMbps     float64 `yaml:"capacity_mbps,omitempty"` // overrides the resolved line rate
	BandwidthProfile string  `yaml:"bandwidth_profile,omitempty"`
	CEVlanID         uint16  `yaml:"ce_vlan_id,omitempty"`
	SVlanID          uint16  `yaml:"s_vlan_id,omitempty"`
	TPID             uint16  `yaml:"tpid,omitempty"`
}

type interfacesYAML struct {
	Interfaces []InterfaceDecl `yaml:"interfaces"`
}

// LoadInterfaces reads interface declarations from r, builds each one
// against resolver and registers the GLOBAL ones in reg. The load is all or
// nothing: every declaration is built before any is registered, and a
// failed registration removes the ones added before it.
func LoadInterfaces(ctx context.Context, reg *Registry, resolver PortResolver, r io.Reader) (*InterfaceSet, error) {
	if reg == nil {
		return nil, fmt.Errorf("LoadInterfaces: registry is nil")
	}

	var payload interfacesYAML
	if err := yaml.NewDecoder(r).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("LoadInterfaces: decode failed: %w", err)
	}

	built := make([]NetworkInterface, len(payload.Interfaces))
	for i, decl := range payload.Interfaces {
		ni, err := BuildInterface(ctx, resolver, decl)
		if err != nil {
			return nil, fmt.Errorf("LoadInterfaces: interface #%d: %w", i, err)
		}
		built[i] = ni
	}

	set := &InterfaceSet{
		GlobalIDs: make([]string, 0, len(built)),
	}
	var added []model.ConnectPoint
	for i, ni := range built {
		if ni.Scope() == ScopeService {
			set.Service = append(set.Service, ni)
			continue
		}
		if err := reg.Add(ni); err != nil {
			for _, cp := range added {
				_ = reg.Remove(cp)
			}
			return nil, fmt.Errorf("LoadInterfaces: interface #%d: %w", i, err)
		}
		added = append(added, Key(ni))
		set.GlobalIDs = append(set.GlobalIDs, ni.ID())
	}
	return set, nil
}

// BuildInterface constructs the variant named by decl.Type.
func BuildInterface(ctx context.Context, resolver PortResolver, decl InterfaceDecl) (NetworkInterface, error) {
	cp, err := model.ParseConnectPoint(decl.ConnectPoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConstruction, err)
	}
	scope, err := scopeFromString(decl.Scope)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithScope(scope),
		WithBandwidthProfile(decl.BandwidthProfile),
		WithCEVlanID(decl.CEVlanID),
		WithSVlanID(decl.SVlanID),
		WithTPID(decl.TPID),
	}

	var ni NetworkInterface
	switch strings.ToLower(strings.TrimSpace(decl.Type)) {
	case "uni":
		ni, err = NewUNI(ctx, resolver, cp, decl.CfgID, UNIRole(decl.Role), opts...)
	case "inni", "i-nni":
		ni, err = NewINNI(ctx, resolver, cp, decl.CfgID, INNIRole(decl.Role), opts...)
	case "enni", "e-nni":
		ni, err = NewENNI(ctx, resolver, cp, decl.CfgID, ENNIRole(decl.Role), opts...)
	default:
		return nil, fmt.Errorf("%w: unknown interface type %q", ErrConstruction, decl.Type)
	}
	if err != nil {
		return nil, err
	}

	if decl.CapacityMbps > 0 {
		ni.SetCapacity(model.Mbps(decl.CapacityMbps))
	}
	return ni, nil
}

func scopeFromString(s string) (Scope, error) {
	switch Scope(strings.ToUpper(strings.TrimSpace(s))) {
	case ScopeUnset:
		return ScopeUnset, nil
	case ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeService:
		return ScopeService, nil
	default:
		return ScopeUnset, fmt.Errorf("%w: unknown scope %q", ErrConstruction, s)
	}
}
