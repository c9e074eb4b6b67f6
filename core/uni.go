package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/ce-endpoints/model"
)

// UNIRole is the role of a UNI in a rooted-multipoint service.
type UNIRole string

const (
	UNIRoleNone UNIRole = ""
	UNIRoleRoot UNIRole = "Root"
	UNIRoleLeaf UNIRole = "Leaf"
)

// UNIRoles lists every declared UNI role.
var UNIRoles = []UNIRole{UNIRoleRoot, UNIRoleLeaf}

// UNI is a customer-facing service endpoint. UNIs default to SERVICE scope.
type UNI struct {
	niBase

	role             UNIRole
	bandwidthProfile string
	ceVlanID         uint16
}

// NewUNI resolves the port speed for cp and builds a UNI. An empty cfgID
// defaults to the derived id; UNIRoleNone leaves the role unset.
func NewUNI(ctx context.Context, resolver PortResolver, cp model.ConnectPoint, cfgID string, role UNIRole, opts ...Option) (*UNI, error) {
	if role != UNIRoleNone && !contains(UNIRoles, role) {
		return nil, fmt.Errorf("%w: unknown UNI role %q", ErrConstruction, role)
	}
	b, err := newBase(ctx, resolver, cp, cfgID, TypeUNI)
	if err != nil {
		return nil, err
	}
	o := collect(opts)
	uni := &UNI{
		niBase:           b,
		role:             role,
		bandwidthProfile: o.bandwidthProfile,
		ceVlanID:         o.ceVlanID,
	}
	if err := uni.finish(o, ScopeService); err != nil {
		return nil, err
	}
	return uni, nil
}

// Role returns the UNI role, UNIRoleNone when unset.
func (u *UNI) Role() UNIRole { return u.role }

// RoleName implements NetworkInterface.
func (u *UNI) RoleName() string { return string(u.role) }

// BandwidthProfile returns the attached bandwidth profile name, if any.
func (u *UNI) BandwidthProfile() string { return u.bandwidthProfile }

// CEVlanID returns the customer edge VLAN, 0 when untagged.
func (u *UNI) CEVlanID() uint16 { return u.ceVlanID }

func (u *UNI) String() string {
	return u.describe(string(u.role))
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
