package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/ce-endpoints/model"
)

// INNIRole is the role of an interface between nodes of one provider.
type INNIRole string

const (
	INNIRoleNone       INNIRole = ""
	INNIRoleHub        INNIRole = "Hub"
	INNIRoleSpoke      INNIRole = "Spoke"
	INNIRoleRoot       INNIRole = "Root"
	INNIRoleLeaf       INNIRole = "Leaf"
	INNIRoleTrunk      INNIRole = "Trunk"
	INNIRoleWorking    INNIRole = "Working"
	INNIRoleProtection INNIRole = "Protection"
	INNIRoleProtected  INNIRole = "Protected"
	INNIRoleSymmetric  INNIRole = "Symmetric"
)

// INNIRoles lists every declared I-NNI role.
var INNIRoles = []INNIRole{
	INNIRoleHub, INNIRoleSpoke, INNIRoleRoot, INNIRoleLeaf, INNIRoleTrunk,
	INNIRoleWorking, INNIRoleProtection, INNIRoleProtected, INNIRoleSymmetric,
}

// INNI is an internal network-to-network interface. I-NNIs default to
// GLOBAL scope.
type INNI struct {
	niBase

	role    INNIRole
	sVlanID uint16
	tpid    uint16
}

// NewINNI resolves the port speed for cp and builds an I-NNI.
func NewINNI(ctx context.Context, resolver PortResolver, cp model.ConnectPoint, cfgID string, role INNIRole, opts ...Option) (*INNI, error) {
	if role != INNIRoleNone && !contains(INNIRoles, role) {
		return nil, fmt.Errorf("%w: unknown INNI role %q", ErrConstruction, role)
	}
	b, err := newBase(ctx, resolver, cp, cfgID, TypeINNI)
	if err != nil {
		return nil, err
	}
	o := collect(opts)
	inni := &INNI{
		niBase:  b,
		role:    role,
		sVlanID: o.sVlanID,
		tpid:    o.tpid,
	}
	if err := inni.finish(o, ScopeGlobal); err != nil {
		return nil, err
	}
	return inni, nil
}

// Role returns the I-NNI role, INNIRoleNone when unset.
func (i *INNI) Role() INNIRole { return i.role }

// RoleName implements NetworkInterface.
func (i *INNI) RoleName() string { return string(i.role) }

// SVlanID returns the service VLAN, 0 when unset.
func (i *INNI) SVlanID() uint16 { return i.sVlanID }

// TPID returns the S-tag TPID, 0 when unset.
func (i *INNI) TPID() uint16 { return i.tpid }

func (i *INNI) String() string {
	return i.describe(string(i.role))
}
