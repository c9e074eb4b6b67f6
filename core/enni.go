package core

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/ce-endpoints/model"
)

// ENNIRole is the role of an interface towards another provider.
type ENNIRole string

const (
	ENNIRoleNone       ENNIRole = ""
	ENNIRoleHub        ENNIRole = "Hub"
	ENNIRoleSpoke      ENNIRole = "Spoke"
	ENNIRoleRoot       ENNIRole = "Root"
	ENNIRoleLeaf       ENNIRole = "Leaf"
	ENNIRoleWorking    ENNIRole = "Working"
	ENNIRoleProtection ENNIRole = "Protection"
	ENNIRoleProtected  ENNIRole = "Protected"
	ENNIRoleSymmetric  ENNIRole = "Symmetric"
)

// ENNIRoles lists every declared E-NNI role.
var ENNIRoles = []ENNIRole{
	ENNIRoleHub, ENNIRoleSpoke, ENNIRoleRoot, ENNIRoleLeaf,
	ENNIRoleWorking, ENNIRoleProtection, ENNIRoleProtected, ENNIRoleSymmetric,
}

// ENNI is an external network-to-network interface. E-NNIs default to
// GLOBAL scope.
type ENNI struct {
	niBase

	role    ENNIRole
	sVlanID uint16
	tpid    uint16
}

// NewENNI resolves the port speed for cp and builds an E-NNI.
func NewENNI(ctx context.Context, resolver PortResolver, cp model.ConnectPoint, cfgID string, role ENNIRole, opts ...Option) (*ENNI, error) {
	if role != ENNIRoleNone && !contains(ENNIRoles, role) {
		return nil, fmt.Errorf("%w: unknown ENNI role %q", ErrConstruction, role)
	}
	b, err := newBase(ctx, resolver, cp, cfgID, TypeENNI)
	if err != nil {
		return nil, err
	}
	o := collect(opts)
	enni := &ENNI{
		niBase:  b,
		role:    role,
		sVlanID: o.sVlanID,
		tpid:    o.tpid,
	}
	if err := enni.finish(o, ScopeGlobal); err != nil {
		return nil, err
	}
	return enni, nil
}

// Role returns the E-NNI role, ENNIRoleNone when unset.
func (e *ENNI) Role() ENNIRole { return e.role }

// RoleName implements NetworkInterface.
func (e *ENNI) RoleName() string { return string(e.role) }

// SVlanID returns the service VLAN, 0 when unset.
func (e *ENNI) SVlanID() uint16 { return e.sVlanID }

// TPID returns the S-tag TPID, 0 when unset.
func (e *ENNI) TPID() uint16 { return e.tpid }

func (e *ENNI) String() string {
	return e.describe(string(e.role))
}
