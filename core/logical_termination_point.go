package core

import (
	"fmt"

	"github.com/signalsfoundry/ce-endpoints/model"
)

// LTPRole is the role an LTP plays inside a service.
type LTPRole string

const (
	LTPRoleNone       LTPRole = ""
	LTPRoleWorking    LTPRole = "Working"
	LTPRoleProtection LTPRole = "Protection"
	LTPRoleProtected  LTPRole = "Protected"
	LTPRoleSymmetric  LTPRole = "Symmetric"
	LTPRoleHub        LTPRole = "Hub"
	LTPRoleSpoke      LTPRole = "Spoke"
	LTPRoleLeaf       LTPRole = "Leaf"
	// LTPRoleTrunk is transitional; only I-NNI trunks map to it.
	LTPRoleTrunk LTPRole = "Trunk"
	LTPRoleRoot  LTPRole = "Root"
)

var uniRoleToLTP = map[UNIRole]LTPRole{
	UNIRoleRoot: LTPRoleRoot,
	UNIRoleLeaf: LTPRoleLeaf,
}

var inniRoleToLTP = map[INNIRole]LTPRole{
	INNIRoleHub:        LTPRoleHub,
	INNIRoleSpoke:      LTPRoleSpoke,
	INNIRoleRoot:       LTPRoleRoot,
	INNIRoleLeaf:       LTPRoleLeaf,
	INNIRoleTrunk:      LTPRoleTrunk,
	INNIRoleWorking:    LTPRoleWorking,
	INNIRoleProtection: LTPRoleProtection,
	INNIRoleProtected:  LTPRoleProtected,
	INNIRoleSymmetric:  LTPRoleSymmetric,
}

var enniRoleToLTP = map[ENNIRole]LTPRole{
	ENNIRoleHub:        LTPRoleHub,
	ENNIRoleSpoke:      LTPRoleSpoke,
	ENNIRoleRoot:       LTPRoleRoot,
	ENNIRoleLeaf:       LTPRoleLeaf,
	ENNIRoleWorking:    LTPRoleWorking,
	ENNIRoleProtection: LTPRoleProtection,
	ENNIRoleProtected:  LTPRoleProtected,
	ENNIRoleSymmetric:  LTPRoleSymmetric,
}

// ValidateRoleTables checks that every declared variant role maps to an LTP
// role. The daemon calls it once at startup.
func ValidateRoleTables() error {
	if err := validateTable(TypeUNI, UNIRoles, uniRoleToLTP); err != nil {
		return err
	}
	if err := validateTable(TypeINNI, INNIRoles, inniRoleToLTP); err != nil {
		return err
	}
	return validateTable(TypeENNI, ENNIRoles, enniRoleToLTP)
}

func validateTable[R ~string](typ Type, declared []R, table map[R]LTPRole) error {
	for _, r := range declared {
		if _, err := mapRole(typ, r, table); err != nil {
			return err
		}
	}
	return nil
}

// mapRole maps a variant role into the LTP domain. The empty role maps to
// LTPRoleNone; anything missing from the table is an error.
func mapRole[R ~string](typ Type, role R, table map[R]LTPRole) (LTPRole, error) {
	if role == "" {
		return LTPRoleNone, nil
	}
	ltpRole, ok := table[role]
	if !ok || ltpRole == LTPRoleNone {
		return LTPRoleNone, fmt.Errorf("%w: %s role %q", ErrRoleMapping, typ, string(role))
	}
	return ltpRole, nil
}

// LogicalTerminationPoint is a typed, roled reference to a NetworkInterface
// used when assembling a service's endpoint set.
//
// Type, role and identifiers are captured at construction and never
// re-derived; rebuild the LTP after changing the interface's role. Scope is
// the exception and always reads through to the interface.
type LogicalTerminationPoint struct {
	id    string
	cfgID string
	typ   Type
	role  LTPRole
	ni    NetworkInterface
}

// NewLTP wraps ni. An empty cfgID defaults to the derived id.
func NewLTP(cfgID string, ni NetworkInterface) (*LogicalTerminationPoint, error) {
	if IsNil(ni) {
		return nil, fmt.Errorf("%w: LTP requires a network interface", ErrConstruction)
	}

	var (
		typ  Type
		role LTPRole
		err  error
	)
	switch v := ni.(type) {
	case *UNI:
		typ = TypeUNI
		role, err = mapRole(typ, v.Role(), uniRoleToLTP)
	case *INNI:
		typ = TypeINNI
		role, err = mapRole(typ, v.Role(), inniRoleToLTP)
	case *ENNI:
		typ = TypeENNI
		role, err = mapRole(typ, v.Role(), enniRoleToLTP)
	default:
		return nil, fmt.Errorf("%w: unsupported interface variant %T", ErrConstruction, ni)
	}
	if err != nil {
		return nil, fmt.Errorf("LTP %s: %w", ni.CP(), err)
	}

	id := interfaceID(ni.CP())
	if cfgID == "" {
		cfgID = id
	}
	return &LogicalTerminationPoint{
		id:    id,
		cfgID: cfgID,
		typ:   typ,
		role:  role,
		ni:    ni,
	}, nil
}

// CP returns the connect point of the referenced interface.
func (l *LogicalTerminationPoint) CP() model.ConnectPoint { return l.ni.CP() }

// ID returns "<deviceId>/<port>" of the referenced interface.
func (l *LogicalTerminationPoint) ID() string { return l.id }

// CfgID returns the configuration identifier.
func (l *LogicalTerminationPoint) CfgID() string { return l.cfgID }

// Role returns the LTP role, LTPRoleNone for service-specific LTPs.
func (l *LogicalTerminationPoint) Role() LTPRole { return l.role }

// Type returns the variant of the referenced interface.
func (l *LogicalTerminationPoint) Type() Type { return l.typ }

// NI returns the referenced interface.
func (l *LogicalTerminationPoint) NI() NetworkInterface { return l.ni }

// Scope returns the scope of the referenced interface.
func (l *LogicalTerminationPoint) Scope() Scope { return l.ni.Scope() }

func (l *LogicalTerminationPoint) String() string {
	role := string(l.role)
	if role == "" {
		role = "-"
	}
	return fmt.Sprintf("LTP{id=%s, cfgId=%s, type=%s, role=%s, ni=%s}", l.id, l.cfgID, l.typ, role, l.ni)
}
