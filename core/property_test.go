package core

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/signalsfoundry/ce-endpoints/model"
)

// anyPort resolves every port to the same speed.
type anyPort model.Bandwidth

func (a anyPort) PortSpeed(context.Context, model.DeviceID, model.PortNumber) (model.Bandwidth, error) {
	return model.Bandwidth(a), nil
}

// TestInterfaceLaws checks the identity rules over generated connect points.
func TestInterfaceLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)
	ctx := context.Background()
	res := anyPort(model.Gbps(1))

	properties.Property("equal iff same connect point", prop.ForAll(
		func(devA, devB string, portA, portB uint64, cfgA, cfgB string) bool {
			cpA := model.NewConnectPoint(model.DeviceID(devA), model.PortNumber(portA))
			cpB := model.NewConnectPoint(model.DeviceID(devB), model.PortNumber(portB))

			a, err := NewUNI(ctx, res, cpA, cfgA, UNIRoleRoot)
			if err != nil {
				return false
			}
			b, err := NewENNI(ctx, res, cpB, cfgB, ENNIRoleHub)
			if err != nil {
				return false
			}
			same := cpA == cpB
			return Equal(a, b) == same && Equal(b, a) == same && (Key(a) == Key(b)) == same
		},
		gen.OneConstOf("deviceA", "deviceB", "of:0001"),
		gen.OneConstOf("deviceA", "deviceB", "of:0001"),
		gen.UInt64Range(0, 3),
		gen.UInt64Range(0, 3),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("id derivation is idempotent", prop.ForAll(
		func(dev string, port uint64) bool {
			cp := model.NewConnectPoint(model.DeviceID(dev), model.PortNumber(port))
			ni, err := NewINNI(ctx, res, cp, "", INNIRoleNone)
			if err != nil {
				return false
			}
			parsed, err := model.ParseConnectPoint(ni.ID())
			if err != nil || parsed != cp {
				return false
			}
			ltp, err := NewLTP("", ni)
			if err != nil {
				return false
			}
			return ni.ID() == interfaceID(cp) && ltp.ID() == ni.ID() && interfaceID(parsed) == ni.ID()
		},
		gen.Identifier(),
		gen.UInt64(),
	))

	properties.Property("cfgId defaults to id", prop.ForAll(
		func(dev string, port uint64, cfg string) bool {
			cp := model.NewConnectPoint(model.DeviceID(dev), model.PortNumber(port))
			ni, err := NewENNI(ctx, res, cp, cfg, ENNIRoleNone)
			if err != nil {
				return false
			}
			if cfg == "" {
				return ni.CfgID() == ni.ID()
			}
			return ni.CfgID() == cfg
		},
		gen.Identifier(),
		gen.UInt64(),
		gen.OneConstOf("", "cfg-1", "partner-x"),
	))

	properties.TestingRun(t)
}
