package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/ce-endpoints/model"
)

const declarations = `
interfaces:
  - type: uni
    connect_point: deviceA/1
    cfg_id: customer-a
    role: Root
    bandwidth_profile: gold
    ce_vlan_id: 100
  - type: I-NNI
    connect_point: deviceA/2
    role: Trunk
    s_vlan_id: 200
    tpid: 0x88a8
    capacity_mbps: 4000
  - type: enni
    connect_point: deviceB/1
    role: Hub
    scope: service
`

func loaderResolver() *fakeResolver {
	res := newResolver()
	res.speeds[model.NewConnectPoint("deviceB", 1)] = model.Gbps(1)
	return res
}

func TestLoadInterfaces(t *testing.T) {
	reg := NewRegistry()
	set, err := LoadInterfaces(context.Background(), reg, loaderResolver(), strings.NewReader(declarations))
	if err != nil {
		t.Fatalf("LoadInterfaces error: %v", err)
	}

	if len(set.GlobalIDs) != 1 || set.GlobalIDs[0] != "deviceA/2" {
		t.Fatalf("GlobalIDs = %v, want [deviceA/2]", set.GlobalIDs)
	}
	if len(set.Service) != 2 {
		t.Fatalf("service interfaces = %d, want 2", len(set.Service))
	}

	uni, ok := set.Service[0].(*UNI)
	if !ok {
		t.Fatalf("first service interface is %T, want *UNI", set.Service[0])
	}
	if uni.CfgID() != "customer-a" || uni.BandwidthProfile() != "gold" || uni.CEVlanID() != 100 {
		t.Fatalf("UNI attributes = %s", uni)
	}
	if set.Service[1].Type() != TypeENNI || set.Service[1].Scope() != ScopeService {
		t.Fatalf("second service interface = %s", set.Service[1])
	}

	inni, ok := reg.Get(cpA2).(*INNI)
	if !ok {
		t.Fatalf("registered interface is %T, want *INNI", reg.Get(cpA2))
	}
	if inni.Capacity() != model.Mbps(4000) {
		t.Fatalf("capacity override = %v, want 4000 Mbps", inni.Capacity())
	}
	if inni.TPID() != 0x88a8 || inni.SVlanID() != 200 {
		t.Fatalf("tag hints = %#x/%d", inni.TPID(), inni.SVlanID())
	}
}

func TestLoadInterfacesErrors(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		yaml string
		want error
	}{
		"unknown type": {"interfaces:\n  - type: vnni\n    connect_point: deviceA/1\n", ErrConstruction},
		"bad cp":       {"interfaces:\n  - type: uni\n    connect_point: deviceA\n", ErrConstruction},
		"bad scope":    {"interfaces:\n  - type: uni\n    connect_point: deviceA/1\n    scope: planet\n", ErrConstruction},
		"bad role":     {"interfaces:\n  - type: enni\n    connect_point: deviceA/1\n    role: Trunk\n", ErrConstruction},
		"unknown port": {"interfaces:\n  - type: inni\n    connect_point: deviceA/9\n", ErrResolution},
		"duplicate cp": {"interfaces:\n  - type: inni\n    connect_point: deviceA/1\n  - type: enni\n    connect_point: deviceA/1\n", ErrInterfaceExists},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadInterfaces(ctx, NewRegistry(), loaderResolver(), strings.NewReader(tc.yaml))
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := LoadInterfaces(ctx, nil, loaderResolver(), strings.NewReader("")); err == nil {
		t.Fatalf("expected error for nil registry")
	}
	if _, err := LoadInterfaces(ctx, NewRegistry(), loaderResolver(), strings.NewReader("interfaces: {")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadInterfacesIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	cases := map[string]string{
		"late build failure": "interfaces:\n  - type: inni\n    connect_point: deviceA/1\n  - type: enni\n    connect_point: deviceA/9\n",
		"late duplicate":     "interfaces:\n  - type: inni\n    connect_point: deviceA/1\n  - type: enni\n    connect_point: deviceA/2\n  - type: enni\n    connect_point: deviceA/1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			reg := NewRegistry()
			if _, err := LoadInterfaces(ctx, reg, loaderResolver(), strings.NewReader(doc)); err == nil {
				t.Fatalf("expected LoadInterfaces to fail")
			}
			if reg.Len() != 0 {
				t.Fatalf("registry holds %d interfaces after failed load, want 0", reg.Len())
			}
		})
	}

	reg := NewRegistry()
	existing, _ := NewINNI(ctx, loaderResolver(), cpA2, "pre", INNIRoleHub)
	if err := reg.Add(existing); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	doc := "interfaces:\n  - type: inni\n    connect_point: deviceA/1\n  - type: enni\n    connect_point: deviceA/2\n"
	if _, err := LoadInterfaces(ctx, reg, loaderResolver(), strings.NewReader(doc)); !errors.Is(err, ErrInterfaceExists) {
		t.Fatalf("error = %v, want ErrInterfaceExists", err)
	}
	if reg.Len() != 1 || reg.Get(cpA2) != existing {
		t.Fatalf("pre-existing registration disturbed: %v", reg.List())
	}
}

func TestLoadInterfacesEmpty(t *testing.T) {
	set, err := LoadInterfaces(context.Background(), NewRegistry(), loaderResolver(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadInterfaces error: %v", err)
	}
	if len(set.GlobalIDs) != 0 || len(set.Service) != 0 {
		t.Fatalf("empty input produced %+v", set)
	}
}
