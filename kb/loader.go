package kb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/signalsfoundry/ce-endpoints/model"
	"gopkg.in/yaml.v3"
)

// InventoryYAML represents the YAML inventory file structure
type InventoryYAML struct {
	Version string                 `yaml:"version"`
	Devices map[string]*DeviceYAML `yaml:"devices"`
}

// DeviceYAML represents a device and its ports
type DeviceYAML struct {
	Name         string     `yaml:"name,omitempty"`
	Manufacturer string     `yaml:"manufacturer,omitempty"`
	Ports        []PortYAML `yaml:"ports"`
}

// PortYAML represents a device port. Speed may be given in Mbps or Gbps;
// Mbps wins when both are set.
type PortYAML struct {
	Number    uint64  `yaml:"number"`
	Name      string  `yaml:"name,omitempty"`
	SpeedMbps float64 `yaml:"speed_mbps,omitempty"`
	SpeedGbps float64 `yaml:"speed_gbps,omitempty"`
	Enabled   *bool   `yaml:"enabled,omitempty"` // defaults to true
}

// Inventory is a summary of what was loaded.
type Inventory struct {
	DeviceIDs []model.DeviceID
	Ports     int
}

// LoadInventoryFile opens path and loads it into kb.
func LoadInventoryFile(kb *KnowledgeBase, path string) (*Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory %q: %w", path, err)
	}
	defer f.Close()
	return LoadInventory(kb, f)
}

// LoadInventory reads a YAML inventory from r and populates kb.
func LoadInventory(kb *KnowledgeBase, r io.Reader) (*Inventory, error) {
	if kb == nil {
		return nil, fmt.Errorf("LoadInventory: kb is nil")
	}

	var payload InventoryYAML
	if err := yaml.NewDecoder(r).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("LoadInventory: decode failed: %w", err)
	}

	ids := make([]string, 0, len(payload.Devices))
	for id := range payload.Devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	inv := &Inventory{DeviceIDs: make([]model.DeviceID, 0, len(ids))}
	for _, id := range ids {
		dy := payload.Devices[id]
		if id == "" {
			return nil, fmt.Errorf("LoadInventory: device with empty id")
		}
		if dy == nil {
			dy = &DeviceYAML{}
		}

		dev := &model.Device{
			ID:           model.DeviceID(id),
			Name:         dy.Name,
			Manufacturer: dy.Manufacturer,
		}
		if err := kb.AddDevice(dev); err != nil {
			return nil, fmt.Errorf("LoadInventory: %w", err)
		}
		inv.DeviceIDs = append(inv.DeviceIDs, dev.ID)

		for _, py := range dy.Ports {
			if err := kb.UpsertPort(py.toPort(dev.ID)); err != nil {
				return nil, fmt.Errorf("LoadInventory: device %q port %d: %w", id, py.Number, err)
			}
			inv.Ports++
		}
	}
	return inv, nil
}

func (py PortYAML) toPort(device model.DeviceID) model.Port {
	speed := model.Gbps(py.SpeedGbps)
	if py.SpeedMbps > 0 {
		speed = model.Mbps(py.SpeedMbps)
	}
	enabled := true
	if py.Enabled != nil {
		enabled = *py.Enabled
	}
	return model.Port{
		Device:  device,
		Number:  model.PortNumber(py.Number),
		Name:    py.Name,
		Speed:   speed,
		Enabled: enabled,
	}
}
