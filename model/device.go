package model

// Device is a network element known to the port inventory.
type Device struct {
	ID           DeviceID
	Name         string
	Manufacturer string // free-form, e.g. "Ciena", "Corsa"
}

// Port is a physical port on a Device. Speed is the line rate reported by
// the device; it is what interface capacity is initialised from.
type Port struct {
	Device  DeviceID
	Number  PortNumber
	Name    string
	Speed   Bandwidth
	Enabled bool
}

// ConnectPoint returns the attachment point of the port.
func (p Port) ConnectPoint() ConnectPoint {
	return ConnectPoint{Device: p.Device, Port: p.Number}
}
