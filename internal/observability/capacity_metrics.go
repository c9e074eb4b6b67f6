package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Admission results recorded by CapacityCollector.
const (
	AdmissionAdmitted = "admitted"
	AdmissionRejected = "rejected"
)

// CapacityCollector exposes interface capacity accounting metrics.
type CapacityCollector struct {
	gatherer prometheus.Gatherer

	Capacity     *prometheus.GaugeVec
	UsedCapacity *prometheus.GaugeVec
	Admissions   *prometheus.CounterVec
	Releases     prometheus.Counter
	Interfaces   *prometheus.GaugeVec
}

// NewCapacityCollector registers capacity metrics against the provided registerer.
func NewCapacityCollector(reg prometheus.Registerer) (*CapacityCollector, error) {
	reg, gatherer := defaults(reg)

	capacity, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interface_capacity_bps",
		Help: "Capacity of a tracked interface in bits per second.",
	}, []string{"connect_point", "type"}), "interface_capacity_bps")
	if err != nil {
		return nil, err
	}

	used, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interface_used_capacity_bps",
		Help: "Bandwidth committed on a tracked interface in bits per second.",
	}, []string{"connect_point", "type"}), "interface_used_capacity_bps")
	if err != nil {
		return nil, err
	}

	admissions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capacity_admissions_total",
		Help: "Bandwidth admission attempts, labeled by result.",
	}, []string{"result"}), "capacity_admissions_total")
	if err != nil {
		return nil, err
	}

	releases, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "capacity_releases_total",
		Help: "Bandwidth reservations released.",
	}), "capacity_releases_total")
	if err != nil {
		return nil, err
	}

	interfaces, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "registry_interfaces",
		Help: "Number of registered GLOBAL interfaces, labeled by type.",
	}, []string{"type"}), "registry_interfaces")
	if err != nil {
		return nil, err
	}

	return &CapacityCollector{
		gatherer:     gatherer,
		Capacity:     capacity,
		UsedCapacity: used,
		Admissions:   admissions,
		Releases:     releases,
		Interfaces:   interfaces,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *CapacityCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetInterfaceCapacity publishes the capacity and used capacity of one
// interface, in bits per second.
func (c *CapacityCollector) SetInterfaceCapacity(connectPoint, typ string, capacity, used float64) {
	if c == nil {
		return
	}
	if c.Capacity != nil {
		c.Capacity.WithLabelValues(connectPoint, typ).Set(capacity)
	}
	if c.UsedCapacity != nil {
		c.UsedCapacity.WithLabelValues(connectPoint, typ).Set(used)
	}
}

// ForgetInterface drops the series of an interface that is no longer tracked.
func (c *CapacityCollector) ForgetInterface(connectPoint, typ string) {
	if c == nil {
		return
	}
	if c.Capacity != nil {
		c.Capacity.DeleteLabelValues(connectPoint, typ)
	}
	if c.UsedCapacity != nil {
		c.UsedCapacity.DeleteLabelValues(connectPoint, typ)
	}
}

// IncAdmission counts one admission attempt.
func (c *CapacityCollector) IncAdmission(result string) {
	if c == nil || c.Admissions == nil {
		return
	}
	c.Admissions.WithLabelValues(result).Inc()
}

// IncReleases counts one release.
func (c *CapacityCollector) IncReleases() {
	if c == nil || c.Releases == nil {
		return
	}
	c.Releases.Inc()
}

// SetInterfaceCounts publishes the registry size per interface type.
func (c *CapacityCollector) SetInterfaceCounts(counts map[string]int) {
	if c == nil || c.Interfaces == nil {
		return
	}
	for typ, n := range counts {
		c.Interfaces.WithLabelValues(typ).Set(float64(n))
	}
}
