package daikin

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exports the last polled values of every unit. It never
// talks to the adapters itself.
type MetricsCollector struct {
	plugin *Plugin

	up          *prometheus.GaugeVec
	power       *prometheus.GaugeVec
	mode        *prometheus.GaugeVec
	setpoint    *prometheus.GaugeVec
	insideTemp  *prometheus.GaugeVec
	outsideTemp *prometheus.GaugeVec
	zonePower   *prometheus.GaugeVec
	zoneTemp    *prometheus.GaugeVec
	lastSuccess *prometheus.GaugeVec
}

func NewMetricsCollector(p *Plugin) *MetricsCollector {
	labels := []string{"unit_id", "unit_name"}
	zoneLabels := []string{"unit_id", "unit_name", "zone_id", "zone_name"}
	return &MetricsCollector{
		plugin: p,
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_up",
			Help: "Whether the last poll of the unit succeeded (1=ok, 0=error)",
		}, []string{"host"}),
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_power",
			Help: "Unit power state (1=on, 0=off)",
		}, labels),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_hvac_mode",
			Help: "HVAC mode reported by the unit (1=active)",
		}, []string{"unit_id", "unit_name", "mode"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_setpoint_celsius",
			Help: "Unit target temperature (celsius)",
		}, labels),
		insideTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_inside_temperature_celsius",
			Help: "Reported inside temperature (celsius)",
		}, labels),
		outsideTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_outside_temperature_celsius",
			Help: "Reported outside temperature (celsius)",
		}, labels),
		zonePower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_zone_on",
			Help: "Zone damper state (1=open, 0=closed)",
		}, zoneLabels),
		zoneTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_zone_setpoint_celsius",
			Help: "Zone temperature setpoint for the current mode (celsius)",
		}, zoneLabels),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gohome_daikin_last_success_timestamp_seconds",
			Help: "Unix time of the last successful poll",
		}, []string{"host"}),
	}
}

func (c *MetricsCollector) vecs() []*prometheus.GaugeVec {
	return []*prometheus.GaugeVec{
		c.up, c.power, c.mode, c.setpoint, c.insideTemp, c.outsideTemp,
		c.zonePower, c.zoneTemp, c.lastSuccess,
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, v := range c.vecs() {
		v.Describe(ch)
	}
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, v := range c.vecs() {
		v.Reset()
	}

	for _, u := range c.plugin.units {
		c.up.WithLabelValues(u.cfg.Host).Set(boolGauge(u.coordinator.LastUpdateSuccess()))
		if ts := u.coordinator.LastSuccess(); !ts.IsZero() {
			c.lastSuccess.WithLabelValues(u.cfg.Host).Set(float64(ts.Unix()))
		}

		dev := u.Device()
		if dev == nil {
			continue
		}
		id, name := dev.MAC(), u.Name()
		c.power.WithLabelValues(id, name).Set(boolGauge(dev.IsOn()))
		c.mode.WithLabelValues(id, name, string(dev.HVACMode())).Set(1)
		if v, ok := dev.TargetTemperature(); ok {
			c.setpoint.WithLabelValues(id, name).Set(v)
		}
		if v, ok := dev.InsideTemperature(); ok {
			c.insideTemp.WithLabelValues(id, name).Set(v)
		}
		if v, ok := dev.OutsideTemperature(); ok {
			c.outsideTemp.WithLabelValues(id, name).Set(v)
		}
		for i, zone := range dev.Zones() {
			zid := strconv.Itoa(i)
			c.zonePower.WithLabelValues(id, name, zid, zone.Name).Set(boolGauge(zone.On))
			if hasTemperatureControl(zone) {
				c.zoneTemp.WithLabelValues(id, name, zid, zone.Name).Set(zone.Temperature)
			}
		}
	}

	for _, v := range c.vecs() {
		v.Collect(ch)
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
