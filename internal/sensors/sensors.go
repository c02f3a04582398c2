// Package sensors turns raw zone sensor readings into the metrics used by the automation rules.
package sensors

import (
	"log/slog"
	"strings"
	"time"
)

// Parameter names exposed by Metrics.
const (
	IndoorTemperature = "indoor_temp"
	IndoorHumidity    = "indoor_humidity"
	IndoorCO2         = "indoor_co2"
	SensorsOnline     = "sensors_online"
)

// Reading is a single sensor's measurement.
type Reading struct {
	SensorID    string    `json:"sensorId"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	CO2         float64   `json:"co2"`
	Timestamp   time.Time `json:"timestamp"`
}

// Metrics are the aggregated values of all sensors in a zone. If no sensors reported, Stale is set and none of
// the parameters can be resolved.
type Metrics struct {
	Sensors         map[string]Reading `json:"-"`
	MeanTemperature float64            `json:"meanTemperature"`
	MeanHumidity    float64            `json:"meanHumidity"`
	MeanCO2         float64            `json:"meanCO2"`
	Stale           bool               `json:"stale"`
}

var _ slog.LogValuer = Metrics{}

// Aggregate reduces a set of readings to their mean values. An empty set results in stale Metrics.
func Aggregate(readings []Reading) Metrics {
	if len(readings) == 0 {
		return Metrics{Stale: true}
	}
	m := Metrics{Sensors: make(map[string]Reading, len(readings))}
	for _, r := range readings {
		m.MeanTemperature += r.Temperature
		m.MeanHumidity += r.Humidity
		m.MeanCO2 += r.CO2
		m.Sensors[r.SensorID] = r
	}
	count := float64(len(readings))
	m.MeanTemperature /= count
	m.MeanHumidity /= count
	m.MeanCO2 /= count
	return m
}

// Lookup returns the value of the named parameter. Besides the aggregated values, each sensor's values can be
// addressed as "<sensorId>.temperature", "<sensorId>.humidity" and "<sensorId>.co2".
func (m Metrics) Lookup(name string) (float64, bool) {
	if m.Stale {
		return 0, false
	}
	switch name {
	case IndoorTemperature:
		return m.MeanTemperature, true
	case IndoorHumidity:
		return m.MeanHumidity, true
	case IndoorCO2:
		return m.MeanCO2, true
	case SensorsOnline:
		return float64(len(m.Sensors)), true
	}

	sensorID, field, ok := cutLast(name, ".")
	if !ok {
		return 0, false
	}
	r, ok := m.Sensors[sensorID]
	if !ok {
		return 0, false
	}
	switch field {
	case "temperature":
		return r.Temperature, true
	case "humidity":
		return r.Humidity, true
	case "co2":
		return r.CO2, true
	}
	return 0, false
}

// IsMetric reports whether name refers to a sensor-derived parameter.
func IsMetric(name string) bool {
	switch name {
	case IndoorTemperature, IndoorHumidity, IndoorCO2, SensorsOnline:
		return true
	}
	_, field, ok := cutLast(name, ".")
	return ok && (field == "temperature" || field == "humidity" || field == "co2")
}

func (m Metrics) LogValue() slog.Value {
	if m.Stale {
		return slog.GroupValue(slog.Bool("stale", true))
	}
	return slog.GroupValue(
		slog.Float64("temperature", m.MeanTemperature),
		slog.Float64("humidity", m.MeanHumidity),
		slog.Float64("co2", m.MeanCO2),
		slog.Int("sensors", len(m.Sensors)),
	)
}

func cutLast(s, sep string) (string, string, bool) {
	if i := strings.LastIndex(s, sep); i > 0 && i < len(s)-1 {
		return s[:i], s[i+len(sep):], true
	}
	return "", "", false
}
