package telemetry

import (
	"math"
	"strconv"
	"time"
)

// Reading is one sensor sample. It is produced once per publish period
// and never modified afterwards.
type Reading struct {
	Temperature float64 // °C
	Humidity    float64 // % relative humidity
	SampledAt   time.Time
}

// Valid reports whether both values are real numbers.
// Invalid readings are still published.
func (r Reading) Valid() bool {
	return !math.IsNaN(r.Temperature) && !math.IsNaN(r.Humidity) &&
		!math.IsInf(r.Temperature, 0) && !math.IsInf(r.Humidity, 0)
}

// FormatTemperature renders a temperature with one decimal place ("23.5").
func FormatTemperature(v float64) string {
	return formatFixed(v, 1)
}

// FormatHumidity renders a humidity with no decimal places ("61").
func FormatHumidity(v float64) string {
	return formatFixed(v, 0)
}

// formatFixed spells non-finite values as C's printf does: "nan", "inf"
// and "-inf".
func formatFixed(v float64, prec int) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
