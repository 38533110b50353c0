package influxdb

import (
	"context"
	"math"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-node/internal/telemetry"
)

// climateMeasurement is the measurement name for sensor readings.
const climateMeasurement = "climate"

// RecordReading queues r as one "climate" point tagged with the device.
//
// Line protocol cannot carry NaN, so a failed value is left out of the
// point, and a reading with no usable value is skipped. It satisfies
// telemetry.Recorder.
func (c *Client) RecordReading(_ context.Context, r telemetry.Reading) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	point := climatePoint(c.device, r)
	if point == nil {
		return nil
	}
	c.writer.WritePoint(point)
	return nil
}

func climatePoint(device string, r telemetry.Reading) *write.Point {
	fields := make(map[string]interface{}, 2)
	if usable(r.Temperature) {
		fields["temperature_c"] = r.Temperature
	}
	if usable(r.Humidity) {
		fields["humidity_pct"] = r.Humidity
	}
	if len(fields) == 0 {
		return nil
	}

	return write.NewPoint(climateMeasurement,
		map[string]string{"device": device},
		fields,
		r.SampledAt,
	)
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
