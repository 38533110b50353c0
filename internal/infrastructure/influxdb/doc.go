// Package influxdb is an optional InfluxDB v2 sink for sensor readings.
//
// When the influxdb section is enabled, every published reading is also
// written as a "climate" point:
//
//	climate,device=greenhouse temperature_c=23.5,humidity_pct=61 <sampled_at>
//
// Writes go through the client's batched, non-blocking write API.
// Asynchronous write failures are logged; they never affect publishing.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Node.Device)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	publisher.AddRecorder(client)
package influxdb
