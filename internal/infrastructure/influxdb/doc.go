// Package influxdb provides InfluxDB connectivity for GridLink Core.
//
// It wraps the official influxdb-client-go v2 library and records two
// time series:
//   - mirror_readings: values devices post to their mirror meter readings
//   - der_control_events: DER control started/ended transitions
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without telemetry
//	}
//	defer client.Close()
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; asynchronous write errors are delivered to SetOnError.
// Points written after Close are discarded and counted by Dropped.
package influxdb
