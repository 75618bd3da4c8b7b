// Package telemetry records mirror meter readings outside the directory.
//
// Readings posted by clients are kept in the directory as resources, but
// their history is not: each value is also handed to a Sink. InfluxSink
// writes the time series, SQLiteSink keeps rows that survive without the
// TSDB, and Multi sends to both.
package telemetry
