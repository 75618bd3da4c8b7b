// Package resource defines the resource types served by the directory.
//
// Every type implements Resource and reports a Kind. The set of kinds is
// closed: New builds a zero value from the static constructor table, which
// is how snapshots are decoded without runtime type lookup.
//
// JSON field names follow the wire names of the resource model, so the
// same struct tags drive the HTTP encoding and the CBOR snapshot codec.
package resource
