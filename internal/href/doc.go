// Package href parses and builds the hierarchical addresses that identify
// every resource and list container in the directory.
//
// Addresses follow segment[_index][_segment[_index]]..., with "_" as the
// only separator and non-negative decimal indices. A trailing collection
// name addresses the whole collection; a trailing index addresses one
// element. The mirror family rooted at /mup is the single exception: its
// trailing segments are literal storage keys.
package href
