// Package lifecycle drives DER controls through their event states.
//
// Each tick the Engine walks every program in "/derp" and, for each control
// in the program's control list:
//
//   - Scheduled, tick inside [start, start+duration): set Active, then
//     upsert a copy into the program's active control list by mRID.
//   - Active or Scheduled, tick at or past start+duration: set Completed.
//   - no longer Active for any reason: its active list entries are removed,
//     highest key first.
//
// When a control starts while another control of the same program is
// Active over an overlapping window, the one created later wins and the
// other becomes Superseded. Equal creation times are broken by the greater
// mRID.
//
// Ticks are idempotent: running the same tick twice changes nothing the
// second time. Transitions are reported to Observers after they are
// committed; MQTTEvents and InfluxEvents publish them to the bus and the
// time-series database.
package lifecycle
