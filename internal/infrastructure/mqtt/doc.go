// Package mqtt provides the MQTT client GridLink Core uses to announce
// directory changes and control lifecycle events, and to receive control
// status commands from a utility head-end.
//
// Topic hierarchy:
//
//	gridlink/core/store/{store}/changed           change notice per store mutation
//	gridlink/core/derp/{p}/control/{mrid}/{event} control started/ended
//	gridlink/core/mup/{n}/reading                 mirror meter reading posted
//	gridlink/command/derp/{p}/derc/{c}/status     inbound status command
//	gridlink/system/status                        retained online/offline (LWT)
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
package mqtt
