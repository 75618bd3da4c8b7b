// Package persist writes directory store snapshots to durable backends.
//
// Every store mutation produces a full CBOR snapshot of that store. The Hub
// receives it as a store.Observer and hands it to each registered
// Persister in turn:
//
//	hub := persist.NewHub()
//	hub.Register(persist.NewSQLitePersister(db))
//	hub.Register(persist.NewMQTTNotifier(mqttClient))
//	edev := store.New[*resource.EndDevice]("edev", "/edev", hub)
//
// Persister failures do not fail the mutation. They are logged, counted in
// gridlink_persist_failures_total, and put the hub into degraded mode, which
// the health endpoint reports.
//
// On startup Hydrate restores each store from the first persister that has
// a snapshot for it; on shutdown Flush writes every store once more.
package persist
