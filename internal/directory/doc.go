// Package directory is the server's resource directory. It owns every
// store, resolves hrefs to resources and lists, and implements the
// operations that must keep several linked resources consistent: device
// creation, seeding from configuration, control scheduling and mirror
// metering.
//
//	dir := directory.New(hub, directory.Options{Clock: clock, Sink: sink})
//	if err := dir.Open(ctx); err != nil { ... }
//	if err := dir.Seed(cfg); err != nil { ... }
//	r, err := dir.Resolve("/edev_0_der", store.Query{Limit: 10})
package directory
