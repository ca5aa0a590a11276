// Package simplevfs implements a versioned, URN-addressed virtual object
// store used to mirror artifacts (files, host metadata) collected from a
// remote endpoint.
//
// Every addressable object is identified by a hierarchical URN of the form
// aff4:/<client-id>/... and carries a set of schema-declared, typed
// attributes. Attribute writes are append-only: each flush creates a new
// timestamped version, and reads project the history at a chosen point in
// time. Persistence is delegated to a Store backend (in-memory or Postgres),
// file content to a BlobStore backend (memory, filesystem or S3), and
// background collection to a FlowRunner.
//
// Typical usage:
//
//	factory, err := simplevfs.New(
//		simplevfs.WithStore(memoryrepo.New()),
//		simplevfs.WithSchema(simplevfs.DefaultSchema()),
//		simplevfs.WithFlowRunner(runner),
//	)
//
//	obj, err := factory.Create(ctx, urn, simplevfs.KindClient, simplevfs.ModeReadWrite)
//	obj.SetString(simplevfs.AttrHostname, "host1")
//	err = obj.Close(ctx)
package simplevfs
