// Package oplog provides a typed, tailing iterator over a MongoDB replica set
// oplog (local.oplog.rs).
//
// Given a connected *mongo.Client, the package reads the oplog as an infinite
// sequence of statically typed Operation values:
//
//	client, err := oplog.Connect(ctx, oplog.ConnectionOptions{}, logger)
//	if err != nil {
//		return err
//	}
//	tail, err := oplog.New(ctx, client)
//	if err != nil {
//		return err
//	}
//	defer tail.Close(ctx)
//	for {
//		op, err := tail.Next(ctx)
//		if err != nil {
//			return err
//		}
//		// type switch over op
//	}
//
// Sessions may be filtered and resumed via the builder:
//
//	tail, err := oplog.NewBuilder(client).
//		WithFilter(oplog.OpFilter("i")).
//		ResumeAfter(lastSeen).
//		Build(ctx)
//
// applyOps entries (atomic batches) are expanded in place: the iterator yields
// their constituent operations one by one and never an ApplyOps value itself.
// Undecodable entries surface as errors matching ErrDecode and are skipped;
// connection failures surface as errors matching ErrConnection and end the
// session, which the caller may rebuild starting from LastTimestamp.
package oplog
