package oplog

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operation is one entry of the replica set oplog in statically typed form.
//
// The set of implementations is closed: Noop, Insert, Update, Delete, Command
// and ApplyOps. Consumers dispatch with a type switch:
//
//	switch op := op.(type) {
//	case oplog.Insert:
//		// op.Namespace, op.Document
//	case oplog.Update:
//		// op.Query, op.Update
//	...
//	}
//
// Note that the tailing iterator never yields ApplyOps: atomic batches are
// expanded into their constituent operations before they reach the consumer.
// The variant exists for callers decoding documents directly via NewOperation.
type Operation interface {
	fmt.Stringer

	// Time returns the logical clock ("ts") of the oplog entry. Timestamps are
	// non-decreasing in the order entries are read from one tailing session.
	Time() primitive.Timestamp

	isOperation()
}

// Noop is a periodic no-op entry, also written on replica set initiation.
type Noop struct {
	Timestamp primitive.Timestamp
	ID        int64
	Message   bson.D
}

// Insert is an insert of a document into a namespace.
type Insert struct {
	Timestamp primitive.Timestamp
	ID        int64
	Namespace string
	Document  bson.D
}

// Update is an update of documents matching Query with the Update modifier.
type Update struct {
	Timestamp primitive.Timestamp
	ID        int64
	Namespace string
	Query     bson.D
	Update    bson.D
}

// Delete is a deletion of documents matching Query.
type Delete struct {
	Timestamp primitive.Timestamp
	ID        int64
	Namespace string
	Query     bson.D
}

// Command is a database command such as a collection creation or drop.
type Command struct {
	Timestamp primitive.Timestamp
	ID        int64
	Namespace string
	Command   bson.D
}

// ApplyOps is a batch of operations applied atomically. Operations holds the
// decoded constituents in application order; none of them is an ApplyOps.
type ApplyOps struct {
	Timestamp  primitive.Timestamp
	ID         int64
	Namespace  string
	Operations []Operation
}

func (o Noop) isOperation()     {}
func (o Insert) isOperation()   {}
func (o Update) isOperation()   {}
func (o Delete) isOperation()   {}
func (o Command) isOperation()  {}
func (o ApplyOps) isOperation() {}

func (o Noop) Time() primitive.Timestamp     { return o.Timestamp }
func (o Insert) Time() primitive.Timestamp   { return o.Timestamp }
func (o Update) Time() primitive.Timestamp   { return o.Timestamp }
func (o Delete) Time() primitive.Timestamp   { return o.Timestamp }
func (o Command) Time() primitive.Timestamp  { return o.Timestamp }
func (o ApplyOps) Time() primitive.Timestamp { return o.Timestamp }

func (o Noop) String() string {
	return fmt.Sprintf("No-op #%d at %v: %v", o.ID, FromTimestamp(o.Timestamp), o.Message)
}

func (o Insert) String() string {
	return fmt.Sprintf("Insert #%d into %s at %v: %v", o.ID, o.Namespace, FromTimestamp(o.Timestamp), o.Document)
}

func (o Update) String() string {
	return fmt.Sprintf("Update #%d %s with %v at %v: %v", o.ID, o.Namespace, o.Query, FromTimestamp(o.Timestamp), o.Update)
}

func (o Delete) String() string {
	return fmt.Sprintf("Delete #%d from %s at %v: %v", o.ID, o.Namespace, FromTimestamp(o.Timestamp), o.Query)
}

func (o Command) String() string {
	return fmt.Sprintf("Command #%d %s at %v: %v", o.ID, o.Namespace, FromTimestamp(o.Timestamp), o.Command)
}

func (o ApplyOps) String() string {
	return fmt.Sprintf("ApplyOps #%d %s at %v: %d operation(s)", o.ID, o.Namespace, FromTimestamp(o.Timestamp), len(o.Operations))
}
