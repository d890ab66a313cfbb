package oplog

import (
	"fmt"
	"strings"
)

// Namespace is a database-qualified collection name as recorded in the "ns"
// field of oplog entries.
type Namespace struct {
	Database   string
	Collection string
}

func MakeNamespace(database, collection string) Namespace {
	return Namespace{
		Database:   database,
		Collection: collection,
	}
}

// ParseNamespace splits a raw "db.collection" string. Returns nil for strings
// without a dot, such as the empty namespace of no-op entries.
func ParseNamespace(rawNamespace string) *Namespace {
	idx := strings.Index(rawNamespace, ".")
	if idx == -1 {
		return nil
	}
	return &Namespace{
		Database:   rawNamespace[:idx],
		Collection: rawNamespace[idx+1:],
	}
}

func (n *Namespace) GetFullName() string {
	return fmt.Sprintf("%v.%v", n.Database, n.Collection)
}

// IsCommand reports whether the namespace is the pseudo-collection commands
// are logged under.
func (n *Namespace) IsCommand() bool {
	return n.Collection == "$cmd"
}
