package oplog

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.ytsaurus.tech/library/go/core/xerrors"
)

// Layout of an oplog v2 entry (mongo 3.x/4.x): {ts, h, v, op, ns, o, o2}.
// The parser reads fields positionally from bson.Raw instead of struct tags so
// that a missing field is distinguishable from a present zero value.

const applyOpsKey = "applyOps"

// NewOperation decodes one raw oplog document into a single Operation.
//
// A command document whose "o" payload carries an "applyOps" array decodes
// into an ApplyOps wrapper with its constituents decoded in array order; the
// array elements themselves always decode into non-ApplyOps operations.
// Unparseable documents yield an error matching ErrDecode.
func NewOperation(raw bson.Raw) (Operation, error) {
	op, err := decodeDocument(raw, nil)
	if err != nil {
		return nil, ErrDecode.Wrap(err)
	}
	return op, nil
}

// Decode decodes one raw oplog document into the sequence of operations it
// contributes to a tailing stream: an applyOps batch contributes its
// constituent operations (possibly none at all), any other document
// contributes exactly itself. No ApplyOps wrapper is ever returned.
func Decode(raw bson.Raw) ([]Operation, error) {
	op, err := NewOperation(raw)
	if err != nil {
		return nil, err
	}
	if batch, ok := op.(ApplyOps); ok {
		return batch.Operations, nil
	}
	return []Operation{op}, nil
}

// header carries the fields shared by every operation kind. Entries inside an
// applyOps batch may omit "ts" and "h", in which case they inherit the values
// of the enclosing entry.
type header struct {
	timestamp primitive.Timestamp
	id        int64
}

func decodeDocument(raw bson.Raw, parent *header) (Operation, error) {
	hdr, err := decodeHeader(raw, parent)
	if err != nil {
		return nil, err
	}

	opType, ok := lookupString(raw, "op")
	if !ok {
		return nil, &MissingFieldError{Field: "op"}
	}

	switch opType {
	case "n":
		message, err := requireDocument(raw, "o")
		if err != nil {
			return nil, err
		}
		return Noop{Timestamp: hdr.timestamp, ID: hdr.id, Message: message}, nil
	case "i":
		namespace, err := requireNamespace(raw)
		if err != nil {
			return nil, err
		}
		document, err := requireDocument(raw, "o")
		if err != nil {
			return nil, err
		}
		return Insert{Timestamp: hdr.timestamp, ID: hdr.id, Namespace: namespace, Document: document}, nil
	case "u":
		namespace, err := requireNamespace(raw)
		if err != nil {
			return nil, err
		}
		query, err := requireDocument(raw, "o2")
		if err != nil {
			return nil, err
		}
		update, err := requireDocument(raw, "o")
		if err != nil {
			return nil, err
		}
		return Update{Timestamp: hdr.timestamp, ID: hdr.id, Namespace: namespace, Query: query, Update: update}, nil
	case "d":
		namespace, err := requireNamespace(raw)
		if err != nil {
			return nil, err
		}
		// for deletes the selection criteria live under "o", not "o2"
		query, err := requireDocument(raw, "o")
		if err != nil {
			return nil, err
		}
		return Delete{Timestamp: hdr.timestamp, ID: hdr.id, Namespace: namespace, Query: query}, nil
	case "c":
		namespace, err := requireNamespace(raw)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			if batch, ok := lookupApplyOps(raw); ok {
				return decodeApplyOps(raw, hdr, namespace, batch)
			}
		}
		command, err := requireDocument(raw, "o")
		if err != nil {
			return nil, err
		}
		return Command{Timestamp: hdr.timestamp, ID: hdr.id, Namespace: namespace, Command: command}, nil
	default:
		return nil, &UnknownOperationError{Op: opType}
	}
}

func decodeApplyOps(raw bson.Raw, hdr header, namespace string, batch bson.Raw) (Operation, error) {
	values, err := batch.Values()
	if err != nil {
		return nil, xerrors.Errorf("invalid %s array: %w", applyOpsKey, err)
	}
	operations := make([]Operation, 0, len(values))
	for i, value := range values {
		subRaw, ok := value.DocumentOK()
		if !ok {
			return nil, xerrors.Errorf("%s entry %d is not a document", applyOpsKey, i)
		}
		sub, err := decodeDocument(subRaw, &hdr)
		if err != nil {
			return nil, xerrors.Errorf("%s entry %d: %w", applyOpsKey, i, err)
		}
		operations = append(operations, sub)
	}
	return ApplyOps{Timestamp: hdr.timestamp, ID: hdr.id, Namespace: namespace, Operations: operations}, nil
}

func decodeHeader(raw bson.Raw, parent *header) (header, error) {
	var hdr header

	if value, err := raw.LookupErr("ts"); err == nil {
		t, i, ok := value.TimestampOK()
		if !ok {
			return hdr, ErrMissingTimestamp
		}
		hdr.timestamp = primitive.Timestamp{T: t, I: i}
	} else if parent != nil {
		hdr.timestamp = parent.timestamp
	} else {
		return hdr, ErrMissingTimestamp
	}

	if value, err := raw.LookupErr("h"); err == nil {
		id, ok := value.Int64OK()
		if !ok {
			return hdr, ErrMissingID
		}
		hdr.id = id
	} else if parent != nil {
		hdr.id = parent.id
	} else {
		return hdr, ErrMissingID
	}

	return hdr, nil
}

func requireNamespace(raw bson.Raw) (string, error) {
	namespace, ok := lookupString(raw, "ns")
	if !ok {
		return "", &MissingFieldError{Field: "ns"}
	}
	return namespace, nil
}

func requireDocument(raw bson.Raw, field string) (bson.D, error) {
	value, err := raw.LookupErr(field)
	if err != nil {
		return nil, &MissingFieldError{Field: field}
	}
	docRaw, ok := value.DocumentOK()
	if !ok {
		return nil, &MissingFieldError{Field: field}
	}
	var document bson.D
	if err := bson.Unmarshal(docRaw, &document); err != nil {
		return nil, xerrors.Errorf("cannot unmarshal %q document: %w", field, err)
	}
	return document, nil
}

func lookupString(raw bson.Raw, field string) (string, bool) {
	value, err := raw.LookupErr(field)
	if err != nil {
		return "", false
	}
	return value.StringValueOK()
}

func lookupApplyOps(raw bson.Raw) (bson.Raw, bool) {
	value, err := raw.LookupErr("o", applyOpsKey)
	if err != nil {
		return nil, false
	}
	return value.ArrayOK()
}
