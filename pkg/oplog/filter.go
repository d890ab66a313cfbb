package oplog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filters are plain bson.D patterns pushed down to the server with the find
// query; the library never evaluates them in-process. Any pattern works with
// Builder.WithFilter, the helpers below cover the common cases.

// OpFilter matches entries whose "op" discriminator is one of the given tags,
// e.g. OpFilter("i") restricts a session to inserts.
func OpFilter(ops ...string) bson.D {
	return bson.D{{Key: "op", Value: bson.D{{Key: "$in", Value: ops}}}}
}

// CollectionFilter restricts a session by namespace. Either list may use "*"
// as a wildcard for the database or collection part.
type CollectionFilter struct {
	Collections         []Namespace
	ExcludedCollections []Namespace
}

// Where builds the "ns" clause for the filter. Command entries (`*.$cmd`) and
// the empty no-op namespace always pass the allow list so that a quiet but
// filtered oplog still advances the session position.
func (f CollectionFilter) Where() bson.D {
	result := bson.D{}
	if len(f.Collections) > 0 {
		allowList := append(f.Collections, MakeNamespace("*", "$cmd"))
		patterns := lo.Map(allowList, func(ns Namespace, _ int) string { return toRegexp(ns) })
		patterns = append(patterns, "")
		result = append(result, bson.E{Key: "ns", Value: bson.D{{Key: "$regex", Value: buildRegex(patterns)}}})
	}
	if len(f.ExcludedCollections) > 0 {
		patterns := lo.Map(f.ExcludedCollections, func(ns Namespace, _ int) string { return toRegexp(ns) })
		result = append(result, bson.E{Key: "ns", Value: bson.D{{Key: "$not", Value: primitive.Regex{
			Pattern: buildRegex(patterns),
			Options: "",
		}}}})
	}
	return result
}

func toRegexp(ns Namespace) string {
	switch {
	case ns.Database == "*" && ns.Collection == "*":
		return ".*\\..*"
	case ns.Collection == "*":
		return fmt.Sprintf("%s\\.%s", regexp.QuoteMeta(ns.Database), ".*")
	case ns.Database == "*":
		return fmt.Sprintf("%s\\.%s", ".*", regexp.QuoteMeta(ns.Collection))
	default:
		return fmt.Sprintf("%s\\.%s", regexp.QuoteMeta(ns.Database), regexp.QuoteMeta(ns.Collection))
	}
}

func buildRegex(patterns []string) string {
	if len(patterns) > 1 {
		return fmt.Sprintf("^(%s)$", strings.Join(patterns, "|"))
	} else if len(patterns) == 1 {
		return fmt.Sprintf("^%s$", patterns[0])
	}
	return "^$"
}
