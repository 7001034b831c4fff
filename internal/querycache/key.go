// Package querycache holds the process-wide cache of autobrr query results
// and the key scheme that mutations invalidate.
package querycache

import (
	"net/url"
	"strings"
)

// Key is a hierarchical cache key. A key invalidates every key it is an
// element-wise prefix of.
type Key []string

// All is the root key of a resource: [resource].
func All(resource string) Key {
	return Key{resource}
}

// ListKey is the key of a resource's collection: [resource, "list"].
// Extra elements scope the list (e.g. the parent filter of actions).
func ListKey(resource string, scope ...string) Key {
	return append(Key{resource, "list"}, scope...)
}

// DetailKey is the key of one entity: [resource, "detail", id].
func DetailKey(resource, id string) Key {
	return Key{resource, "detail", id}
}

// Resource returns the first element of the key.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Scope returns "list", "detail", or "all" for a root key.
func (k Key) Scope() string {
	if len(k) < 2 {
		return "all"
	}
	return k[1]
}

// HasPrefix reports whether p is an element-wise prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

// String encodes the key so that element-wise prefixes are also string
// prefixes: every element is escaped and terminated with "/".
func (k Key) String() string {
	var b strings.Builder
	for _, el := range k {
		b.WriteString(url.PathEscape(el))
		b.WriteByte('/')
	}
	return b.String()
}
