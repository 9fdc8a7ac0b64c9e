// Package aad builds associated-data byte strings that bind ciphertexts to
// the purpose they were encrypted for, so a blob sealed for one consumer
// cannot be replayed to another.
package aad

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// Built-in payload contexts. New consumers register their own context rather
// than extending this list in place.
const (
	ContextFork    = "fork"
	ContextSession = "session"
)

var (
	mu       sync.RWMutex
	contexts = map[string]struct{}{
		ContextFork:    {},
		ContextSession: {},
	}
)

// RegisterContext makes a new payload context known. Registering an existing
// context is a no-op.
func RegisterContext(name string) {
	mu.Lock()
	defer mu.Unlock()
	contexts[name] = struct{}{}
}

// KnownContext reports whether the context has been registered.
func KnownContext(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := contexts[name]
	return ok
}

// ForPayload builds the associated data for a versioned payload blob. The
// context must be registered; unknown contexts fail closed.
func ForPayload(context string, version int) ([]byte, error) {
	if !KnownContext(context) {
		return nil, fmt.Errorf("unknown payload context %q", context)
	}
	return build("PAYLOAD", context, version), nil
}

// build produces an unambiguous byte string: strings are length-prefixed,
// ints are fixed-width big-endian.
func build(parts ...any) []byte {
	var res []byte
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			res = appendLenPrefix(res, []byte(v))
		case []byte:
			res = appendLenPrefix(res, v)
		case int:
			b := make([]byte, 4)
			binary.BigEndian.PutUint32(b, uint32(v))
			res = append(res, b...)
		}
	}
	return res
}

func appendLenPrefix(b, data []byte) []byte {
	l := make([]byte, 4)
	binary.BigEndian.PutUint32(l, uint32(len(data)))
	b = append(b, l...)
	b = append(b, data...)
	return b
}
