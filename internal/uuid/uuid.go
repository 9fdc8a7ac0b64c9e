// Package uuid provides string UUID generation for tokens and identifiers.
package uuid

import "github.com/google/uuid"

// New returns a random (v4) UUID string.
func New() string {
	return uuid.NewString()
}
