package uuid

import (
	"testing"

	guuid "github.com/google/uuid"
)

func TestNew(t *testing.T) {
	id1 := New()
	id2 := New()

	if id1 == id2 {
		t.Error("UUIDs should be unique")
	}
	if _, err := guuid.Parse(id1); err != nil {
		t.Errorf("New returned unparseable UUID %q: %v", id1, err)
	}
}
