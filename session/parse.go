package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmcleod/keyrelay/blob"
)

// recordWire is the stored JSON shape. LocalID is deliberately absent: it is
// recovered from the storage key. Persistent is a pointer so a missing field
// can default to true rather than false.
type recordWire struct {
	UID            string           `json:"UID"`
	UserID         string           `json:"UserID"`
	Blob           string           `json:"blob,omitempty"`
	IsSelf         bool             `json:"isSelf"`
	Persistent     *bool            `json:"persistent,omitempty"`
	Trusted        bool             `json:"trusted"`
	PayloadVersion int              `json:"payloadVersion,omitempty"`
	PayloadType    blob.PayloadType `json:"payloadType,omitempty"`
	OfflineKeySalt string           `json:"offlineKeySalt,omitempty"`
	Source         Source           `json:"source"`
	PersistedAt    int64            `json:"persistedAt"`
}

// ParseRecord parses a stored session record. A nil or unparseable value
// returns an error wrapping ErrCorruptRecord so callers can distinguish
// corruption from absence where that matters; both collapse to "absent" in
// the store's Get.
func ParseRecord(localID int, data []byte) (*PersistedSession, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrCorruptRecord)
	}
	var wire recordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}

	rec := PersistedSession{
		LocalID:        localID,
		UID:            wire.UID,
		UserID:         wire.UserID,
		Blob:           wire.Blob,
		IsSelf:         wire.IsSelf,
		Persistent:     true,
		Trusted:        wire.Trusted,
		PayloadVersion: wire.PayloadVersion,
		PayloadType:    wire.PayloadType,
		OfflineKeySalt: wire.OfflineKeySalt,
		Source:         wire.Source,
		PersistedAt:    time.Unix(wire.PersistedAt, 0).UTC(),
	}
	if wire.Persistent != nil {
		rec.Persistent = *wire.Persistent
	}
	if rec.PayloadType == "" {
		rec.PayloadType = blob.PayloadDefault
	}
	// Records written before versioning carry legacy v1 blobs.
	if rec.Blob != "" && rec.PayloadVersion == 0 {
		rec.PayloadVersion = blob.Version1
	}
	if !rec.Source.valid() {
		rec.Source = SourcePassword
	}
	return &rec, nil
}

func marshalRecord(rec PersistedSession) ([]byte, error) {
	persistent := rec.Persistent
	wire := recordWire{
		UID:            rec.UID,
		UserID:         rec.UserID,
		Blob:           rec.Blob,
		IsSelf:         rec.IsSelf,
		Persistent:     &persistent,
		Trusted:        rec.Trusted,
		PayloadVersion: rec.PayloadVersion,
		PayloadType:    rec.PayloadType,
		OfflineKeySalt: rec.OfflineKeySalt,
		Source:         rec.Source,
		PersistedAt:    rec.PersistedAt.Unix(),
	}
	return json.Marshal(wire)
}
