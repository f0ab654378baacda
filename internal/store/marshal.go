package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/assetgraph/internal/payload"
)

// marshalPayload converts an Object to canonical JSON TEXT for storage.
// A nil object is stored as {}.
func marshalPayload(field string, obj payload.Object) (string, error) {
	if obj == nil {
		return "{}", nil
	}
	data, err := payload.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return string(data), nil
}

// unmarshalPayload parses stored JSON back into an Object.
// PostgreSQL returns JSONB in its own normalized text form, which parses
// to the same values.
func unmarshalPayload(field string, data []byte) (payload.Object, error) {
	obj, err := payload.ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return obj, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// utc drops monotonic readings and location so that timestamps compare and
// print the same whichever driver returned them.
func utc(t time.Time) time.Time {
	return t.UTC().Round(0)
}
