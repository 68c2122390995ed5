package store

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/persistorai/dashport/internal/models"
	"github.com/persistorai/dashport/internal/refs"
)

// docUUID parses the document's uuid, minting a new one when it has none.
func docUUID(doc models.Document) (uuid.UUID, error) {
	raw := doc.UUID()
	if raw == "" {
		return uuid.New(), nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("uuid %q: %w", raw, models.ErrMalformed)
	}

	return id, nil
}

// requireString returns a non-empty string field.
func requireString(doc models.Document, field string) (string, error) {
	v := doc.String(field)
	if v == "" {
		return "", models.MissingFieldError(doc.UUID(), field)
	}

	return v, nil
}

// requireID returns a numeric id field injected by the import service.
func requireID(doc models.Document, field string) (int64, error) {
	v, ok := refs.ToInt64(doc[field])
	if !ok || v <= 0 {
		return 0, models.MissingFieldError(doc.UUID(), field)
	}

	return v, nil
}

// jsonField encodes a nested document field for a JSONB column. Strings are
// taken to be JSON already; absent fields become an empty object.
func jsonField(doc models.Document, field string) ([]byte, error) {
	switch v := doc[field].(type) {
	case nil:
		return []byte("{}"), nil
	case string:
		if v == "" {
			return []byte("{}"), nil
		}

		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("%s: %w", field, models.ErrMalformed)
		}

		return []byte(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", field, err)
		}

		return data, nil
	}
}

// payload encodes the whole document as persisted.
func payload(doc models.Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document %s: %w", doc.UUID(), err)
	}

	return data, nil
}

// optionalString returns nil for an absent or empty string field.
func optionalString(doc models.Document, field string) *string {
	v := doc.String(field)
	if v == "" {
		return nil
	}

	return &v
}
