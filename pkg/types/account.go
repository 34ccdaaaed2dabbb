package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PersistedAccountRecord is the durable identity of one attached account.
// The connection string is never part of the record; it lives in the
// CredentialStore under the record ID.
type PersistedAccountRecord struct {
	ID                string       `json:"id"`
	DefaultExperience ProviderKind `json:"defaultExperience"`
	IsEmulator        bool         `json:"isEmulator"`
}

// UnmarshalJSON accepts either the record object or a legacy bare string.
// A bare string is the account ID with FirstSupportedProvider and
// IsEmulator false.
func (r *PersistedAccountRecord) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = PersistedAccountRecord{ID: id, DefaultExperience: FirstSupportedProvider}
		return nil
	}

	// Alias drops the method set so the default decoder runs.
	type record PersistedAccountRecord
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*r = PersistedAccountRecord(rec)
	return nil
}

// DecodeAccountRecords parses the persisted global-state value. An empty
// value decodes to no records. Elements may mix legacy strings and records.
func DecodeAccountRecords(value string) ([]PersistedAccountRecord, error) {
	if len(bytes.TrimSpace([]byte(value))) == 0 {
		return nil, nil
	}
	var records []PersistedAccountRecord
	if err := json.Unmarshal([]byte(value), &records); err != nil {
		return nil, fmt.Errorf("decode account records: %w", err)
	}
	return records, nil
}

// EncodeAccountRecords serializes records in the full record shape.
func EncodeAccountRecords(records []PersistedAccountRecord) (string, error) {
	if records == nil {
		records = []PersistedAccountRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode account records: %w", err)
	}
	return string(data), nil
}

// DatabaseInfo is one entry of a provider's database listing.
type DatabaseInfo struct {
	Name  string
	Empty bool
}

// Document is a provider document payload. Mongo documents carry "_id".
type Document map[string]any

// DocumentIDKey is the immutable identity field of a document.
const DocumentIDKey = "_id"

// ID returns the document's _id and whether it is set.
func (d Document) ID() (any, bool) {
	id, ok := d[DocumentIDKey]
	if !ok || id == nil {
		return nil, false
	}
	if s, isString := id.(string); isString && s == "" {
		return nil, false
	}
	return id, true
}

// WithoutID returns a shallow copy of d without the _id field.
func (d Document) WithoutID() Document {
	out := make(Document, len(d))
	for k, v := range d {
		if k == DocumentIDKey {
			continue
		}
		out[k] = v
	}
	return out
}
