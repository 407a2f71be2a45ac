package docstore

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Reserved keys. They live on Document rather than in Fields and are
// flattened into the persisted JSON object.
const (
	KeyID        = "_id"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
)

// Fields holds a document's user data. Values are always in their JSON
// normalised form: string, float64, bool, nil, []any or map[string]any.
type Fields map[string]any

// Document is a stored record.
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Fields    Fields
}

// NewDocument builds a document from caller supplied fields.
func NewDocument(id string, fields Fields, now time.Time) (Document, error) {
	normalized, err := NormalizeFields(fields)
	if err != nil {
		return Document{}, err
	}
	return Document{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    normalized,
	}, nil
}

// Replace returns a copy of d carrying fields and a refreshed UpdatedAt.
func (d Document) Replace(fields Fields, now time.Time) (Document, error) {
	normalized, err := NormalizeFields(fields)
	if err != nil {
		return Document{}, err
	}
	d.Fields = normalized
	d.UpdatedAt = now
	return d, nil
}

// Merge returns a copy of d with patch shallow-merged into its fields.
func (d Document) Merge(patch Fields, now time.Time) (Document, error) {
	merged := d.Fields.Clone()
	if merged == nil {
		merged = Fields{}
	}
	maps.Copy(merged, patch)
	return d.Replace(merged, now)
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	d.Fields = d.Fields.Clone()
	return d
}

// Get resolves a dotted field path. The reserved keys resolve to the
// document's ID and RFC 3339 timestamps.
func (d Document) Get(path string) (any, bool) {
	switch path {
	case KeyID:
		return d.ID, true
	case KeyCreatedAt:
		return d.CreatedAt.Format(time.RFC3339Nano), true
	case KeyUpdatedAt:
		return d.UpdatedAt.Format(time.RFC3339Nano), true
	}

	var current any = map[string]any(d.Fields)
	for part := range strings.SplitSeq(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Decode unmarshals the document's fields into v.
func (d Document) Decode(v any) error {
	data, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("docstore: encode fields: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("docstore: decode fields: %w", err)
	}
	return nil
}

// MarshalJSON flattens the document into a single object.
func (d Document) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Fields)+3)
	maps.Copy(flat, d.Fields)
	flat[KeyID] = d.ID
	flat[KeyCreatedAt] = d.CreatedAt.Format(time.RFC3339Nano)
	flat[KeyUpdatedAt] = d.UpdatedAt.Format(time.RFC3339Nano)
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON. Missing or unparsable timestamps decode
// as the zero time.
func (d *Document) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	id, _ := flat[KeyID].(string)
	if id == "" {
		return fmt.Errorf("docstore: document without %s", KeyID)
	}

	*d = Document{
		ID:        id,
		CreatedAt: parseTime(flat[KeyCreatedAt]),
		UpdatedAt: parseTime(flat[KeyUpdatedAt]),
	}
	delete(flat, KeyID)
	delete(flat, KeyCreatedAt)
	delete(flat, KeyUpdatedAt)
	d.Fields = flat
	return nil
}

// Clone returns a deep copy of f.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// NormalizeFields converts arbitrary Go values into their JSON normalised
// form and strips the reserved keys.
func NormalizeFields(fields Fields) (Fields, error) {
	if len(fields) == 0 {
		return Fields{}, nil
	}
	data, err := json.Marshal(map[string]any(fields))
	if err != nil {
		return nil, fmt.Errorf("docstore: normalize fields: %w", err)
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("docstore: normalize fields: %w", err)
	}
	delete(out, KeyID)
	delete(out, KeyCreatedAt)
	delete(out, KeyUpdatedAt)
	return out, nil
}

// FieldsOf converts a struct (or any JSON object value) into Fields.
func FieldsOf(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode value: %w", err)
	}
	var out Fields
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("docstore: value is not an object: %w", err)
	}
	return NormalizeFields(out)
}

// Filter returns the documents matching q, ordered by ID.
func Filter(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if q.Matches(doc) {
			out = append(out, doc.Clone())
		}
	}
	SortByID(out)
	return out
}

// SortByID orders documents by ID, which for generated IDs is creation order.
func SortByID(docs []Document) {
	slices.SortFunc(docs, func(a, b Document) int {
		return strings.Compare(a.ID, b.ID)
	})
}

func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
