package db

import (
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-viper/mapstructure/v2"
)

// Snapshot is a point-in-time read of one record in any backend.
// Implementations must tolerate a nil receiver.
type Snapshot interface {
	// ID is the backend-assigned identifier (document ID or tree key).
	ID() string
	Exists() bool
	// Data returns the stored fields, nil when the record does not exist.
	Data() map[string]any
	// DataTo decodes the fields into v, honouring `firestore` struct tags.
	DataTo(v any) error
}

// firestoreSnapshot adapts *firestore.DocumentSnapshot.
type firestoreSnapshot struct {
	doc *firestore.DocumentSnapshot
}

func (s *firestoreSnapshot) ID() string {
	if s == nil || s.doc == nil || s.doc.Ref == nil {
		return ""
	}
	return s.doc.Ref.ID
}

func (s *firestoreSnapshot) Exists() bool {
	return s != nil && s.doc != nil && s.doc.Exists()
}

func (s *firestoreSnapshot) Data() map[string]any {
	if !s.Exists() {
		return nil
	}
	return s.doc.Data()
}

func (s *firestoreSnapshot) DataTo(v any) error {
	if !s.Exists() {
		return fmt.Errorf("decode snapshot %q: %w", s.ID(), ErrNotFound)
	}
	return s.doc.DataTo(v)
}

// MapSnapshot is a snapshot over already decoded fields. The Realtime
// Database and in-memory adapters produce these.
type MapSnapshot struct {
	Key    string
	Fields map[string]any
}

// NewMapSnapshot wraps a raw value. Values that are not JSON objects are
// exposed under the "value" field.
func NewMapSnapshot(key string, raw any) *MapSnapshot {
	switch v := raw.(type) {
	case nil:
		return &MapSnapshot{Key: key}
	case map[string]any:
		return &MapSnapshot{Key: key, Fields: v}
	default:
		return &MapSnapshot{Key: key, Fields: map[string]any{"value": v}}
	}
}

func (s *MapSnapshot) ID() string {
	if s == nil {
		return ""
	}
	return s.Key
}

func (s *MapSnapshot) Exists() bool {
	return s != nil && s.Fields != nil
}

func (s *MapSnapshot) Data() map[string]any {
	if !s.Exists() {
		return nil
	}
	out := make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		out[k] = v
	}
	return out
}

func (s *MapSnapshot) DataTo(v any) error {
	if !s.Exists() {
		return fmt.Errorf("decode snapshot %q: %w", s.ID(), ErrNotFound)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "firestore",
		WeaklyTypedInput: true,
		Result:           v,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return fmt.Errorf("decode snapshot %q: %w", s.Key, err)
	}
	if err := decoder.Decode(s.Fields); err != nil {
		return fmt.Errorf("decode snapshot %q: %w", s.Key, err)
	}
	return nil
}

func wrapDocuments(docs []*firestore.DocumentSnapshot) []Snapshot {
	out := make([]Snapshot, 0, len(docs))
	for _, doc := range docs {
		out = append(out, &firestoreSnapshot{doc: doc})
	}
	return out
}
