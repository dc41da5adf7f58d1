package core

import (
	"github.com/example/docsync/internal/db"
	"github.com/example/docsync/internal/models"
)

// Model is implemented by the pointer type of every record type the engines
// can store. T is the record struct; the constraint lets a Repository
// allocate records with new(T).
type Model[T any] interface {
	*T
	// Descriptor returns the static addressing configuration of the type.
	Descriptor() models.Descriptor
	// RefID is the backend-assigned identifier, empty for unsaved records.
	RefID() string
	SetRefID(id string)
	// FromSnapshot populates the record. Only called with existing snapshots.
	FromSnapshot(snap db.Snapshot)
	// Fields returns the persisted field mapping. It must work for records
	// without an identifier.
	Fields() map[string]any
}

// FromSnapshot builds a record from a snapshot. A nil or missing snapshot
// yields an empty record. The snapshot ID is assigned when FromSnapshot left
// the identifier empty.
func FromSnapshot[T any, PT Model[T]](snap db.Snapshot) *T {
	rec := new(T)
	if snap == nil || !snap.Exists() {
		return rec
	}
	p := PT(rec)
	p.FromSnapshot(snap)
	if p.RefID() == "" {
		p.SetRefID(snap.ID())
	}
	return rec
}

// Fields returns the field mapping of rec, never nil.
func Fields[T any, PT Model[T]](rec *T) map[string]any {
	if rec == nil {
		return map[string]any{}
	}
	fields := PT(rec).Fields()
	if fields == nil {
		return map[string]any{}
	}
	return fields
}

// RefID returns the identifier of rec, empty for nil.
func RefID[T any, PT Model[T]](rec *T) string {
	if rec == nil {
		return ""
	}
	return PT(rec).RefID()
}

// WithRefID returns a shallow copy of rec carrying id.
func WithRefID[T any, PT Model[T]](rec *T, id string) *T {
	var cp T
	if rec != nil {
		cp = *rec
	}
	PT(&cp).SetRefID(id)
	return &cp
}

func mapSnapshots[T any, PT Model[T]](snaps []db.Snapshot) []*T {
	out := make([]*T, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, FromSnapshot[T, PT](snap))
	}
	return out
}
