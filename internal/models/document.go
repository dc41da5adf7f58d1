package models

import "github.com/example/docsync/internal/db"

// Document is a schemaless record: an identifier plus free-form fields.
// It backs collections registered at runtime (HTTP surface, CLI) where no
// typed model exists.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// Descriptor is empty: Document types always get their descriptor from the
// repository configuration.
func (d *Document) Descriptor() Descriptor { return Descriptor{} }

func (d *Document) RefID() string { return d.ID }

func (d *Document) SetRefID(id string) { d.ID = id }

func (d *Document) FromSnapshot(snap db.Snapshot) {
	d.ID = snap.ID()
	d.Data = snap.Data()
}

// Fields returns a copy of Data so callers can't mutate a cached record.
func (d *Document) Fields() map[string]any {
	fields := make(map[string]any, len(d.Data))
	for k, v := range d.Data {
		fields[k] = v
	}
	return fields
}
