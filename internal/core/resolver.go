package core

import (
	"strings"

	"github.com/example/docsync/internal/models"
)

// ResolveCollection returns the collection address of d. It is absent when
// no collection is configured or when the type is pinned to a document.
func ResolveCollection(d models.Descriptor) (models.Address, bool) {
	if d.Collection == "" || d.Document != "" || d.DocumentPath != "" {
		return models.Address{}, false
	}
	return models.Address{Kind: models.AddressCollection, Path: strings.Trim(d.Collection, "/")}, true
}

// ResolveDocument returns the pinned document address of d.
func ResolveDocument(d models.Descriptor) (models.Address, bool) {
	if d.DocumentPath == "" {
		return models.Address{}, false
	}
	return models.Address{Kind: models.AddressDocument, Path: strings.Trim(d.DocumentPath, "/")}, true
}

// ResolveTree returns the Realtime Database node address of d.
func ResolveTree(d models.Descriptor) (models.Address, bool) {
	if d.BaseURL == "" {
		return models.Address{}, false
	}
	return models.Address{Kind: models.AddressTree, Path: strings.Trim(d.Reference, "/"), BaseURL: d.BaseURL}, true
}

// DocumentAddress returns the address of record id inside the collection of d.
func DocumentAddress(d models.Descriptor, id string) (models.Address, bool) {
	if id == "" {
		return models.Address{}, false
	}
	col, ok := ResolveCollection(d)
	if !ok {
		return models.Address{}, false
	}
	return col.Child(id), true
}
