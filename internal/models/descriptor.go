package models

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies which backend a model type lives in and therefore which
// backend operations are legal for it.
type Kind int

const (
	// KindCollection is a Firestore collection holding many documents.
	KindCollection Kind = iota
	// KindDocument is a model type pinned to a single Firestore document.
	KindDocument
	// KindKeyTree is a Realtime Database node whose children are the records.
	KindKeyTree
)

func (k Kind) String() string {
	switch k {
	case KindCollection:
		return "collection"
	case KindDocument:
		return "document"
	case KindKeyTree:
		return "key-tree"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrInvalidDescriptor is returned by Descriptor.Validate for configurations
// that cannot be resolved to a single addressing mode.
var ErrInvalidDescriptor = errors.New("invalid model descriptor")

// AssetConfig describes where the binary asset associated with a record lives.
// The object name is Namespace + record id + Extension.
type AssetConfig struct {
	Namespace   string `json:"namespace" mapstructure:"namespace"`
	Extension   string `json:"extension,omitempty" mapstructure:"extension"`
	Placeholder string `json:"placeholder,omitempty" mapstructure:"placeholder"`
}

// DefaultAssetExtension is appended to the record id when AssetConfig.Extension is empty.
const DefaultAssetExtension = ".png"

// Descriptor is the static, per-type configuration that tells the engines
// how to address a model type in its backend.
type Descriptor struct {
	Kind Kind `json:"kind"`

	// Collection is the Firestore collection path for KindCollection types.
	Collection string `json:"collection,omitempty"`
	// Document is an explicit document segment. When set, the type is pinned
	// to one document and collection addressing is disabled.
	Document string `json:"document,omitempty"`
	// DocumentPath is the full "collection/doc" path for KindDocument types.
	DocumentPath string `json:"documentPath,omitempty"`

	// BaseURL is the Realtime Database URL for KindKeyTree types.
	BaseURL string `json:"baseUrl,omitempty"`
	// Reference is the node path below BaseURL.
	Reference string `json:"reference,omitempty"`

	Asset *AssetConfig `json:"asset,omitempty"`
}

// Name returns a human readable label for logs, metrics and cache keys.
func (d Descriptor) Name() string {
	switch {
	case d.Collection != "":
		return d.Collection
	case d.DocumentPath != "":
		return d.DocumentPath
	case d.Reference != "":
		return strings.Trim(d.Reference, "/")
	default:
		return d.Kind.String()
	}
}

// Validate checks that exactly one addressing mode can be resolved.
func (d Descriptor) Validate() error {
	if d.Collection != "" && d.DocumentPath != "" {
		return fmt.Errorf("%w: both collection %q and document path %q are configured", ErrInvalidDescriptor, d.Collection, d.DocumentPath)
	}
	switch d.Kind {
	case KindCollection:
		if d.Collection == "" {
			return fmt.Errorf("%w: collection kind requires a collection name", ErrInvalidDescriptor)
		}
	case KindDocument:
		if d.DocumentPath == "" {
			return fmt.Errorf("%w: document kind requires a document path", ErrInvalidDescriptor)
		}
		if segments := strings.Split(strings.Trim(d.DocumentPath, "/"), "/"); len(segments)%2 != 0 {
			return fmt.Errorf("%w: document path %q must have an even number of segments", ErrInvalidDescriptor, d.DocumentPath)
		}
	case KindKeyTree:
		if d.BaseURL == "" {
			return fmt.Errorf("%w: key-tree kind requires a base URL", ErrInvalidDescriptor)
		}
	default:
		return fmt.Errorf("%w: unknown kind %s", ErrInvalidDescriptor, d.Kind)
	}
	return nil
}
