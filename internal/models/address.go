package models

import (
	"path"
	"strings"
)

// AddressKind tells which backend an Address points into.
type AddressKind int

const (
	AddressCollection AddressKind = iota
	AddressDocument
	AddressTree
)

// Address is a resolved backend location.
type Address struct {
	Kind AddressKind `json:"kind"`
	// Path is the slash separated path inside the backend.
	Path string `json:"path"`
	// BaseURL is only set for AddressTree.
	BaseURL string `json:"baseUrl,omitempty"`
}

// ID returns the last path segment, which is the record identifier for
// document and tree-child addresses.
func (a Address) ID() string {
	p := strings.Trim(a.Path, "/")
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// Child returns the address of a record directly below a.
// Children of a collection are documents; children of a tree node stay tree addresses.
func (a Address) Child(id string) Address {
	kind := AddressDocument
	if a.Kind == AddressTree {
		kind = AddressTree
	}
	return Address{Kind: kind, Path: path.Join(strings.Trim(a.Path, "/"), id), BaseURL: a.BaseURL}
}

func (a Address) String() string {
	if a.BaseURL != "" {
		return strings.TrimRight(a.BaseURL, "/") + "/" + strings.Trim(a.Path, "/")
	}
	return a.Path
}

// AssetRef is the location of a record's binary asset and the placeholder to
// show while it loads. Both fields are empty when the record has no asset.
type AssetRef struct {
	Object      string `json:"object,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
}
