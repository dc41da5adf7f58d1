package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{name: "collection", desc: Descriptor{Kind: KindCollection, Collection: "users"}},
		{name: "collection_without_name", desc: Descriptor{Kind: KindCollection}, wantErr: true},
		{name: "document", desc: Descriptor{Kind: KindDocument, DocumentPath: "config/app"}},
		{name: "document_odd_segments", desc: Descriptor{Kind: KindDocument, DocumentPath: "config"}, wantErr: true},
		{name: "collection_and_document_path", desc: Descriptor{Kind: KindDocument, Collection: "users", DocumentPath: "config/app"}, wantErr: true},
		{name: "key_tree", desc: Descriptor{Kind: KindKeyTree, BaseURL: "https://demo.firebaseio.com", Reference: "presence"}},
		{name: "key_tree_without_base_url", desc: Descriptor{Kind: KindKeyTree, Reference: "presence"}, wantErr: true},
		{name: "unknown_kind", desc: Descriptor{Kind: Kind(42), Collection: "users"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDescriptor)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDescriptor_Name(t *testing.T) {
	assert.Equal(t, "users", Descriptor{Collection: "users"}.Name())
	assert.Equal(t, "config/app", Descriptor{DocumentPath: "config/app"}.Name())
	assert.Equal(t, "presence/online", Descriptor{Kind: KindKeyTree, Reference: "/presence/online/"}.Name())
	assert.Equal(t, "key-tree", Descriptor{Kind: KindKeyTree}.Name())
}

func TestParseComparator(t *testing.T) {
	for in, want := range map[string]Comparator{
		"":    NoComparator,
		"eq":  Equal,
		"==":  Equal,
		"LT":  LessThan,
		"<=":  LessThanOrEqual,
		"gt":  GreaterThan,
		">=":  GreaterThanOrEqual,
		"gte": GreaterThanOrEqual,
	} {
		got, err := ParseComparator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseComparator("like")
	assert.Error(t, err)
}

func TestQuery_Filtered(t *testing.T) {
	assert.False(t, Query{}.Filtered())
	assert.False(t, Query{Field: "status"}.Filtered())
	assert.False(t, Query{Comparator: Equal}.Filtered())
	assert.True(t, Query{Field: "status", Comparator: Equal, Value: "open"}.Filtered())
}

func TestAddress(t *testing.T) {
	col := Address{Kind: AddressCollection, Path: "users"}
	doc := col.Child("abc123")
	assert.Equal(t, AddressDocument, doc.Kind)
	assert.Equal(t, "users/abc123", doc.Path)
	assert.Equal(t, "abc123", doc.ID())

	tree := Address{Kind: AddressTree, Path: "/presence/", BaseURL: "https://demo.firebaseio.com/"}
	child := tree.Child("k1")
	assert.Equal(t, AddressTree, child.Kind)
	assert.Equal(t, "presence/k1", child.Path)
	assert.Equal(t, "https://demo.firebaseio.com/presence/k1", child.String())
	assert.Equal(t, "", Address{}.ID())
}
