package api

import "github.com/example/docsync/internal/models"

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CollectionInfo describes one registered model type.
type CollectionInfo struct {
	Name       string            `json:"name"`
	Kind       string            `json:"kind"`
	Descriptor models.Descriptor `json:"descriptor"`
}

// RecordsResponse is returned by fetches and carried by every streamed batch.
type RecordsResponse struct {
	Collection string             `json:"collection"`
	Records    []*models.Document `json:"records"`
}

// CreatedResponse is returned by POST /collections/:name.
type CreatedResponse struct {
	ID      string         `json:"id"`
	Address models.Address `json:"address"`
}
