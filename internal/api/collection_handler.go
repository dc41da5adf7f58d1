package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/docsync/internal/core"
	"github.com/example/docsync/internal/models"
)

// CollectionHandler exposes registered repositories over HTTP.
type CollectionHandler struct {
	registry *Registry
	logger   *zap.Logger
}

func NewCollectionHandler(registry *Registry, logger *zap.Logger) *CollectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionHandler{registry: registry, logger: logger}
}

// mapErrorToStatus maps engine errors to HTTP status codes and ErrorResponse.
func (h *CollectionHandler) mapErrorToStatus(c *gin.Context, err error) {
	var (
		statusCode  int
		errResponse ErrorResponse
	)
	switch {
	case errors.Is(err, core.ErrNoData):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: core.ErrNoData.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrUnsupportedOperation):
		statusCode = http.StatusMethodNotAllowed
		errResponse = ErrorResponse{Error: core.ErrUnsupportedOperation.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrInvalidReference):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrInvalidReference.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrNoIdentifier):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: core.ErrNoIdentifier.Error()}
	default:
		h.logger.Error("Internal Server Error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected internal server error occurred."}
	}
	c.JSON(statusCode, errResponse)
}

// repository resolves the :name parameter, answering 404 when unknown.
func (h *CollectionHandler) repository(c *gin.Context) (*DocumentRepository, bool) {
	name := c.Param("name")
	repo, ok := h.registry.Lookup(name)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Unknown collection", Details: name})
		return nil, false
	}
	return repo, true
}

// ListCollections handles GET /collections
func (h *CollectionHandler) ListCollections(c *gin.Context) {
	names := h.registry.Names()
	infos := make([]CollectionInfo, 0, len(names))
	for _, name := range names {
		repo, _ := h.registry.Lookup(name)
		d := repo.Descriptor()
		infos = append(infos, CollectionInfo{Name: name, Kind: d.Kind.String(), Descriptor: d})
	}
	c.JSON(http.StatusOK, infos)
}

// GetRecords handles GET /collections/:name
func (h *CollectionHandler) GetRecords(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	recs, err := repo.Get(c.Request.Context())
	if err != nil {
		h.mapErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, RecordsResponse{Collection: c.Param("name"), Records: recs})
}

// GetCached handles GET /collections/:name/cache
func (h *CollectionHandler) GetCached(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, RecordsResponse{Collection: c.Param("name"), Records: repo.Cached()})
}

// StreamQuery handles GET /collections/:name/query?field=&op=&value=[&type=]
// as a server-sent event stream. Every result batch is one "batch" event; a
// terminal error is sent as an "error" event before the stream closes.
func (h *CollectionHandler) StreamQuery(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	q, err := queryFromRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid query", Details: err.Error()})
		return
	}

	ctx := c.Request.Context()
	s := repo.Query(ctx, q)
	defer s.Cancel()

	// Streams rejected up front terminate before the first batch.
	select {
	case <-s.Done():
		if err := s.Err(); err != nil {
			h.mapErrorToStatus(c, err)
			return
		}
	default:
	}

	name := c.Param("name")
	c.Stream(func(io.Writer) bool {
		select {
		case batch, open := <-s.Events():
			if !open {
				if err := s.Err(); err != nil {
					h.logger.Warn("Query stream terminated", zap.String("collection", name), zap.Error(err))
					c.SSEvent("error", ErrorResponse{Error: "Query terminated", Details: err.Error()})
				}
				return false
			}
			c.SSEvent("batch", RecordsResponse{Collection: name, Records: batch})
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// CreateRecord handles POST /collections/:name
func (h *CollectionHandler) CreateRecord(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	addr, err := repo.Add(c.Request.Context(), &models.Document{Data: fields})
	if err != nil {
		h.mapErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreatedResponse{ID: addr.ID(), Address: addr})
}

// DeleteRecord handles DELETE /collections/:name/:id
func (h *CollectionHandler) DeleteRecord(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	if err := repo.Remove(c.Request.Context(), &models.Document{ID: c.Param("id")}); err != nil {
		h.mapErrorToStatus(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAsset handles GET /collections/:name/assets/:id. A missing asset
// redirects to the placeholder when one is configured.
func (h *CollectionHandler) GetAsset(c *gin.Context) {
	repo, ok := h.repository(c)
	if !ok {
		return
	}
	rec := &models.Document{ID: c.Param("id")}
	rc, err := repo.OpenAsset(c.Request.Context(), rec)
	if err != nil {
		if ref := repo.AssetRef(rec); errors.Is(err, core.ErrNoData) && ref.Placeholder != "" {
			c.Redirect(http.StatusFound, ref.Placeholder)
			return
		}
		h.mapErrorToStatus(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(repo.AssetRef(rec).Object))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func queryFromRequest(c *gin.Context) (models.Query, error) {
	cmp, err := models.ParseComparator(c.Query("op"))
	if err != nil {
		return models.Query{}, err
	}
	q := models.Query{Field: c.Query("field"), Comparator: cmp}
	if !q.Filtered() {
		return models.Query{}, nil
	}
	q.Value, err = ParseValue(c.Query("value"), c.Query("type"))
	return q, err
}

// ParseValue converts a textual filter value. Typ is one of string, int,
// float, bool; when empty the narrowest matching type is inferred.
func ParseValue(raw, typ string) (any, error) {
	switch strings.ToLower(typ) {
	case "string":
		return raw, nil
	case "int":
		return strconv.ParseInt(raw, 10, 64)
	case "float":
		return strconv.ParseFloat(raw, 64)
	case "bool":
		return strconv.ParseBool(raw)
	case "":
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		if b, err := strconv.ParseBool(raw); err == nil {
			return b, nil
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown value type %q", typ)
	}
}
