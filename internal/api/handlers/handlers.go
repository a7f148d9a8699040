// Package handlers provides HTTP request handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/awagdata/objectstore/internal/api/types"
	"github.com/awagdata/objectstore/internal/engine"
	"github.com/awagdata/objectstore/internal/storage"
)

// Handler provides HTTP handlers for the object store.
type Handler struct {
	engine    *engine.Engine
	logger    *slog.Logger
	version   string
	commit    string
	buildTime string
}

// Config holds handler configuration.
type Config struct {
	Version   string
	Commit    string
	BuildTime string
}

// New creates a new Handler.
func New(eng *engine.Engine, logger *slog.Logger) *Handler {
	return NewWithConfig(eng, logger, Config{Version: "dev"})
}

// NewWithConfig creates a new Handler with build metadata.
func NewWithConfig(eng *engine.Engine, logger *slog.Logger, cfg Config) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:    eng,
		logger:    logger,
		version:   cfg.Version,
		commit:    cfg.Commit,
		buildTime: cfg.BuildTime,
	}
}

// Index handles GET / with the service identity.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.IdentityResponse{
		Service:   "objectstore",
		Version:   h.version,
		Commit:    h.commit,
		BuildTime: h.buildTime,
	})
}

// Status handles GET /status
// Returns 200 when storage is healthy, 503 when not.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if h.engine.IsHealthy(r.Context()) {
		writeJSON(w, http.StatusOK, types.StatusResponse{Status: types.StatusOK})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, types.StatusResponse{
		Status: types.StatusError,
		Reason: "storage backend unavailable",
	})
}

// Store handles POST /svc/v1/{ns}, POST /svc/v1/{ns}/{object_id} and the
// /store/ aliases. The object id may arrive as a path segment or as the
// object_id query parameter; tags as the tags query parameter.
func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	clientID := clientID(r)
	ns := namespaceParam(r)
	objectID := objectIDParam(r)

	if err := validNames(ns, objectID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	tags, err := tagsParam(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	result, err := h.engine.Store(r.Context(), clientID, ns, objectID, payload, tags)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.StoreResponse{
		Status:          types.StatusOK,
		ClientID:        clientID,
		NamespaceID:     ns,
		ObjectID:        result.ObjectID,
		RevisionID:      result.RevisionID,
		NewVersion:      result.NewVersion,
		Tags:            tags,
		ObjectTimestamp: result.Timestamp,
		Mid:             h.mid(r, clientID, ns),
	})
}

// retrieveProps are the envelope fields addressable via the prop path
// segment.
var retrieveProps = map[string]bool{
	"object":           true,
	"object_tags":      true,
	"object_timestamp": true,
	"revision_id":      true,
	"object_id":        true,
	"revisions":        true,
}

// Retrieve handles GET /svc/v1/{ns}/{object_id}[/{prop}] and the
// /retrieve/ aliases. Query parameters: revision_id, tag.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	clientID := clientID(r)
	ns := namespaceParam(r)
	objectID := objectIDParam(r)
	prop := propParam(r)
	revisionID := r.URL.Query().Get("revision_id")
	tag := r.URL.Query().Get("tag")

	if err := validNames(ns, objectID, revisionID, tag); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if prop != "" && !retrieveProps[prop] {
		writeError(w, http.StatusBadRequest, "Unknown property: "+prop)
		return
	}

	record, err := h.engine.Retrieve(r.Context(), clientID, ns, objectID, revisionID, tag)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	resp := types.RetrieveResponse{
		Status:          types.StatusOK,
		ClientID:        clientID,
		NamespaceID:     ns,
		ObjectID:        record.ObjectID,
		RevisionID:      record.RevisionID,
		Object:          json.RawMessage(record.ObjectJSON),
		ObjectTags:      record.ObjectTags,
		ObjectTimestamp: record.Timestamp,
		Mid:             h.mid(r, clientID, ns),
	}

	if prop == "revisions" {
		revisions, err := h.engine.Revisions(r.Context(), clientID, ns, objectID)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		resp.Revisions = revisionInfos(revisions)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if prop != "" {
		writeJSON(w, http.StatusOK, propValue(resp, prop))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// propValue returns one named envelope field as a bare value; the response
// body for a property retrieval carries the field alone, not the envelope.
func propValue(resp types.RetrieveResponse, prop string) any {
	switch prop {
	case "object":
		return resp.Object
	case "object_tags":
		return resp.ObjectTags
	case "object_timestamp":
		return resp.ObjectTimestamp
	case "revision_id":
		return resp.RevisionID
	case "object_id":
		return resp.ObjectID
	}
	return nil
}

// Delete handles DELETE /svc/v1/{ns}/{object_id} and the /delete/ alias.
// Query parameter revision_id limits the delete to one revision.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	clientID := clientID(r)
	ns := namespaceParam(r)
	objectID := objectIDParam(r)
	revisionID := r.URL.Query().Get("revision_id")

	if err := validNames(ns, objectID, revisionID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	if err := h.engine.Delete(r.Context(), clientID, ns, objectID, revisionID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.DeleteResponse{
		Status:      types.StatusOK,
		ClientID:    clientID,
		NamespaceID: ns,
		ObjectID:    objectID,
		RevisionID:  revisionID,
		Mid:         h.mid(r, clientID, ns),
	})
}

// Revisions handles GET /svc/v1/query/{ns}/{object_id}.
func (h *Handler) Revisions(w http.ResponseWriter, r *http.Request) {
	clientID := clientID(r)
	ns := namespaceParam(r)
	objectID := objectIDParam(r)

	if err := validNames(ns, objectID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	revisions, err := h.engine.Revisions(r.Context(), clientID, ns, objectID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.RevisionsResponse{
		Status:      types.StatusOK,
		ClientID:    clientID,
		NamespaceID: ns,
		ObjectID:    objectID,
		Revisions:   revisionInfos(revisions),
		Mid:         h.mid(r, clientID, ns),
	})
}

// GetTags handles GET /svc/v1/tags/{ns}/{object_id}.
func (h *Handler) GetTags(w http.ResponseWriter, r *http.Request) {
	h.respondTags(w, r, func(clientID, ns, objectID string, _ []string) error {
		return nil
	})
}

// AddTags handles PATCH /svc/v1/tags/{ns}/{object_id} and
// POST /svc/v1/tags/add/{ns}/{object_id}.
func (h *Handler) AddTags(w http.ResponseWriter, r *http.Request) {
	h.respondTags(w, r, func(clientID, ns, objectID string, tags []string) error {
		return h.engine.AddTags(r.Context(), clientID, ns, objectID, tags)
	})
}

// ReplaceTags handles PUT /svc/v1/tags/{ns}/{object_id}.
func (h *Handler) ReplaceTags(w http.ResponseWriter, r *http.Request) {
	h.respondTags(w, r, func(clientID, ns, objectID string, tags []string) error {
		return h.engine.ReplaceTags(r.Context(), clientID, ns, objectID, tags)
	})
}

// RemoveTags handles DELETE /svc/v1/tags/{ns}/{object_id} and
// POST /svc/v1/tags/remove/{ns}/{object_id}. Removes every binding when no
// tags are named.
func (h *Handler) RemoveTags(w http.ResponseWriter, r *http.Request) {
	h.respondTags(w, r, func(clientID, ns, objectID string, tags []string) error {
		return h.engine.RemoveTags(r.Context(), clientID, ns, objectID, tags)
	})
}

// respondTags runs one tag mutation and answers with the object's tag list
// as it stands after the mutation.
func (h *Handler) respondTags(w http.ResponseWriter, r *http.Request, mutate func(clientID, ns, objectID string, tags []string) error) {
	clientID := clientID(r)
	ns := namespaceParam(r)
	objectID := objectIDParam(r)

	if err := validNames(ns, objectID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	tags, err := tagsParam(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	if err := mutate(clientID, ns, objectID, tags); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	current, err := h.engine.Tags(r.Context(), clientID, ns, objectID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.TagsResponse{
		Status:      types.StatusOK,
		ClientID:    clientID,
		NamespaceID: ns,
		ObjectID:    objectID,
		Tags:        current,
		Mid:         h.mid(r, clientID, ns),
	})
}

// Query handles GET /svc/v1/{ns} and GET /svc/v1/query/{ns}. The optional
// tag query parameter restricts the listing to objects carrying that tag.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	clientID := clientID(r)
	ns := namespaceParam(r)
	tag := r.URL.Query().Get("tag")

	if err := validNames(ns, tag); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	ids, err := h.engine.ListObjects(r.Context(), clientID, ns, tag)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.QueryResponse{
		Status:      types.StatusOK,
		ClientID:    clientID,
		NamespaceID: ns,
		Tag:         tag,
		ObjectIDs:   ids,
		Mid:         h.mid(r, clientID, ns),
	})
}

// Clear handles DELETE /svc/v1/{ns} and DELETE /svc/v1/clear/{ns}.
// Requires confirm=true; the optional tags parameter limits the clear to
// objects carrying any of the named tags.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	clientID := clientID(r)
	ns := namespaceParam(r)
	confirm := r.URL.Query().Get("confirm") == "true"

	if err := validNames(ns); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	tags, err := tagsParam(r)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	if err := h.engine.Clear(r.Context(), clientID, ns, tags, confirm); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.ClearResponse{
		Status:      types.StatusOK,
		ClientID:    clientID,
		NamespaceID: ns,
		Tags:        tags,
		Mid:         h.mid(r, clientID, ns),
	})
}

// Mappings handles GET /svc/v1/mappings with the optional namespace_id
// query parameter.
func (h *Handler) Mappings(w http.ResponseWriter, r *http.Request) {
	clientID := clientID(r)
	namespaceID := r.URL.Query().Get("namespace_id")

	if err := validNames(namespaceID); err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	records, err := h.engine.Mappings(r.Context(), namespaceID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	mappings := make([]types.Mapping, 0, len(records))
	for _, rec := range records {
		mappings = append(mappings, types.Mapping{
			ClientID:       rec.ClientID,
			NamespaceID:    rec.NamespaceID,
			IdentifierName: rec.IdentifierName,
			Timestamp:      rec.Timestamp,
		})
	}

	writeJSON(w, http.StatusOK, types.MappingsResponse{
		Status:      types.StatusOK,
		ClientID:    clientID,
		NamespaceID: namespaceID,
		Mappings:    mappings,
	})
}

// mid returns the mapping identifier serving a namespaced request. The
// resolve is a cache hit by the time any handler asks for it; failures
// just drop the meta field.
func (h *Handler) mid(r *http.Request, clientID, ns string) string {
	suffix, err := h.engine.Resolve(r.Context(), clientID, ns)
	if err != nil {
		return ""
	}
	return suffix
}

// revisionInfos converts storage revision records to response entries.
func revisionInfos(revisions []storage.RevisionInfo) []types.RevisionInfo {
	out := make([]types.RevisionInfo, 0, len(revisions))
	for _, rev := range revisions {
		out = append(out, types.RevisionInfo{
			RevisionID: rev.RevisionID,
			Timestamp:  rev.Timestamp,
		})
	}
	return out
}

// writeEngineError maps an engine or storage error to its HTTP status.
// Client errors carry their message; anything unexpected is logged in full
// and reported as a generic 500.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, engine.ClientMessage(err))
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, "Object not found")
	case errors.Is(err, storage.ErrRevisionNotFound):
		writeError(w, http.StatusNotFound, "Revision not found")
	case errors.Is(err, storage.ErrNoMappings):
		writeError(w, http.StatusNotFound, "No mappings found")
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Status:  types.StatusError,
		Message: message,
	})
}
