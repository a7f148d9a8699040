package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/awagdata/objectstore/internal/auth"
	"github.com/awagdata/objectstore/internal/engine"
	"github.com/awagdata/objectstore/internal/ident"
)

// clientID returns the authenticated client id placed in the request
// context by the auth middleware.
func clientID(r *http.Request) string {
	return auth.ClientID(r.Context())
}

// namespaceParam returns the namespace path segment.
func namespaceParam(r *http.Request) string {
	return chi.URLParam(r, "ns")
}

// objectIDParam returns the object id from the path, falling back to the
// object_id query parameter. Empty when the caller wants a minted id.
func objectIDParam(r *http.Request) string {
	if id := chi.URLParam(r, "object_id"); id != "" {
		return id
	}
	return r.URL.Query().Get("object_id")
}

// propParam returns the optional property path segment.
func propParam(r *http.Request) string {
	return chi.URLParam(r, "prop")
}

// tagsParam parses the tags query parameter: a comma-separated string or a
// JSON array. A missing parameter yields nil.
func tagsParam(r *http.Request) ([]string, error) {
	tags, err := ident.ParseList(r.URL.Query().Get("tags"))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", engine.ErrInvalidArgument, err)
	}
	return tags, nil
}

// validNames checks each value against the allowed-character rule. Empty
// values pass; optional parameters validate the same way as required ones.
func validNames(vals ...string) error {
	for _, v := range vals {
		if !ident.IsValidName(v) {
			return fmt.Errorf("%w: Invalid string found: %s", engine.ErrInvalidArgument, v)
		}
	}
	return nil
}
