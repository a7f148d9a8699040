// Package types provides API request and response types.
package types

import "encoding/json"

// StatusOK is the status value carried by every success envelope.
const StatusOK = "OK"

// StatusError is the status value carried by every error envelope.
const StatusError = "ERROR"

// StoreResponse is the response for storing an object.
type StoreResponse struct {
	Status          string   `json:"status"`
	ClientID        string   `json:"client_id"`
	NamespaceID     string   `json:"namespace_id"`
	ObjectID        string   `json:"object_id"`
	RevisionID      string   `json:"revision_id"`
	NewVersion      bool     `json:"new_version"`
	Tags            []string `json:"tags,omitempty"`
	ObjectTimestamp string   `json:"object_timestamp"`
	Mid             string   `json:"_mid,omitempty"`
}

// RevisionInfo is one entry of a revision listing.
type RevisionInfo struct {
	RevisionID string `json:"revision_id"`
	Timestamp  string `json:"timestamp"`
}

// RetrieveResponse is the full response for retrieving an object. Handlers
// convert it to a map when a single property is requested.
type RetrieveResponse struct {
	Status          string          `json:"status"`
	ClientID        string          `json:"client_id"`
	NamespaceID     string          `json:"namespace_id"`
	ObjectID        string          `json:"object_id"`
	RevisionID      string          `json:"revision_id"`
	Object          json.RawMessage `json:"object"`
	ObjectTags      []string        `json:"object_tags"`
	ObjectTimestamp string          `json:"object_timestamp"`
	Revisions       []RevisionInfo  `json:"revisions,omitempty"`
	Mid             string          `json:"_mid,omitempty"`
}

// DeleteResponse is the response for deleting an object or revision.
type DeleteResponse struct {
	Status      string `json:"status"`
	ClientID    string `json:"client_id"`
	NamespaceID string `json:"namespace_id"`
	ObjectID    string `json:"object_id"`
	RevisionID  string `json:"revision_id,omitempty"`
	Mid         string `json:"_mid,omitempty"`
}

// RevisionsResponse is the response for listing an object's revisions.
type RevisionsResponse struct {
	Status      string         `json:"status"`
	ClientID    string         `json:"client_id"`
	NamespaceID string         `json:"namespace_id"`
	ObjectID    string         `json:"object_id"`
	Revisions   []RevisionInfo `json:"revisions"`
	Mid         string         `json:"_mid,omitempty"`
}

// TagsResponse is the response for tag operations.
type TagsResponse struct {
	Status      string   `json:"status"`
	ClientID    string   `json:"client_id"`
	NamespaceID string   `json:"namespace_id"`
	ObjectID    string   `json:"object_id"`
	Tags        []string `json:"tags"`
	Mid         string   `json:"_mid,omitempty"`
}

// QueryResponse is the response for listing object ids in a namespace.
type QueryResponse struct {
	Status      string   `json:"status"`
	ClientID    string   `json:"client_id"`
	NamespaceID string   `json:"namespace_id"`
	Tag         string   `json:"tag,omitempty"`
	ObjectIDs   []string `json:"object_ids"`
	Mid         string   `json:"_mid,omitempty"`
}

// ClearResponse is the response for clearing a namespace.
type ClearResponse struct {
	Status      string   `json:"status"`
	ClientID    string   `json:"client_id"`
	NamespaceID string   `json:"namespace_id"`
	Tags        []string `json:"tags,omitempty"`
	Mid         string   `json:"_mid,omitempty"`
}

// Mapping is one row of the mappings listing.
type Mapping struct {
	ClientID       string `json:"client_id"`
	NamespaceID    string `json:"namespace_id"`
	IdentifierName string `json:"identifier_name"`
	Timestamp      string `json:"timestamp"`
}

// MappingsResponse is the response for listing mappings.
type MappingsResponse struct {
	Status      string    `json:"status"`
	ClientID    string    `json:"client_id"`
	NamespaceID string    `json:"namespace_id,omitempty"`
	Mappings    []Mapping `json:"mappings"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StatusResponse is the response for the liveness endpoint.
type StatusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// IdentityResponse is the response for the service index.
type IdentityResponse struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}
