// Package fhir provides the generic FHIR document model shared by the
// PZP tooling: resources as JSON trees, identity handling, canonical
// encoding, and the diagnostic types accumulated during batch runs.
package fhir

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/buger/jsonparser"
)

// Resource is a FHIR resource document as a generic JSON tree.
// Transformations never mutate a parsed resource; they build new trees.
type Resource map[string]interface{}

// Type returns the declared resourceType, or "" when absent.
func (r Resource) Type() string {
	t, _ := r["resourceType"].(string)
	return t
}

// ID returns the resource id, or "" when absent.
func (r Resource) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Ref returns the local literal reference "Type/id" for this resource,
// or "" when either part is missing.
func (r Resource) Ref() string {
	t, id := r.Type(), r.ID()
	if t == "" || id == "" {
		return ""
	}
	return t + "/" + id
}

// Parse decodes a resource document from JSON bytes.
func Parse(data []byte) (Resource, error) {
	var r Resource
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid resource document: %w", err)
	}
	return r, nil
}

// ReadFile reads and decodes a resource document from disk.
func ReadFile(path string) (Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// SniffIdentity extracts resourceType and id from raw JSON without a
// full parse. Missing or non-string fields yield empty strings.
func SniffIdentity(data []byte) (resourceType, id string) {
	resourceType, _ = jsonparser.GetString(data, "resourceType")
	id, _ = jsonparser.GetString(data, "id")
	return resourceType, id
}

// SniffFile reads only as much of the file as needed to identify it.
// The whole file is read; only the two identity fields are decoded.
func SniffFile(path string) (resourceType, id string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	resourceType, id = SniffIdentity(data)
	return resourceType, id, nil
}
