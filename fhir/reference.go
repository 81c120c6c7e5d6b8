package fhir

import "strings"

// ParseReference splits a local literal reference of the form "Type/id".
// Absolute URLs, fragments, and anything without exactly one separator
// are rejected.
func ParseReference(ref string) (resourceType, id string, ok bool) {
	if ref == "" || strings.Contains(ref, "://") || strings.HasPrefix(ref, "#") {
		return "", "", false
	}
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", false
	}
	return parts[0], parts[1], true
}
