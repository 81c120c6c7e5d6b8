package fhir

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
)

// leadKeys is the FHIR-conventional order for the leading document keys.
// Remaining keys are emitted in sorted order so encoding is deterministic.
var leadKeys = []string{"resourceType", "id", "meta", "implicitRules", "language", "text"}

// MarshalJSON emits the document with resourceType and the other common
// header fields first. Nested values use the standard encoding.
func (r Resource) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	written := 0
	writeEntry := func(key string, value interface{}) error {
		if written > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := encodeValue(key)
		if err != nil {
			return err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valueJSON, err := encodeValue(value)
		if err != nil {
			return err
		}
		buf.Write(valueJSON)
		written++
		return nil
	}

	for _, key := range leadKeys {
		if value, ok := r[key]; ok {
			if err := writeEntry(key, value); err != nil {
				return nil, err
			}
		}
	}

	rest := make([]string, 0, len(r))
	for key := range r {
		if !isLeadKey(key) {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := writeEntry(key, r[key]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func isLeadKey(key string) bool {
	for _, lead := range leadKeys {
		if key == lead {
			return true
		}
	}
	return false
}

// encodeValue marshals without HTML escaping so URLs and display text
// round-trip unchanged.
func encodeValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Encode renders the document as two-space-indented JSON with a trailing
// newline. Output bytes are deterministic for identical documents.
func (r Resource) Encode() ([]byte, error) {
	compact, err := encodeValue(r)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// WriteFile encodes the document and writes it to path.
func WriteFile(path string, r Resource) error {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
