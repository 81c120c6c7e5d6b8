package mappings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// conceptOIDPrefix anchors dataset concept ids. A concept appears in the
// dataset table when its id extends this prefix by a single dot-free
// segment; that segment is the id the element mappings refer to.
const conceptOIDPrefix = "2.16.840.1.113883.2.4.3.11.60.117.2."

// Concept is one leaf element of the dataset definition, in document order.
// Depth counts concept nesting levels below the dataset root.
type Concept struct {
	ID    string
	Name  string
	Depth int
}

// loadConcepts reads the dataset definition and extracts the concepts under
// the root concept whose shortName matches identity. A missing root yields
// an empty list; an unreadable or invalid file yields an error.
func loadConcepts(path, identity string, logger *zap.Logger) ([]Concept, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	root := findRootConcept(doc, identity)
	if root == nil {
		logger.Warn("dataset root concept not found",
			zap.String("short_name", identity),
			zap.String("file", filepath.Base(path)))
		return nil, nil
	}

	var concepts []Concept
	walkConcepts(root, 0, func(c map[string]interface{}, depth int) {
		id := getString(c, "id")
		if !strings.HasPrefix(id, conceptOIDPrefix) {
			return
		}
		suffix := id[len(conceptOIDPrefix):]
		if strings.Contains(suffix, ".") {
			return
		}
		name := dutchName(c)
		if name == "" {
			return
		}
		concepts = append(concepts, Concept{ID: suffix, Name: name, Depth: depth})
	})

	logger.Debug("dataset concepts extracted",
		zap.String("file", filepath.Base(path)),
		zap.Int("concepts", len(concepts)))
	return concepts, nil
}

// walkConcepts visits every entry of the node's nested concept arrays in
// document order. The node itself is not visited; its direct children are
// reported at the given depth.
func walkConcepts(node map[string]interface{}, depth int, visit func(map[string]interface{}, int)) {
	children, ok := node["concept"].([]interface{})
	if !ok {
		return
	}
	for _, child := range children {
		c, ok := child.(map[string]interface{})
		if !ok {
			continue
		}
		visit(c, depth)
		walkConcepts(c, depth+1, visit)
	}
}

// findRootConcept returns the first concept, in document order, whose
// shortName matches.
func findRootConcept(doc map[string]interface{}, shortName string) map[string]interface{} {
	var found map[string]interface{}
	walkConcepts(doc, 0, func(c map[string]interface{}, _ int) {
		if found == nil && getString(c, "shortName") == shortName {
			found = c
		}
	})
	return found
}

// dutchName returns the concept's nl-NL display name.
func dutchName(c map[string]interface{}) string {
	names, ok := c["name"].([]interface{})
	if !ok {
		return ""
	}
	for _, n := range names {
		m, ok := n.(map[string]interface{})
		if !ok {
			continue
		}
		if getString(m, "language") == "nl-NL" {
			return getString(m, "#text")
		}
	}
	return ""
}
