package mappings

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// profile is one scanned StructureDefinition and the element mappings its
// differential declares, in declaration order.
type profile struct {
	fileName     string
	name         string
	id           string
	resourceType string
	datasetName  string
	datasetURI   string
	elements     []elementMapping
}

// elementMapping ties one differential element to a dataset concept id.
type elementMapping struct {
	elementID string
	conceptID string
}

// scanProfiles reads every StructureDefinition-*.json file under dir in
// filename order. Files that are not structure definitions or do not parse
// are recorded as MAP003 diagnostics; a profile without a mapping
// declaration for identity is recorded as MAP001, its elements kept. The
// returned count is the number of files matched, including skipped ones.
func scanProfiles(dir, identity string, logger *zap.Logger) ([]*profile, int, []fhir.Diagnostic, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("resources directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, 0, nil, fmt.Errorf("resources path %s is not a directory", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "StructureDefinition-*.json"))
	if err != nil {
		return nil, 0, nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(matches)

	var (
		profiles []*profile
		diags    []fhir.Diagnostic
	)
	for _, path := range matches {
		name := filepath.Base(path)

		typ, _, err := fhir.SniffFile(path)
		if err != nil {
			diags = append(diags, badDefinition(name, err.Error()))
			continue
		}
		if typ != "" && typ != "StructureDefinition" {
			diags = append(diags, badDefinition(name, fmt.Sprintf("document is a %s, not a StructureDefinition", typ)))
			continue
		}

		doc, err := fhir.ReadFile(path)
		if err != nil {
			diags = append(diags, badDefinition(name, err.Error()))
			continue
		}
		if doc.Type() != "StructureDefinition" {
			diags = append(diags, badDefinition(name, "document declares no StructureDefinition resourceType"))
			continue
		}

		p, declared := parseProfile(name, doc, identity)
		if !declared {
			diags = append(diags, fhir.Diagnostic{
				Stage:        "mappings",
				Code:         fhir.CodeNoDeclaration,
				Message:      fmt.Sprintf("profile declares no %s mapping", identity),
				File:         name,
				ResourceType: p.resourceType,
				ResourceID:   p.id,
				Severity:     fhir.Warning,
			})
		}
		profiles = append(profiles, p)
		logger.Debug("scanned structure definition",
			zap.String("file", name),
			zap.String("profile", p.name),
			zap.Int("mappings", len(p.elements)))
	}
	return profiles, len(matches), diags, nil
}

func badDefinition(file, message string) fhir.Diagnostic {
	return fhir.Diagnostic{
		Stage:    "mappings",
		Code:     fhir.CodeBadDefinition,
		Message:  message,
		File:     file,
		Severity: fhir.Warning,
	}
}

// parseProfile extracts the profile identity, its dataset declaration and
// every differential element mapping that carries a concept id. The second
// return value reports whether the declaration for identity was present.
func parseProfile(fileName string, doc fhir.Resource, identity string) (*profile, bool) {
	m := map[string]interface{}(doc)

	p := &profile{fileName: fileName}
	p.name = getString(m, "name")
	if p.name == "" {
		p.name = strings.TrimSuffix(fileName, ".json")
	}
	p.id = getString(m, "id")
	if p.id == "" {
		p.id = p.name
	}
	p.resourceType = getString(m, "type")
	if p.resourceType == "" {
		p.resourceType = "Unknown"
	}

	declared := false
	if decls, ok := asSlice(m["mapping"]); ok {
		for _, d := range decls {
			decl, ok := asMap(d)
			if !ok || getString(decl, "identity") != identity {
				continue
			}
			p.datasetName = getString(decl, "name")
			p.datasetURI = getString(decl, "uri")
			declared = true
			break
		}
	}

	differential, _ := asMap(m["differential"])
	elements, _ := asSlice(differential["element"])
	for _, e := range elements {
		el, ok := asMap(e)
		if !ok {
			continue
		}
		elementID := getString(el, "id")
		entries, ok := asSlice(el["mapping"])
		if !ok {
			continue
		}
		for _, entry := range entries {
			mapping, ok := asMap(entry)
			if !ok {
				continue
			}
			conceptID := conceptIDFromMap(getString(mapping, "map"))
			if conceptID == "" {
				continue
			}
			p.elements = append(p.elements, elementMapping{elementID: elementID, conceptID: conceptID})
		}
	}
	return p, declared
}

// conceptIDFromMap pulls a dataset concept id out of a mapping's map value:
// the whole value when it is all digits, the first token of an
// "id description" value, or the first token of a leading quoted segment.
// Anything else is not a dataset mapping and yields an empty id.
func conceptIDFromMap(value string) string {
	if allDigits(value) {
		return value
	}
	if strings.Contains(value, " ") {
		if fields := strings.Fields(value); len(fields) > 0 && allDigits(fields[0]) {
			return fields[0]
		}
	}
	if strings.HasPrefix(value, `"`) {
		if end := strings.Index(value[1:], `"`); end >= 0 {
			if fields := strings.Fields(value[1 : 1+end]); len(fields) > 0 && allDigits(fields[0]) {
				return fields[0]
			}
		}
	}
	return ""
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
