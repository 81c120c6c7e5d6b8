package questionnaire

import (
	"regexp"
	"strings"
)

// Recognized display prefixes, tried in order: a single letter with a
// closing paren, digits with a dot, bare digits followed by whitespace,
// digits with a closing paren.
var prefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^([a-zA-Z]\))\s*(.*)$`),
	regexp.MustCompile(`^(\d+\.)\s*(.*)$`),
	regexp.MustCompile(`^(\d+)\s+(.*)$`),
	regexp.MustCompile(`^(\d+\))\s*(.*)$`),
}

// splitPrefix splits a recognized display prefix off the start of an item
// text. The prefix keeps its punctuation but not the separating whitespace;
// an empty prefix means the text carries none.
func splitPrefix(text string) (prefix, rest string) {
	if strings.TrimSpace(text) == "" {
		return "", text
	}
	for _, p := range prefixPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return m[1], m[2]
		}
	}
	return "", text
}

// populateItems moves recognized prefixes from item text into the prefix
// element, recursively through nested item arrays. Returns the number of
// items changed.
func populateItems(items []interface{}) int {
	changed := 0
	for _, it := range items {
		item, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if text, ok := item["text"].(string); ok {
			if prefix, rest := splitPrefix(text); prefix != "" {
				item["prefix"] = prefix
				item["text"] = rest
				changed++
			}
		}
		if children, ok := item["item"].([]interface{}); ok {
			changed += populateItems(children)
		}
	}
	return changed
}

// stripItems removes recognized prefixes from item text, recursively.
// Responses carry no prefix element, so the prefix is dropped outright.
func stripItems(items []interface{}) int {
	changed := 0
	for _, it := range items {
		item, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if text, ok := item["text"].(string); ok {
			if prefix, rest := splitPrefix(text); prefix != "" {
				item["text"] = rest
				changed++
			}
		}
		if children, ok := item["item"].([]interface{}); ok {
			changed += stripItems(children)
		}
	}
	return changed
}
