package mappings

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// mappingRef is one extracted element mapping, flattened for rendering.
type mappingRef struct {
	resourceType string
	profileName  string
	profileID    string
	elementID    string
}

func (m mappingRef) resourceDisplay() string {
	return fmt.Sprintf(`%s (<a href="StructureDefinition-%s.html">%s</a>)`, m.resourceType, m.profileID, m.profileName)
}

// collectMappings flattens the scanned profiles into a concept-id index.
// Refs for a given id keep scan order: profiles by filename, elements by
// declaration order. The second return value is the total entry count.
func collectMappings(profiles []*profile) (map[string][]mappingRef, int) {
	byConcept := make(map[string][]mappingRef)
	total := 0
	for _, p := range profiles {
		for _, el := range p.elements {
			byConcept[el.conceptID] = append(byConcept[el.conceptID], mappingRef{
				resourceType: p.resourceType,
				profileName:  p.name,
				profileID:    p.id,
				elementID:    el.elementID,
			})
			total++
		}
	}
	return byConcept, total
}

// renderInput carries everything the Markdown document is built from.
// withDataset is false when the dataset definition could not be loaded;
// the dataset table and the develop sections are then omitted.
type renderInput struct {
	profiles    []*profile
	byConcept   map[string][]mappingRef
	concepts    []Concept
	withDataset bool
	mode        string
	ignore      map[string]bool
}

// renderStats summarizes dataset coverage: distinct concept ids carrying a
// mapping, concepts without one (ignore list excluded), and extracted ids
// absent from the dataset.
type renderStats struct {
	mapped   int
	unmapped int
	orphans  int
}

// render builds the Markdown artifact: the dataset-id table, one table per
// profile, and in develop mode the unmapped, orphan and summary sections.
func render(in renderInput) ([]byte, renderStats) {
	var (
		w         bytes.Buffer
		stats     renderStats
		unmapped  []Concept
		orphanIDs []string
	)

	if in.withDataset {
		orphanIDs = orphans(in.byConcept, in.concepts)
		stats.orphans = len(orphanIDs)

		w.WriteString("#### Mappings by dataset ID\n\n")
		w.WriteString("This table provides an overview of all zib2017 dataset elements that are mapped to STU3 FHIR profiles in this implementation guide.\n\n")
		w.WriteString("| ID | Dataset name | Resource | FHIR element |\n")
		w.WriteString("|---|---|---|---|\n")

		mapped := make(map[string]bool)
		rows := 0
		for _, c := range in.concepts {
			refs, ok := in.byConcept[c.ID]
			if !ok {
				if !in.ignore[c.ID] {
					unmapped = append(unmapped, c)
				}
				continue
			}
			name := strings.Repeat("&emsp;", c.Depth) + c.Name
			for _, ref := range refs {
				fmt.Fprintf(&w, "| %s | %s | %s | `%s`  |\n", c.ID, name, ref.resourceDisplay(), ref.elementID)
				rows++
			}
			mapped[c.ID] = true
		}
		if rows == 0 {
			w.WriteString("| | No mappings were found matching the JSON dataset. | | |\n")
		}
		stats.mapped = len(mapped)
		stats.unmapped = len(unmapped)
		w.WriteString("\n")
	}

	w.WriteString("#### Mappings by profile\n")
	for _, p := range in.profiles {
		if len(p.elements) == 0 {
			continue
		}
		fmt.Fprintf(&w, "\n##### %s\n\n", p.name)
		w.WriteString("| Element | Dataset ID | Dataset |\n")
		w.WriteString("|---|---|---|\n")
		for _, el := range p.elements {
			fmt.Fprintf(&w, "| `%s` | %s | %s |\n", el.elementID, el.conceptID, p.datasetName)
		}
	}

	if in.withDataset && in.mode == ModeDevelop {
		w.WriteString("\n\n##### Overview of Unmapped Elements\n\n")
		if len(unmapped) > 0 {
			w.WriteString("| ID | Name |\n")
			w.WriteString("|---|---|\n")
			for _, c := range unmapped {
				fmt.Fprintf(&w, "| %s | %s |\n", c.ID, c.Name)
			}
		} else {
			w.WriteString("All relevant elements from the JSON dataset are mapped or ignored.\n")
		}

		w.WriteString("\n\n##### Overview of Orphan Mappings\n\n")
		if len(orphanIDs) > 0 {
			w.WriteString("| ID | Resource | FHIR element |\n")
			w.WriteString("|---|---|---|\n")
			for _, id := range orphanIDs {
				for _, ref := range in.byConcept[id] {
					fmt.Fprintf(&w, "| %s | %s | `%s` |\n", id, ref.resourceDisplay(), ref.elementID)
				}
			}
		} else {
			w.WriteString("No orphan mappings found (all mappings in StructureDefinition files correspond to an ID in the JSON dataset).\n")
		}

		w.WriteString("\n\n##### Summary\n\n")
		coverage := 0.0
		if len(in.concepts) > 0 {
			coverage = float64(stats.mapped) / float64(len(in.concepts)) * 100
		}
		fmt.Fprintf(&w, "- **Total zib2017 concepts**: %d\n", len(in.concepts))
		fmt.Fprintf(&w, "- **Mapped to STU3**: %d\n", stats.mapped)
		fmt.Fprintf(&w, "- **Coverage**: %.1f%%\n", coverage)
		fmt.Fprintf(&w, "- **Unmapped**: %d\n", stats.unmapped)
		fmt.Fprintf(&w, "- **Orphan mappings**: %d\n", stats.orphans)
	}

	return w.Bytes(), stats
}

// orphans returns the extracted concept ids that do not appear in the
// dataset, sorted lexically.
func orphans(byConcept map[string][]mappingRef, concepts []Concept) []string {
	known := make(map[string]bool, len(concepts))
	for _, c := range concepts {
		known[c.ID] = true
	}
	var ids []string
	for id := range byConcept {
		if !known[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
