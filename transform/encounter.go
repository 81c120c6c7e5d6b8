package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

const commentExtensionURL = "http://nictiz.nl/fhir/StructureDefinition/ext-Comment"

var encounterDirectFields = []string{
	"identifier", "status", "class", "type", "priority", "subject",
	"episodeOfCare", "incomingReferral", "participant", "appointment",
	"period", "length", "serviceProvider", "partOf",
}

type encounterTransformer struct{}

func init() { Register(encounterTransformer{}) }

func (encounterTransformer) ResourceType() string { return "Encounter" }

func (t encounterTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "implicitRules", "language", "text")
	copyFields(r4, stu3, encounterDirectFields...)

	if reasons, ok := asSlice(r4["reasonCode"]); ok {
		stu3["reason"] = t.transformReasons(reasons)
	}
	if refs, ok := asSlice(r4["reasonReference"]); ok {
		stu3["diagnosis"] = t.transformDiagnosis(refs)
	}
	if hosp, ok := asMap(r4["hospitalization"]); ok {
		stu3["hospitalization"] = copyMap(hosp)
	}
	if locations, ok := asSlice(r4["location"]); ok {
		stu3["location"] = t.transformLocations(locations)
	}
	copyFields(r4, stu3, "extension")

	return cleanDocument(stu3)
}

// transformReasons maps reasonCode to reason, dropping the comment extension
// the STU3 profile does not carry on it.
func (t encounterTransformer) transformReasons(reasons []interface{}) []interface{} {
	out := make([]interface{}, 0, len(reasons))
	for _, r := range reasons {
		reason, ok := asMap(r)
		if !ok {
			out = append(out, r)
			continue
		}
		out = append(out, dropCommentExtension(reason))
	}
	return out
}

func (t encounterTransformer) transformDiagnosis(refs []interface{}) []interface{} {
	out := make([]interface{}, 0, len(refs))
	for _, r := range refs {
		condition := r
		if ref, ok := asMap(r); ok {
			condition = dropCommentExtension(ref)
		}
		out = append(out, map[string]interface{}{"condition": condition})
	}
	return out
}

// transformLocations keeps the location entry fields STU3 knows; the R4
// physicalType is dropped.
func (t encounterTransformer) transformLocations(locations []interface{}) []interface{} {
	out := make([]interface{}, 0, len(locations))
	for _, l := range locations {
		entry := map[string]interface{}{}
		if location, ok := asMap(l); ok {
			for _, f := range []string{"location", "status", "period"} {
				if v, ok := location[f]; ok {
					entry[f] = v
				}
			}
		}
		out = append(out, entry)
	}
	return out
}

// dropCommentExtension returns a copy without ext-Comment entries, removing
// the extension array entirely when nothing is left.
func dropCommentExtension(obj map[string]interface{}) map[string]interface{} {
	exts, ok := asSlice(obj["extension"])
	if !ok {
		return obj
	}
	kept := make([]interface{}, 0, len(exts))
	for _, e := range exts {
		if ext, ok := asMap(e); ok && getString(ext, "url") == commentExtensionURL {
			continue
		}
		kept = append(kept, e)
	}
	out := copyMap(obj)
	if len(kept) > 0 {
		out["extension"] = kept
	} else {
		delete(out, "extension")
	}
	return out
}
