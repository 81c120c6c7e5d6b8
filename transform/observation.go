package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// Observation.value[x] kinds in precedence order; the first one present is
// copied. Components use the narrower STU3 list, which carries no boolean or
// integer kind.
var observationValueFields = []string{
	"valueQuantity", "valueCodeableConcept", "valueString", "valueBoolean",
	"valueInteger", "valueRange", "valueRatio", "valueSampledData",
	"valueTime", "valueDateTime", "valuePeriod",
}

var observationComponentValueFields = []string{
	"valueQuantity", "valueCodeableConcept", "valueString", "valueRange",
	"valueRatio", "valueSampledData", "valueTime", "valueDateTime",
	"valuePeriod",
}

// R4 dropped Observation.related; documents round-tripped from STU3 carry
// the relationship kinds in these compatibility extensions.
var observationRelatedExtensions = map[string]string{
	"http://hl7.org/fhir/3.0/StructureDefinition/Observation.sequelTo":     "sequel-to",
	"http://hl7.org/fhir/3.0/StructureDefinition/Observation.replaces":     "replaces",
	"http://hl7.org/fhir/3.0/StructureDefinition/Observation.qualifiedBy":  "qualified-by",
	"http://hl7.org/fhir/3.0/StructureDefinition/Observation.interferedBy": "interfered-by",
}

var observationDirectFields = []string{
	"identifier", "basedOn", "status", "category", "code", "subject",
	"effectiveDateTime", "effectivePeriod", "issued", "performer",
	"dataAbsentReason", "interpretation", "bodySite", "method", "specimen",
	"device", "referenceRange",
}

type observationTransformer struct{}

func init() { Register(observationTransformer{}) }

func (observationTransformer) ResourceType() string { return "Observation" }

func (t observationTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "text", "contained")

	if enc, ok := r4["encounter"]; ok {
		stu3["context"] = enc
	}
	for _, f := range observationValueFields {
		if v, ok := r4[f]; ok {
			stu3[f] = v
			break
		}
	}

	// STU3 has a single comment field instead of the note array.
	if notes, ok := asSlice(r4["note"]); ok && len(notes) > 0 {
		switch note := notes[0].(type) {
		case map[string]interface{}:
			if text, ok := note["text"]; ok {
				stu3["comment"] = text
			}
		case string:
			stu3["comment"] = note
		}
	}

	if related := t.relatedEntries(r4); len(related) > 0 {
		stu3["related"] = related
	}
	if comps := t.transformComponents(r4); len(comps) > 0 {
		stu3["component"] = comps
	}
	copyFields(r4, stu3, observationDirectFields...)

	return cleanDocument(stu3)
}

// relatedEntries folds hasMember, derivedFrom and the compatibility
// extensions into the STU3 related array.
func (t observationTransformer) relatedEntries(r4 fhir.Resource) []interface{} {
	var related []interface{}
	if members, ok := asSlice(r4["hasMember"]); ok {
		for _, m := range members {
			related = append(related, map[string]interface{}{"type": "has-member", "target": m})
		}
	}
	if derived, ok := asSlice(r4["derivedFrom"]); ok {
		for _, d := range derived {
			related = append(related, map[string]interface{}{"type": "derived-from", "target": d})
		}
	}
	if exts, ok := asSlice(r4["extension"]); ok {
		for _, e := range exts {
			ext, ok := asMap(e)
			if !ok {
				continue
			}
			relType, found := observationRelatedExtensions[getString(ext, "url")]
			if !found {
				continue
			}
			if target, ok := ext["valueReference"]; ok {
				related = append(related, map[string]interface{}{"type": relType, "target": target})
			}
		}
	}
	return related
}

func (t observationTransformer) transformComponents(r4 fhir.Resource) []interface{} {
	comps, ok := asSlice(r4["component"])
	if !ok {
		return nil
	}
	out := make([]interface{}, 0, len(comps))
	for _, c := range comps {
		comp, ok := asMap(c)
		if !ok {
			continue
		}
		entry := map[string]interface{}{}
		for _, f := range []string{"code", "dataAbsentReason", "interpretation", "referenceRange"} {
			if v, ok := comp[f]; ok {
				entry[f] = v
			}
		}
		for _, f := range observationComponentValueFields {
			if v, ok := comp[f]; ok {
				entry[f] = v
				break
			}
		}
		out = append(out, entry)
	}
	return out
}
