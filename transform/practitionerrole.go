package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

var practitionerRoleDirectFields = []string{
	"identifier", "active", "period", "practitioner", "organization",
	"code", "specialty", "location", "healthcareService", "telecom",
	"availabilityExceptions", "endpoint",
}

type practitionerRoleTransformer struct{}

func init() { Register(practitionerRoleTransformer{}) }

func (practitionerRoleTransformer) ResourceType() string { return "PractitionerRole" }

func (t practitionerRoleTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "text", "contained")
	copyFields(r4, stu3, practitionerRoleDirectFields...)

	if entries := filterEntries(r4["availableTime"], "daysOfWeek", "allDay", "availableStartTime", "availableEndTime"); entries != nil {
		stu3["availableTime"] = entries
	}
	if entries := filterEntries(r4["notAvailable"], "description", "during"); entries != nil {
		stu3["notAvailable"] = entries
	}

	return cleanDocument(stu3)
}

// filterEntries rebuilds an array of objects keeping only the named fields.
func filterEntries(v interface{}, fields ...string) []interface{} {
	entries, ok := asSlice(v)
	if !ok {
		return nil
	}
	out := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		entry := map[string]interface{}{}
		if src, ok := asMap(e); ok {
			for _, f := range fields {
				if val, ok := src[f]; ok {
					entry[f] = val
				}
			}
		}
		out = append(out, entry)
	}
	return out
}
