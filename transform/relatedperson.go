package transform

import (
	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

var relatedPersonDirectFields = []string{
	"identifier", "active", "patient", "name", "telecom", "gender",
	"birthDate", "address", "photo", "period",
}

type relatedPersonTransformer struct{}

func init() { Register(relatedPersonTransformer{}) }

func (relatedPersonTransformer) ResourceType() string { return "RelatedPerson" }

func (t relatedPersonTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "text", "contained")
	copyFields(r4, stu3, relatedPersonDirectFields...)

	// STU3 narrows relationship from 0..* to 0..1.
	switch rel := r4["relationship"].(type) {
	case []interface{}:
		if len(rel) > 0 {
			if len(rel) > 1 {
				rc.Logger.Warn("dropping extra relationship entries",
					zap.String("id", r4.ID()),
					zap.Int("dropped", len(rel)-1))
			}
			stu3["relationship"] = rel[0]
		}
	case map[string]interface{}:
		stu3["relationship"] = rel
	}

	return cleanDocument(stu3)
}
