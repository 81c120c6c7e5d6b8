package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

var practitionerDirectFields = []string{
	"identifier", "active", "name", "telecom", "address", "gender",
	"birthDate", "photo", "qualification", "communication",
}

type practitionerTransformer struct{}

func init() { Register(practitionerTransformer{}) }

func (practitionerTransformer) ResourceType() string { return "Practitioner" }

func (t practitionerTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "text", "contained")
	copyFields(r4, stu3, practitionerDirectFields...)
	return cleanDocument(stu3)
}
