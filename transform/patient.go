package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// Patient needs almost no structural work; the incompatible R4 extension is
// dropped by the global extension pass.
var patientDirectFields = []string{
	"identifier", "active", "name", "telecom", "gender", "birthDate",
	"deceasedBoolean", "deceasedDateTime", "address", "maritalStatus",
	"multipleBirthBoolean", "multipleBirthInteger", "photo", "contact",
	"communication", "generalPractitioner", "managingOrganization", "link",
	"extension",
}

type patientTransformer struct{}

func init() { Register(patientTransformer{}) }

func (patientTransformer) ResourceType() string { return "Patient" }

func (t patientTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "text", "contained")
	copyFields(r4, stu3, patientDirectFields...)
	return cleanDocument(stu3)
}
