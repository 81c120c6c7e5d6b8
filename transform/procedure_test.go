package transform

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcedure_StatusMapping(t *testing.T) {
	tests := []struct {
		r4   string
		stu3 string
	}{
		{"preparation", "preparation"},
		{"in-progress", "in-progress"},
		{"on-hold", "suspended"},
		{"stopped", "aborted"},
		{"aborted", "stopped"},
		{"completed", "completed"},
		{"entered-in-error", "entered-in-error"},
		{"unknown", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.r4, func(t *testing.T) {
			stu3 := transformDoc(t, procedureTransformer{}, fmt.Sprintf(`{
				"resourceType": "Procedure",
				"id": "p-1",
				"status": %q
			}`, tt.r4))
			assert.Equal(t, tt.stu3, stu3["status"])
		})
	}
}

func TestProcedure_NotDone(t *testing.T) {
	stu3 := transformDoc(t, procedureTransformer{}, `{
		"resourceType": "Procedure",
		"id": "p-2",
		"status": "not-done",
		"statusReason": {"coding": [{"system": "http://snomed.info/sct", "code": "182895007"}]}
	}`)

	assert.Equal(t, "suspended", stu3["status"])
	assert.Equal(t, true, stu3["notDone"])
	reason, ok := asMap(stu3["notDoneReason"])
	require.True(t, ok)
	assert.True(t, hasCoding(reason, snomedSystem, "182895007"))
}

func TestProcedure_EncounterBecomesContext(t *testing.T) {
	stu3 := transformDoc(t, procedureTransformer{}, `{
		"resourceType": "Procedure",
		"id": "p-3",
		"status": "completed",
		"encounter": {"reference": "Encounter/e-1", "type": "Encounter"}
	}`)

	context, ok := asMap(stu3["context"])
	require.True(t, ok)
	assert.Equal(t, "Encounter/e-1", context["reference"])
	assert.NotContains(t, context, "type")
	assert.NotContains(t, stu3, "encounter")
}

func TestProcedure_PerformerFiltering(t *testing.T) {
	stu3 := transformDoc(t, procedureTransformer{}, `{
		"resourceType": "Procedure",
		"id": "p-4",
		"status": "completed",
		"performer": [
			{
				"function": {"coding": [{"code": "PRF"}]},
				"actor": {"reference": "Practitioner/p-10"},
				"onBehalfOf": {"reference": "Organization/o-1"}
			},
			{"actor": {"reference": "PractitionerRole/pr-01"}},
			{"actor": {"reference": "Organization/o-2"}}
		]
	}`)

	performers, ok := asSlice(stu3["performer"])
	require.True(t, ok)
	require.Len(t, performers, 2, "organization actors cannot be expressed in STU3")

	first := performers[0].(map[string]interface{})
	assert.NotContains(t, first, "function")
	role, ok := asMap(first["role"])
	require.True(t, ok)
	assert.NotNil(t, role["coding"])
	assert.Equal(t, "Organization/o-1", first["onBehalfOf"].(map[string]interface{})["reference"])
}

func TestProcedure_ConsultationCategoryForACP(t *testing.T) {
	stu3 := transformDoc(t, procedureTransformer{}, `{
		"resourceType": "Procedure",
		"id": "p-5",
		"status": "completed",
		"code": {"coding": [{"system": "http://snomed.info/sct", "code": "713603004"}]}
	}`)

	category, ok := asMap(stu3["category"])
	require.True(t, ok)
	assert.True(t, hasCoding(category, snomedSystem, "11429006"))

	coding := category["coding"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Consultation (procedure)", coding["display"])
}

func TestProcedure_ConsultationCategoryNotDuplicated(t *testing.T) {
	stu3 := transformDoc(t, procedureTransformer{}, `{
		"resourceType": "Procedure",
		"id": "p-6",
		"status": "completed",
		"code": {"coding": [{"system": "http://snomed.info/sct", "code": "713603004"}]},
		"category": {"coding": [{"system": "http://snomed.info/sct", "code": "11429006"}]}
	}`)

	category, ok := asMap(stu3["category"])
	require.True(t, ok)
	assert.Len(t, category["coding"].([]interface{}), 1)
}

func TestProcedure_CategoryUntouchedForOtherCodes(t *testing.T) {
	stu3 := transformDoc(t, procedureTransformer{}, `{
		"resourceType": "Procedure",
		"id": "p-7",
		"status": "completed",
		"code": {"coding": [{"system": "http://snomed.info/sct", "code": "387713003"}]}
	}`)

	assert.NotContains(t, stu3, "category")
}

func TestProcedure_BodySiteLaterality(t *testing.T) {
	stu3 := transformDoc(t, procedureTransformer{}, `{
		"resourceType": "Procedure",
		"id": "p-8",
		"status": "completed",
		"bodySite": [{
			"coding": [{"system": "http://snomed.info/sct", "code": "51185008"}],
			"extension": [{
				"url": "http://nictiz.nl/fhir/StructureDefinition/ext-AnatomicalLocation.Laterality",
				"valueCodeableConcept": {"coding": [{"code": "7771000"}]}
			}]
		}]
	}`)

	bodySite := stu3["bodySite"].([]interface{})[0].(map[string]interface{})
	ext := bodySite["extension"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, bodySiteQualifierURL, ext["url"])
}

func TestProcedure_MethodExtensionRenamed(t *testing.T) {
	stu3 := transformDoc(t, procedureTransformer{}, `{
		"resourceType": "Procedure",
		"id": "p-9",
		"status": "completed",
		"extension": [{
			"url": "http://nictiz.nl/fhir/StructureDefinition/ext-Procedure.ProcedureMethod",
			"valueCodeableConcept": {"coding": [{"code": "129284003"}]}
		}]
	}`)

	method := extensionByURL(t, stu3, "http://hl7.org/fhir/StructureDefinition/procedure-method")
	assert.NotNil(t, method["valueCodeableConcept"])
}
