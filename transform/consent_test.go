package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

func transformDoc(t *testing.T, tr Transformer, doc string) fhir.Resource {
	t.Helper()
	res, err := fhir.Parse([]byte(doc))
	require.NoError(t, err)
	return tr.Transform(res, NewContext(nil, nil))
}

func extensionByURL(t *testing.T, res fhir.Resource, url string) map[string]interface{} {
	t.Helper()
	exts, ok := asSlice(res["extension"])
	require.True(t, ok, "document has no extension array")
	for _, e := range exts {
		if ext, ok := asMap(e); ok && getString(ext, "url") == url {
			return ext
		}
	}
	t.Fatalf("extension %s not found", url)
	return nil
}

func TestConsent_TreatmentDirectivePermit(t *testing.T) {
	stu3 := transformDoc(t, consentTransformer{}, `{
		"resourceType": "Consent",
		"id": "td-1",
		"status": "active",
		"identifier": [{"system": "urn:x", "value": "one"}, {"system": "urn:x", "value": "two"}],
		"patient": {"reference": "Patient/anna", "type": "Patient"},
		"dateTime": "2024-03-01",
		"provision": {
			"type": "permit",
			"code": [{"coding": [{"system": "http://snomed.info/sct", "code": "89666000"}]}],
			"period": {"start": "2024-03-01", "end": "2025-03-01"}
		}
	}`)

	assert.Equal(t, "Consent", stu3["resourceType"])

	identifier, ok := asMap(stu3["identifier"])
	require.True(t, ok, "identifier narrows to a single entry")
	assert.Equal(t, "one", identifier["value"])

	modExts, ok := asSlice(stu3["modifierExtension"])
	require.True(t, ok)
	require.Len(t, modExts, 1)
	permitted := modExts[0].(map[string]interface{})
	assert.Equal(t, treatmentPermittedURL, permitted["url"])
	coding := permitted["valueCodeableConcept"].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "JA", coding["code"])
	assert.Equal(t, "Ja", coding["display"])

	excepts, ok := asSlice(stu3["except"])
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"type": "permit"}, excepts[0])

	treatment := extensionByURL(t, stu3, treatmentURL)
	concept := treatment["valueCodeableConcept"].(map[string]interface{})
	assert.True(t, hasCoding(concept, snomedSystem, "89666000"))

	period, ok := asMap(stu3["period"])
	require.True(t, ok)
	assert.Equal(t, "2025-03-01", period["end"])
	assert.NotContains(t, period, "start")

	patient := stu3["patient"].(map[string]interface{})
	assert.NotContains(t, patient, "type")
}

func TestConsent_TreatmentDirectiveDeny(t *testing.T) {
	stu3 := transformDoc(t, consentTransformer{}, `{
		"resourceType": "Consent",
		"id": "td-2",
		"status": "active",
		"provision": {"type": "deny"}
	}`)

	modExts := stu3["modifierExtension"].([]interface{})
	coding := modExts[0].(map[string]interface{})["valueCodeableConcept"].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "NEE", coding["code"])
	assert.Equal(t, "Nee", coding["display"])
	assert.Equal(t, treatmentPermittedOID, coding["system"])

	excepts := stu3["except"].([]interface{})
	assert.Equal(t, map[string]interface{}{"type": "deny"}, excepts[0])
}

func TestConsent_SpecificationOtherWins(t *testing.T) {
	stu3 := transformDoc(t, consentTransformer{}, `{
		"resourceType": "Consent",
		"id": "td-3",
		"status": "active",
		"modifierExtension": [
			{
				"url": "http://nictiz.nl/fhir/StructureDefinition/ext-TreatmentDirective2.SpecificationOther",
				"valueString": "Alleen bij levensbedreigende situaties"
			},
			{
				"url": "http://nictiz.nl/fhir/StructureDefinition/ext-TreatmentDirective2.SpecificationOther",
				"valueString": "Tweede beperking"
			}
		],
		"provision": {"type": "permit"}
	}`)

	modExts := stu3["modifierExtension"].([]interface{})
	require.Len(t, modExts, 1)
	coding := modExts[0].(map[string]interface{})["valueCodeableConcept"].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "JA_MAAR", coding["code"])
	assert.Equal(t, "Ja, maar met beperkingen", coding["display"])

	excepts := stu3["except"].([]interface{})
	require.Len(t, excepts, 1)
	except := excepts[0].(map[string]interface{})
	assert.Equal(t, "deny", except["type"])
	restriction := except["extension"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, restrictionsURL, restriction["url"])
	assert.Equal(t, "Alleen bij levensbedreigende situaties", restriction["valueString"])
}

func TestConsent_CategoryCodeRewrites(t *testing.T) {
	stu3 := transformDoc(t, consentTransformer{}, `{
		"resourceType": "Consent",
		"id": "td-4",
		"status": "active",
		"category": [
			{"coding": [{"system": "http://snomed.info/sct", "code": "129125009", "display": "old"}]},
			{"coding": [{"system": "http://terminology.hl7.org/CodeSystem/consentcategorycodes", "code": "acd", "display": "Advance Directive"}]}
		]
	}`)

	categories := stu3["category"].([]interface{})
	require.Len(t, categories, 2)

	first := categories[0].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "11291000146105", first["code"])
	assert.Equal(t, "Treatment instructions (record artifact)", first["display"])

	second := categories[1].(map[string]interface{})["coding"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, snomedSystem, second["system"])
	assert.Equal(t, "11341000146107", second["code"])
	assert.NotContains(t, second, "display")
}

func TestConsent_VerificationActors(t *testing.T) {
	stu3 := transformDoc(t, consentTransformer{}, `{
		"resourceType": "Consent",
		"id": "td-5",
		"status": "active",
		"dateTime": "2024-03-01T09:00:00Z",
		"provision": {
			"actor": [
				{
					"role": {"coding": [{"system": "http://terminology.hl7.org/CodeSystem/v3-RoleCode", "code": "CONSENTER"}]},
					"reference": {"reference": "Patient/anna", "type": "Patient"}
				},
				{
					"role": {"coding": [{"system": "http://terminology.hl7.org/CodeSystem/v3-RoleCode", "code": "CONSENTER"}]},
					"reference": {"reference": "RelatedPerson/rp-1", "type": "RelatedPerson", "display": "Echtgenoot"}
				},
				{
					"role": {"coding": [{"system": "http://terminology.hl7.org/CodeSystem/v3-RoleCode", "code": "RESPRSN"}]},
					"reference": {"reference": "RelatedPerson/rp-2", "type": "RelatedPerson"}
				}
			]
		}
	}`)

	verification := extensionByURL(t, stu3, verificationURL)
	nested, ok := asSlice(verification["extension"])
	require.True(t, ok)
	require.Len(t, nested, 4)

	verified := nested[0].(map[string]interface{})
	assert.Equal(t, "Verified", verified["url"])
	assert.Equal(t, true, verified["valueBoolean"])

	date := nested[1].(map[string]interface{})
	assert.Equal(t, "VerificationDate", date["url"])
	assert.Equal(t, "2024-03-01T09:00:00Z", date["valueDateTime"])

	patientWith := nested[2].(map[string]interface{})["valueCodeableConcept"].(map[string]interface{})
	assert.True(t, hasCoding(patientWith, snomedSystem, "116154003"))

	contactWith := nested[3].(map[string]interface{})["valueCodeableConcept"].(map[string]interface{})
	assert.True(t, hasCoding(contactWith, "http://hl7.org/fhir/v3/NullFlavor", "OTH"))
	assert.Equal(t, "Echtgenoot", contactWith["text"])

	parties, ok := asSlice(stu3["consentingParty"])
	require.True(t, ok)
	require.Len(t, parties, 1)
	party := parties[0].(map[string]interface{})
	assert.Equal(t, "RelatedPerson/rp-2", party["reference"])
	assert.NotContains(t, party, "type")
}

func TestConsent_AdvanceDirectiveCodesBecomeCategories(t *testing.T) {
	stu3 := transformDoc(t, consentTransformer{}, `{
		"resourceType": "Consent",
		"id": "ad-1",
		"status": "active",
		"category": [{"coding": [{"system": "http://terminology.hl7.org/CodeSystem/consentcategorycodes", "code": "acd"}]}],
		"extension": [{
			"url": "http://nictiz.nl/fhir/StructureDefinition/ext-AdvanceDirective.Disorder",
			"valueReference": {"reference": "Condition/c-1"}
		}],
		"provision": {
			"code": [
				{"coding": [{"system": "http://snomed.info/sct", "code": "129063000"}]},
				{"coding": [{"system": "http://snomed.info/sct", "code": "89666000"}]}
			]
		}
	}`)

	categories := stu3["category"].([]interface{})
	require.Len(t, categories, 3, "both provision codes append to the rewritten category")

	disorder := extensionByURL(t, stu3, "http://nictiz.nl/fhir/StructureDefinition/zib-AdvanceDirective-Disorder")
	assert.NotNil(t, disorder["valueReference"])

	treatment := extensionByURL(t, stu3, treatmentURL)
	concept := treatment["valueCodeableConcept"].(map[string]interface{})
	assert.True(t, hasCoding(concept, snomedSystem, "129063000"), "first provision code feeds the treatment extension")
}

func TestConsent_CommentExtensionRenamed(t *testing.T) {
	stu3 := transformDoc(t, consentTransformer{}, `{
		"resourceType": "Consent",
		"id": "td-6",
		"status": "active",
		"extension": [{
			"url": "http://nictiz.nl/fhir/StructureDefinition/ext-Comment",
			"valueString": "Besproken met familie"
		}]
	}`)

	comment := extensionByURL(t, stu3, "http://nictiz.nl/fhir/StructureDefinition/Comment")
	assert.Equal(t, "Besproken met familie", comment["valueString"])
}

func TestConsent_NoProvision(t *testing.T) {
	stu3 := transformDoc(t, consentTransformer{}, `{
		"resourceType": "Consent",
		"id": "td-7",
		"status": "active"
	}`)

	assert.NotContains(t, stu3, "modifierExtension")
	assert.NotContains(t, stu3, "except")
	assert.NotContains(t, stu3, "extension")
	assert.NotContains(t, stu3, "consentingParty")
	assert.NotContains(t, stu3, "category")
	assert.NotContains(t, stu3, "period")
}
