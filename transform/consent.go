package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

const (
	consentCategorySystem = "http://terminology.hl7.org/CodeSystem/consentcategorycodes"
	treatmentPermittedOID = "urn:oid:2.16.840.1.113883.2.4.3.11.60.40.4"

	specificationOtherURL = "http://nictiz.nl/fhir/StructureDefinition/ext-TreatmentDirective2.SpecificationOther"
	treatmentPermittedURL = "http://nictiz.nl/fhir/StructureDefinition/zib-TreatmentDirective-TreatmentPermitted"
	verificationURL       = "http://nictiz.nl/fhir/StructureDefinition/zib-TreatmentDirective-Verification"
	treatmentURL          = "http://nictiz.nl/fhir/StructureDefinition/zib-TreatmentDirective-Treatment"
	restrictionsURL       = "http://nictiz.nl/fhir/StructureDefinition/zib-TreatmentDirective-Restrictions"
)

// Root extension URLs that changed between the R4 and STU3 consent profiles.
var consentExtensionRenames = map[string]string{
	"http://nictiz.nl/fhir/StructureDefinition/ext-Comment":                              "http://nictiz.nl/fhir/StructureDefinition/Comment",
	"http://nictiz.nl/fhir/StructureDefinition/ext-TreatmentDirective2.AdvanceDirective": "http://nictiz.nl/fhir/StructureDefinition/consent-additionalSources",
	"http://nictiz.nl/fhir/StructureDefinition/ext-AdvanceDirective.Disorder":            "http://nictiz.nl/fhir/StructureDefinition/zib-AdvanceDirective-Disorder",
}

type consentTransformer struct{}

func init() { Register(consentTransformer{}) }

func (consentTransformer) ResourceType() string { return "Consent" }

// Transform collapses the R4 Consent provision structure back into the STU3
// treatment directive shape: modifier extensions, except entries, the
// verification extension and consenting parties.
func (t consentTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "text", "contained")

	// STU3 narrows identifier from 0..* to 0..1, the first entry wins.
	switch ids := r4["identifier"].(type) {
	case []interface{}:
		if len(ids) > 0 {
			stu3["identifier"] = ids[0]
		}
	case map[string]interface{}:
		stu3["identifier"] = ids
	}

	copyFields(r4, stu3, "status", "patient", "dateTime",
		"organization", "source", "sourceAttachment", "policy")

	categories := t.transformCategory(r4)
	var exts []interface{}
	if src, ok := asSlice(r4["extension"]); ok {
		exts = renameExtensions(src, consentExtensionRenames)
	}
	var modExts, excepts, consentingParties []interface{}

	if provision, ok := asMap(r4["provision"]); ok {
		modExts, excepts = t.treatmentPermitted(r4, provision)

		verification, parties := t.verificationAndParties(r4, provision)
		if verification != nil {
			exts = append(exts, verification)
		}
		consentingParties = parties

		var treatment []interface{}
		treatment, categories = t.treatmentAndLivingWill(r4, provision, categories)
		exts = append(exts, treatment...)

		if period, ok := asMap(provision["period"]); ok {
			if end, ok := period["end"]; ok {
				stu3["period"] = map[string]interface{}{"end": end}
			}
		}
	}

	if len(categories) > 0 {
		stu3["category"] = categories
	}
	if len(exts) > 0 {
		stu3["extension"] = exts
	}
	if len(modExts) > 0 {
		stu3["modifierExtension"] = modExts
	}
	if len(excepts) > 0 {
		stu3["except"] = excepts
	}
	if len(consentingParties) > 0 {
		stu3["consentingParty"] = consentingParties
	}

	return cleanDocument(stu3)
}

// transformCategory rewrites the two category codes that changed between
// versions: SNOMED 129125009 became 11291000146105 and the R4 acd consent
// category code became SNOMED 11341000146107.
func (t consentTransformer) transformCategory(r4 fhir.Resource) []interface{} {
	categories, ok := asSlice(r4["category"])
	if !ok {
		return nil
	}
	out := make([]interface{}, 0, len(categories))
	for _, c := range categories {
		category, ok := asMap(c)
		if !ok {
			out = append(out, c)
			continue
		}
		rewritten := copyMap(category)
		if codings, ok := asSlice(category["coding"]); ok {
			newCodings := make([]interface{}, 0, len(codings))
			for _, cd := range codings {
				coding, ok := asMap(cd)
				if !ok {
					newCodings = append(newCodings, cd)
					continue
				}
				nc := copyMap(coding)
				switch {
				case getString(coding, "system") == snomedSystem && getString(coding, "code") == "129125009":
					nc["code"] = "11291000146105"
					nc["display"] = "Treatment instructions (record artifact)"
				case getString(coding, "system") == consentCategorySystem && getString(coding, "code") == "acd":
					nc["system"] = snomedSystem
					nc["code"] = "11341000146107"
					delete(nc, "display")
				}
				newCodings = append(newCodings, nc)
			}
			rewritten["coding"] = newCodings
		}
		out = append(out, rewritten)
	}
	return out
}

// treatmentPermitted derives the TreatmentPermitted modifier extension and
// the matching except entry. A SpecificationOther modifier extension on the
// R4 document wins over provision.type and maps to JA_MAAR with the
// restriction text carried on the except entry.
func (t consentTransformer) treatmentPermitted(r4 fhir.Resource, provision map[string]interface{}) (modExts, excepts []interface{}) {
	if src, ok := asSlice(r4["modifierExtension"]); ok {
		for _, e := range src {
			ext, ok := asMap(e)
			if !ok || getString(ext, "url") != specificationOtherURL {
				continue
			}
			modExts = append(modExts, treatmentPermittedExtension("JA_MAAR", "Ja, maar met beperkingen"))
			excepts = append(excepts, map[string]interface{}{
				"type": "deny",
				"extension": []interface{}{map[string]interface{}{
					"url":         restrictionsURL,
					"valueString": getString(ext, "valueString"),
				}},
			})
			return modExts, excepts
		}
	}

	provisionType := getString(provision, "type")
	if provisionType == "" {
		return nil, nil
	}
	code, display := provisionType, provisionType
	switch provisionType {
	case "permit":
		code, display = "JA", "Ja"
	case "deny":
		code, display = "NEE", "Nee"
	}
	modExts = append(modExts, treatmentPermittedExtension(code, display))
	excepts = append(excepts, map[string]interface{}{"type": provisionType})
	return modExts, excepts
}

func treatmentPermittedExtension(code, display string) map[string]interface{} {
	return map[string]interface{}{
		"url": treatmentPermittedURL,
		"valueCodeableConcept": map[string]interface{}{
			"coding": []interface{}{map[string]interface{}{
				"system":  treatmentPermittedOID,
				"code":    code,
				"display": display,
			}},
		},
	}
}

// verificationAndParties walks provision.actor: the patient and consenting
// contact persons feed the Verification extension, representatives become
// consentingParty entries.
func (t consentTransformer) verificationAndParties(r4 fhir.Resource, provision map[string]interface{}) (map[string]interface{}, []interface{}) {
	actors, ok := asSlice(provision["actor"])
	if !ok {
		return nil, nil
	}

	var verifiedWith []interface{}
	var parties []interface{}

	for _, a := range actors {
		actor, ok := asMap(a)
		if !ok {
			continue
		}
		ref, _ := asMap(actor["reference"])
		role, _ := asMap(actor["role"])
		refType := ""
		if ref != nil {
			refType = getString(ref, "type")
		}

		switch {
		case refType == "Patient":
			verifiedWith = append(verifiedWith, verifiedWithExtension(map[string]interface{}{
				"coding": []interface{}{map[string]interface{}{
					"system":  snomedSystem,
					"code":    "116154003",
					"display": "Patient",
				}},
			}))
		case refType == "RelatedPerson" && role != nil && hasCoding(role, roleCodeSystem, "CONSENTER"):
			display := "ContactPerson"
			if d := getString(ref, "display"); d != "" {
				display = d
			}
			verifiedWith = append(verifiedWith, verifiedWithExtension(map[string]interface{}{
				"coding": []interface{}{map[string]interface{}{
					"system":  "http://hl7.org/fhir/v3/NullFlavor",
					"code":    "OTH",
					"display": "Other",
				}},
				"text": display,
			}))
		case role != nil && hasCoding(role, roleCodeSystem, "RESPRSN"):
			if ref != nil {
				parties = append(parties, ref)
			}
		}
	}

	if len(verifiedWith) == 0 {
		return nil, parties
	}

	nested := []interface{}{map[string]interface{}{"url": "Verified", "valueBoolean": true}}
	if dt, ok := r4["dateTime"]; ok {
		nested = append(nested, map[string]interface{}{"url": "VerificationDate", "valueDateTime": dt})
	}
	nested = append(nested, verifiedWith...)

	return map[string]interface{}{"url": verificationURL, "extension": nested}, parties
}

func verifiedWithExtension(concept map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"url": "VerifiedWith", "valueCodeableConcept": concept}
}

// treatmentAndLivingWill maps provision.code to the Treatment extension
// (STU3 carries a single code) and, on advance directives, appends every
// provision code as an extra category entry.
func (t consentTransformer) treatmentAndLivingWill(r4 fhir.Resource, provision map[string]interface{}, categories []interface{}) ([]interface{}, []interface{}) {
	codeVal, ok := provision["code"]
	if !ok {
		return nil, categories
	}
	codes, ok := asSlice(codeVal)
	if !ok {
		codes = []interface{}{codeVal}
	}
	if len(codes) == 0 {
		return nil, categories
	}

	exts := []interface{}{map[string]interface{}{
		"url":                  treatmentURL,
		"valueCodeableConcept": codes[0],
	}}
	if t.isAdvanceDirective(r4) {
		categories = append(categories, codes...)
	}
	return exts, categories
}

// isAdvanceDirective checks the R4 categories for both the consent category
// code and its SNOMED successor; source documents carry either.
func (t consentTransformer) isAdvanceDirective(r4 fhir.Resource) bool {
	categories, ok := asSlice(r4["category"])
	if !ok {
		return false
	}
	for _, c := range categories {
		category, ok := asMap(c)
		if !ok {
			continue
		}
		if hasCoding(category, consentCategorySystem, "acd") || hasCoding(category, snomedSystem, "11341000146107") {
			return true
		}
	}
	return false
}
