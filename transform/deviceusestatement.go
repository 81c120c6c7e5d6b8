package transform

import (
	"sort"
	"strings"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

const (
	whenUsedExtension            = "http://hl7.org/fhir/3.0/StructureDefinition/extension-DeviceUseStatement.whenUsed"
	deviceUseEncounterReference  = "https://api.iknl.nl/docs/pzp/stu3/StructureDefinition/ext-EncounterReference"
	healthProfessionalExtension  = "http://nictiz.nl/fhir/StructureDefinition/ext-MedicalDevice.HealthProfessional"
	medicalDevicePractitionerURL = "http://nictiz.nl/fhir/StructureDefinition/zib-MedicalDevice-Practitioner"
)

var deviceUseDirectFields = []string{
	"identifier", "status", "subject", "recordedOn", "source", "device",
	"bodySite", "note", "timingTiming", "timingPeriod", "timingDateTime",
}

type deviceUseStatementTransformer struct{}

func init() { Register(deviceUseStatementTransformer{}) }

func (deviceUseStatementTransformer) ResourceType() string { return "DeviceUseStatement" }

func (t deviceUseStatementTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "implicitRules", "language", "text")
	copyFields(r4, stu3, deviceUseDirectFields...)

	if when, ok := t.whenUsed(r4); ok {
		stu3["whenUsed"] = when
	}
	if reason, ok := r4["reasonCode"]; ok {
		stu3["indication"] = reason
	}
	if bodySite, ok := stu3["bodySite"]; ok {
		stu3["bodySite"] = rewriteLaterality(bodySite)
	}
	t.copyRootExtensions(r4, stu3)

	return cleanDocument(stu3)
}

// whenUsed recovers the STU3 whenUsed period from the compatibility
// extension. The typed kinds are checked in a fixed order so the pick is
// deterministic whatever the document carries.
func (t deviceUseStatementTransformer) whenUsed(r4 fhir.Resource) (interface{}, bool) {
	exts, ok := asSlice(r4["extension"])
	if !ok {
		return nil, false
	}
	for _, e := range exts {
		ext, ok := asMap(e)
		if !ok || getString(ext, "url") != whenUsedExtension {
			continue
		}
		for _, f := range []string{"valuePeriod", "valueDateTime", "valueTiming", "value"} {
			if v, ok := ext[f]; ok {
				return v, true
			}
		}
		var keys []string
		for k := range ext {
			if strings.HasPrefix(k, "value") {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			sort.Strings(keys)
			return ext[keys[0]], true
		}
	}
	return nil, false
}

// copyRootExtensions keeps the root extensions STU3 still carries: the IKNL
// encounter reference as-is and HealthProfessional under its zib URL.
func (t deviceUseStatementTransformer) copyRootExtensions(r4, stu3 fhir.Resource) {
	src, ok := asSlice(r4["extension"])
	if !ok {
		return
	}
	var kept []interface{}
	for _, e := range src {
		ext, ok := asMap(e)
		if !ok {
			continue
		}
		switch getString(ext, "url") {
		case deviceUseEncounterReference:
			kept = append(kept, ext)
		case healthProfessionalExtension:
			rewritten := copyMap(ext)
			rewritten["url"] = medicalDevicePractitionerURL
			kept = append(kept, rewritten)
		}
	}
	if len(kept) == 0 {
		return
	}
	exts, _ := asSlice(stu3["extension"])
	stu3["extension"] = append(exts, kept...)
}
