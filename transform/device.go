package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// R4 udiCarrier entry fields that survive on the single STU3 udi object.
var deviceUdiFields = []string{
	"deviceIdentifier", "jurisdiction", "carrierHRF", "carrierAIDC",
	"issuer", "entryType",
}

var deviceDirectFields = []string{
	"identifier", "status", "type", "lotNumber", "manufacturer",
	"manufactureDate", "expirationDate", "patient", "owner", "contact",
	"location", "url", "note", "safety",
}

type deviceTransformer struct{}

func init() { Register(deviceTransformer{}) }

func (deviceTransformer) ResourceType() string { return "Device" }

func (t deviceTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "implicitRules", "language", "text")
	copyFields(r4, stu3, deviceDirectFields...)

	// STU3 has one udi object; the first R4 carrier and device name feed it.
	udi := map[string]interface{}{}
	if carriers, ok := asSlice(r4["udiCarrier"]); ok && len(carriers) > 0 {
		if carrier, ok := asMap(carriers[0]); ok {
			for _, f := range deviceUdiFields {
				if v, ok := carrier[f]; ok {
					udi[f] = v
				}
			}
		}
	}
	if names, ok := asSlice(r4["deviceName"]); ok && len(names) > 0 {
		if first, ok := asMap(names[0]); ok {
			if name, ok := first["name"]; ok {
				udi["name"] = name
			}
		}
	}
	if len(udi) > 0 {
		stu3["udi"] = udi
	}

	if model, ok := r4["modelNumber"]; ok {
		stu3["model"] = model
	}
	if versions, ok := asSlice(r4["version"]); ok && len(versions) > 0 {
		if first, ok := asMap(versions[0]); ok {
			if v, ok := first["value"]; ok {
				stu3["version"] = v
			}
		}
	}

	return cleanDocument(stu3)
}
