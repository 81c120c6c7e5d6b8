package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

const communicationTopicExtension = "http://hl7.org/fhir/3.0/StructureDefinition/extension-Communication.topic"

var communicationContentFields = []string{
	"contentString", "contentAttachment", "contentReference", "content",
}

var communicationDirectFields = []string{
	"identifier", "basedOn", "partOf", "category", "medium", "subject",
	"recipient", "sent", "received", "sender", "reasonCode",
	"reasonReference", "note",
}

type communicationTransformer struct{}

func init() { Register(communicationTransformer{}) }

func (communicationTransformer) ResourceType() string { return "Communication" }

func (t communicationTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "text", "contained")

	if def, ok := r4["instantiatesCanonical"]; ok {
		stu3["definition"] = def
	}
	t.transformStatus(r4, stu3)
	if enc, ok := r4["encounter"]; ok {
		stu3["context"] = enc
	}
	t.transformTopic(r4, stu3)
	if payloads := t.transformPayload(r4); len(payloads) > 0 {
		stu3["payload"] = payloads
	}
	copyFields(r4, stu3, communicationDirectFields...)

	return cleanDocument(stu3)
}

// transformStatus maps the R4 not-done status onto the STU3 completed +
// notDone pair, carrying statusReason along as notDoneReason.
func (t communicationTransformer) transformStatus(r4, stu3 fhir.Resource) {
	status, _ := r4["status"].(string)
	switch status {
	case "":
	case "not-done":
		stu3["status"] = "completed"
		stu3["notDone"] = "not-done"
		if reason, ok := r4["statusReason"]; ok {
			stu3["notDoneReason"] = reason
		}
	default:
		stu3["status"] = status
	}
}

// transformTopic recovers the STU3 topic from the compatibility extension
// R4 documents carry it in.
func (t communicationTransformer) transformTopic(r4, stu3 fhir.Resource) {
	exts, ok := asSlice(r4["extension"])
	if !ok {
		return
	}
	for _, e := range exts {
		ext, ok := asMap(e)
		if !ok || getString(ext, "url") != communicationTopicExtension {
			continue
		}
		for _, f := range []string{"value", "valueReference", "valueCodeableConcept"} {
			if v, ok := ext[f]; ok {
				stu3["topic"] = v
				return
			}
		}
	}
}

// transformPayload copies payload entries, keeping only the first content[x]
// kind present per entry.
func (t communicationTransformer) transformPayload(r4 fhir.Resource) []interface{} {
	payloads, ok := asSlice(r4["payload"])
	if !ok {
		return nil
	}
	out := make([]interface{}, 0, len(payloads))
	for _, p := range payloads {
		payload, ok := asMap(p)
		if !ok {
			continue
		}
		entry := map[string]interface{}{}
		for _, f := range communicationContentFields {
			if v, ok := payload[f]; ok {
				entry[f] = v
				break
			}
		}
		for k, v := range payload {
			switch k {
			case "contentString", "contentAttachment", "contentReference", "content":
			default:
				entry[k] = v
			}
		}
		out = append(out, entry)
	}
	return out
}
