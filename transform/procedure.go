package transform

import (
	"strings"

	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

// The R4 event-status and STU3 procedure-status value sets swapped the
// meaning of aborted and stopped; not-done needs the notDone flag instead.
var procedureStatusMap = map[string]string{
	"preparation":      "preparation",
	"in-progress":      "in-progress",
	"on-hold":          "suspended",
	"suspended":        "suspended",
	"stopped":          "aborted",
	"aborted":          "stopped",
	"completed":        "completed",
	"entered-in-error": "entered-in-error",
	"unknown":          "unknown",
}

var procedureExtensionRenames = map[string]string{
	"http://nictiz.nl/fhir/StructureDefinition/ext-Procedure.ProcedureMethod": "http://hl7.org/fhir/StructureDefinition/procedure-method",
}

var procedureDirectFields = []string{
	"identifier", "definition", "instantiatesCanonical", "instantiatesUri",
	"basedOn", "partOf", "category", "code", "subject", "performedDateTime",
	"performedPeriod", "recorder", "asserter", "location", "reasonCode",
	"reasonReference", "bodySite", "outcome", "report", "complication",
	"complicationDetail", "followUp", "note", "focalDevice", "usedReference",
	"usedCode",
}

type procedureTransformer struct{}

func init() { Register(procedureTransformer{}) }

func (procedureTransformer) ResourceType() string { return "Procedure" }

func (t procedureTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "text", "contained")

	t.transformStatus(r4, stu3)
	if enc, ok := r4["encounter"]; ok {
		stu3["context"] = enc
	}
	if src, ok := asSlice(r4["extension"]); ok {
		if exts := renameExtensions(src, procedureExtensionRenames); len(exts) > 0 {
			stu3["extension"] = exts
		}
	}
	t.transformPerformer(r4, stu3, rc)
	copyFields(r4, stu3, procedureDirectFields...)
	if bodySite, ok := stu3["bodySite"]; ok {
		stu3["bodySite"] = rewriteLaterality(bodySite)
	}
	t.addConsultationCategory(stu3)

	out := cleanDocument(stu3)
	return fhir.Resource(dropEmptyExtensions(map[string]interface{}(out)).(map[string]interface{}))
}

func (t procedureTransformer) transformStatus(r4, stu3 fhir.Resource) {
	status, _ := r4["status"].(string)
	switch {
	case status == "":
	case status == "not-done":
		stu3["status"] = "suspended"
		stu3["notDone"] = true
		if reason, ok := r4["statusReason"]; ok {
			stu3["notDoneReason"] = reason
		}
	default:
		mapped, ok := procedureStatusMap[status]
		if !ok {
			mapped = status
		}
		stu3["status"] = mapped
	}
}

// transformPerformer renames function to role and drops performers whose
// actor cannot be expressed in STU3, which only allows practitioner targets.
func (t procedureTransformer) transformPerformer(r4, stu3 fhir.Resource, rc *Context) {
	performers, ok := asSlice(r4["performer"])
	if !ok {
		return
	}
	out := make([]interface{}, 0, len(performers))
	for _, p := range performers {
		performer, ok := asMap(p)
		if !ok {
			continue
		}
		entry := map[string]interface{}{}
		if fn, ok := performer["function"]; ok {
			entry["role"] = fn
		}
		if actorVal, ok := performer["actor"]; ok {
			actor, isMap := asMap(actorVal)
			if !isMap || !practitionerActor(actor) {
				ref := ""
				if isMap {
					ref = getString(actor, "reference")
				}
				rc.Logger.Warn("dropping performer, actor type not supported in STU3",
					zap.String("reference", ref))
				continue
			}
			entry["actor"] = actor
		}
		if obo, ok := performer["onBehalfOf"]; ok {
			entry["onBehalfOf"] = obo
		}
		if len(entry) > 0 {
			out = append(out, entry)
		}
	}
	if len(out) > 0 {
		stu3["performer"] = out
	}
}

// PractitionerRole references pass because the role rewrite turns them into
// practitioner references afterwards.
func practitionerActor(actor map[string]interface{}) bool {
	ref := getString(actor, "reference")
	return strings.HasPrefix(ref, "Practitioner/") || strings.HasPrefix(ref, "PractitionerRole/")
}

// addConsultationCategory fills category with Consultation (procedure) when
// the procedure code marks an advance care planning conversation.
func (t procedureTransformer) addConsultationCategory(stu3 fhir.Resource) {
	code, ok := asMap(stu3["code"])
	if !ok || !hasCoding(code, snomedSystem, "713603004") {
		return
	}
	consultation := map[string]interface{}{
		"system":  snomedSystem,
		"code":    "11429006",
		"display": "Consultation (procedure)",
	}
	category, ok := asMap(stu3["category"])
	if !ok {
		stu3["category"] = map[string]interface{}{"coding": []interface{}{consultation}}
		return
	}
	codings, ok := asSlice(category["coding"])
	if !ok {
		rewritten := copyMap(category)
		rewritten["coding"] = []interface{}{consultation}
		stu3["category"] = rewritten
		return
	}
	if hasCoding(category, snomedSystem, "11429006") {
		return
	}
	rewritten := copyMap(category)
	rewritten["coding"] = append(append([]interface{}{}, codings...), consultation)
	stu3["category"] = rewritten
}

// dropEmptyExtensions removes extension arrays left empty by the URL
// rewriting passes.
func dropEmptyExtensions(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if k == "extension" {
				if exts, ok := asSlice(child); ok && len(exts) == 0 {
					continue
				}
			}
			out[k] = dropEmptyExtensions(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = dropEmptyExtensions(item)
		}
		return out
	default:
		return v
	}
}
