package transform

import (
	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

const (
	goalAchievementSystem  = "http://terminology.hl7.org/CodeSystem/goal-achievement"
	goalEncounterReference = "https://fhir.iknl.nl/fhir/StructureDefinition/ext-EncounterReference"
)

// R4 lifecycle statuses that exist verbatim in the STU3 goal-status set.
var goalLifecycleDirect = map[string]bool{
	"proposed":         true,
	"planned":          true,
	"accepted":         true,
	"on-hold":          true,
	"cancelled":        true,
	"entered-in-error": true,
	"rejected":         true,
}

var goalTargetFields = []string{
	"measure", "detailQuantity", "detailRange", "detailCodeableConcept",
	"dueDate", "dueDuration",
}

var goalDirectFields = []string{
	"identifier", "category", "priority", "description", "subject",
	"startDate", "startCodeableConcept", "statusDate", "statusReason",
	"expressedBy", "addresses", "note", "outcomeCode", "outcomeReference",
}

type goalTransformer struct{}

func init() { Register(goalTransformer{}) }

func (goalTransformer) ResourceType() string { return "Goal" }

func (t goalTransformer) Transform(r4 fhir.Resource, rc *Context) fhir.Resource {
	stu3 := scaffold(r4, "implicitRules", "language", "text")

	t.transformStatus(r4, stu3)
	copyFields(r4, stu3, goalDirectFields...)
	if targets := t.transformTargets(r4); len(targets) > 0 {
		stu3["target"] = targets
	}
	t.copyEncounterExtensions(r4, stu3)

	return cleanDocument(stu3)
}

// transformStatus folds lifecycleStatus and achievementStatus into the
// single STU3 status code; the achievement coding wins when both map.
func (t goalTransformer) transformStatus(r4, stu3 fhir.Resource) {
	switch lifecycle, _ := r4["lifecycleStatus"].(string); {
	case goalLifecycleDirect[lifecycle]:
		stu3["status"] = lifecycle
	case lifecycle == "active":
		stu3["status"] = "in-progress"
	case lifecycle == "completed":
		stu3["status"] = "achieved"
	}

	if achievement, ok := asMap(r4["achievementStatus"]); ok {
		if codings, ok := asSlice(achievement["coding"]); ok {
			for _, c := range codings {
				coding, ok := asMap(c)
				if !ok || getString(coding, "system") != goalAchievementSystem {
					continue
				}
				switch getString(coding, "code") {
				case "in-progress":
					stu3["status"] = "in-progress"
				case "sustaining":
					stu3["status"] = "sustaining"
				case "improving":
					stu3["status"] = "ahead-of-target"
				case "worsening":
					stu3["status"] = "behind-target"
				}
			}
		}
	}

	if _, ok := stu3["status"]; !ok {
		stu3["status"] = "planned"
	}
}

func (t goalTransformer) transformTargets(r4 fhir.Resource) []interface{} {
	targets, ok := asSlice(r4["target"])
	if !ok {
		return nil
	}
	out := make([]interface{}, 0, len(targets))
	for _, tg := range targets {
		target, ok := asMap(tg)
		if !ok {
			continue
		}
		entry := map[string]interface{}{}
		for _, f := range goalTargetFields {
			if v, ok := target[f]; ok {
				entry[f] = v
			}
		}
		out = append(out, entry)
	}
	return out
}

// copyEncounterExtensions keeps the IKNL encounter reference extensions,
// which exist identically on both profile versions.
func (t goalTransformer) copyEncounterExtensions(r4, stu3 fhir.Resource) {
	src, ok := asSlice(r4["extension"])
	if !ok {
		return
	}
	var matched []interface{}
	for _, e := range src {
		if ext, ok := asMap(e); ok && getString(ext, "url") == goalEncounterReference {
			matched = append(matched, ext)
		}
	}
	if len(matched) == 0 {
		return
	}
	exts, _ := asSlice(stu3["extension"])
	stu3["extension"] = append(exts, matched...)
}
