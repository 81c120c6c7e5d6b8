package transform

import (
	"strings"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

const (
	snomedSystem   = "http://snomed.info/sct"
	roleCodeSystem = "http://terminology.hl7.org/CodeSystem/v3-RoleCode"

	lateralityExtension  = "http://nictiz.nl/fhir/StructureDefinition/ext-AnatomicalLocation.Laterality"
	bodySiteQualifierURL = "http://nictiz.nl/fhir/StructureDefinition/BodySite-Qualifier"

	// roleReferenceExtension preserves the original PractitionerRole pointer
	// on references rewritten to their practitioner.
	roleReferenceExtension = "http://nictiz.nl/fhir/StructureDefinition/practitionerrole-reference"
)

// Extensions introduced in R4 that have no STU3 counterpart and are dropped
// wherever they appear.
var r4OnlyExtensions = map[string]bool{
	"http://hl7.org/fhir/StructureDefinition/patient-relatedPerson": true,
}

// Nictiz extension URLs whose STU3 spelling differs beyond the generic
// R4-to-STU3 canonical rewrite.
var globalExtensionRenames = map[string]string{
	"http://nictiz.nl/fhir/StructureDefinition/ext-CodeSpecification":              "http://nictiz.nl/fhir/StructureDefinition/code-specification",
	"http://nictiz.nl/fhir/StructureDefinition/ext-AddressInformation.AddressType": "http://nictiz.nl/fhir/StructureDefinition/zib-AddressInformation-AddressType",
}

// scaffold seeds an STU3 document with the fields every transformer carries
// over unchanged: resourceType, id, the version-rewritten meta, plus the
// named extras (narrative, contained resources, language).
func scaffold(r4 fhir.Resource, extras ...string) fhir.Resource {
	stu3 := fhir.Resource{"resourceType": r4["resourceType"]}
	if id, ok := r4["id"]; ok {
		stu3["id"] = id
	}
	if meta, ok := asMap(r4["meta"]); ok {
		stu3["meta"] = transformMeta(meta)
	}
	copyFields(r4, stu3, extras...)
	return stu3
}

// transformMeta rewrites resource meta for STU3: profile URLs move from the
// R4 canonical space to STU3, everything else copies through.
func transformMeta(meta map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, k := range []string{"versionId", "lastUpdated", "source"} {
		if v, ok := meta[k]; ok {
			out[k] = v
		}
	}
	if profiles, ok := asSlice(meta["profile"]); ok {
		rewritten := make([]interface{}, len(profiles))
		for i, p := range profiles {
			if url, ok := p.(string); ok {
				rewritten[i] = versionURL(url)
			} else {
				rewritten[i] = p
			}
		}
		out["profile"] = rewritten
	}
	for _, k := range []string{"tag", "security"} {
		if v, ok := meta[k]; ok {
			out[k] = v
		}
	}
	return out
}

// versionURL converts an R4 canonical URL to its STU3 spelling.
func versionURL(url string) string {
	out := strings.ReplaceAll(url, "/R4/", "/STU3/")
	out = strings.ReplaceAll(out, "/r4/", "/stu3/")
	return strings.ReplaceAll(out, "4.0", "3.0")
}

// cleanDocument applies the document-wide cleanups every transformer runs
// last: Reference.type removal and the global extension URL rewrite.
func cleanDocument(res fhir.Resource) fhir.Resource {
	out := cleanReferences(map[string]interface{}(res))
	out = transformExtensionURLs(out)
	return fhir.Resource(out.(map[string]interface{}))
}

// cleanReferences walks a document and strips the R4-only type field from
// every Reference object it finds.
func cleanReferences(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if _, hasRef := val["reference"]; hasRef {
			if _, hasType := val["type"]; hasType {
				out := make(map[string]interface{}, len(val)-1)
				for k, child := range val {
					if k != "type" {
						out[k] = child
					}
				}
				return out
			}
		}
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = cleanReferences(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cleanReferences(item)
		}
		return out
	default:
		return v
	}
}

// transformExtensionURLs walks a document rewriting extension URLs to their
// STU3 equivalents and dropping extensions that do not exist in STU3. An
// extension array emptied by the filtering is removed entirely.
func transformExtensionURLs(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = child
		}
		if exts, ok := asSlice(out["extension"]); ok {
			if rewritten := rewriteExtensionURLs(exts); len(rewritten) > 0 {
				out["extension"] = rewritten
			} else {
				delete(out, "extension")
			}
		}
		for k, child := range out {
			out[k] = transformExtensionURLs(child)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = transformExtensionURLs(item)
		}
		return out
	default:
		return v
	}
}

func rewriteExtensionURLs(exts []interface{}) []interface{} {
	out := make([]interface{}, 0, len(exts))
	for _, e := range exts {
		ext, ok := asMap(e)
		if !ok {
			out = append(out, e)
			continue
		}
		url := getString(ext, "url")
		if r4OnlyExtensions[url] {
			continue
		}
		rewritten := copyMap(ext)
		if mapped := stu3ExtensionURL(url); mapped != url {
			rewritten["url"] = mapped
		}
		if nested, ok := asSlice(rewritten["extension"]); ok {
			rewritten["extension"] = rewriteExtensionURLs(nested)
		}
		out = append(out, rewritten)
	}
	return out
}

// stu3ExtensionURL maps an extension URL to its STU3 form: known Nictiz
// renames first, then the generic canonical rewrite.
func stu3ExtensionURL(url string) string {
	if mapped, ok := globalExtensionRenames[url]; ok {
		return mapped
	}
	return versionURL(url)
}

// renameExtensions copies an extension array, swapping URLs found in renames
// and passing everything else through untouched.
func renameExtensions(exts []interface{}, renames map[string]string) []interface{} {
	out := make([]interface{}, 0, len(exts))
	for _, e := range exts {
		ext, ok := asMap(e)
		if !ok {
			out = append(out, e)
			continue
		}
		if mapped, found := renames[getString(ext, "url")]; found {
			rewritten := copyMap(ext)
			rewritten["url"] = mapped
			out = append(out, rewritten)
			continue
		}
		out = append(out, ext)
	}
	return out
}

// rewriteLaterality renames the AnatomicalLocation.Laterality extension to
// BodySite-Qualifier on a bodySite value, which is a single concept on
// DeviceUseStatement and a list on Procedure.
func rewriteLaterality(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = rewriteLaterality(item)
		}
		return out
	case map[string]interface{}:
		exts, ok := asSlice(val["extension"])
		if !ok {
			return val
		}
		rewritten := make([]interface{}, len(exts))
		for i, e := range exts {
			ext, ok := asMap(e)
			if ok && getString(ext, "url") == lateralityExtension {
				c := copyMap(ext)
				c["url"] = bodySiteQualifierURL
				rewritten[i] = c
				continue
			}
			rewritten[i] = e
		}
		out := copyMap(val)
		out["extension"] = rewritten
		return out
	default:
		return v
	}
}

// resolveRoleReferences walks a transformed document rewriting every
// PractitionerRole reference to the STU3 pattern: the reference itself points
// at the role's practitioner and the original role pointer moves into the
// practitionerrole-reference extension.
func resolveRoleReferences(v interface{}, rc *Context) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if isRoleReference(val) {
			return rewriteRoleReference(val, rc)
		}
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			out[k] = resolveRoleReferences(child, rc)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = resolveRoleReferences(item, rc)
		}
		return out
	default:
		return v
	}
}

func isRoleReference(obj map[string]interface{}) bool {
	if _, ok := obj["reference"]; !ok {
		return false
	}
	if getString(obj, "type") == "PractitionerRole" {
		return true
	}
	return strings.HasPrefix(getString(obj, "reference"), "PractitionerRole/")
}

func rewriteRoleReference(ref map[string]interface{}, rc *Context) map[string]interface{} {
	roleRef := getString(ref, "reference")
	roleDisplay := getString(ref, "display")

	var practitionerRef, practitionerDisplay string
	if roleRef != "" {
		roleID := roleRef[strings.LastIndex(roleRef, "/")+1:]
		if role, ok := rc.Roles[roleID]; ok {
			if practitioner, ok := asMap(role["practitioner"]); ok {
				practitionerRef = getString(practitioner, "reference")
				practitionerDisplay = getString(practitioner, "display")
			}
		}
	}

	out := map[string]interface{}{}
	if practitionerRef != "" {
		out["reference"] = practitionerRef
		if practitionerDisplay != "" {
			out["display"] = practitionerDisplay
		}
	} else {
		rc.warnf(fhir.CodeUnresolvedRef, "could not resolve %q to a practitioner", roleRef)
		out["reference"] = roleRef
		if roleDisplay != "" {
			out["display"] = roleDisplay
		}
	}

	valueRef := map[string]interface{}{"reference": roleRef}
	if roleDisplay != "" {
		valueRef["display"] = roleDisplay
	}
	out["extension"] = []interface{}{map[string]interface{}{
		"url":            roleReferenceExtension,
		"valueReference": valueRef,
	}}
	return out
}

// copyFields copies the named fields from src to dst when present.
func copyFields(src, dst fhir.Resource, fields ...string) {
	for _, f := range fields {
		if v, ok := src[f]; ok {
			dst[f] = v
		}
	}
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// hasCoding reports whether a CodeableConcept carries a coding with the
// given system and code.
func hasCoding(concept map[string]interface{}, system, code string) bool {
	codings, ok := asSlice(concept["coding"])
	if !ok {
		return false
	}
	for _, c := range codings {
		coding, ok := asMap(c)
		if !ok {
			continue
		}
		if getString(coding, "system") == system && getString(coding, "code") == code {
			return true
		}
	}
	return false
}
