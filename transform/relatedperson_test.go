package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelatedPerson_RelationshipNarrowsToFirst(t *testing.T) {
	stu3 := transformDoc(t, relatedPersonTransformer{}, `{
		"resourceType": "RelatedPerson",
		"id": "rp-1",
		"patient": {"reference": "Patient/anna"},
		"relationship": [
			{"coding": [{"system": "http://snomed.info/sct", "code": "127848009"}]},
			{"coding": [{"system": "http://snomed.info/sct", "code": "62257007"}]}
		]
	}`)

	relationship, ok := asMap(stu3["relationship"])
	require.True(t, ok, "relationship becomes a single concept")
	assert.True(t, hasCoding(relationship, snomedSystem, "127848009"))
}

func TestRelatedPerson_NoRelationship(t *testing.T) {
	stu3 := transformDoc(t, relatedPersonTransformer{}, `{
		"resourceType": "RelatedPerson",
		"id": "rp-2",
		"patient": {"reference": "Patient/anna"},
		"name": [{"family": "Jansen"}]
	}`)

	assert.NotContains(t, stu3, "relationship")
	assert.Contains(t, stu3, "name")
}
