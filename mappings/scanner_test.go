package mappings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

const sdObservationDoc = `{
  "resourceType": "StructureDefinition",
  "id": "ACP-Observation",
  "name": "ACPObservation",
  "type": "Observation",
  "mapping": [
    {"identity": "informatiestandaard_obv_zibs2017", "uri": "https://decor.nictiz.nl/ad/#/pzp-", "name": "DS PZP"}
  ],
  "differential": {
    "element": [
      {
        "id": "Observation.value[x]",
        "path": "Observation.value[x]",
        "mapping": [{"identity": "informatiestandaard_obv_zibs2017", "map": "101"}]
      },
      {
        "id": "Observation.note",
        "path": "Observation.note",
        "mapping": [{"identity": "zib-comment", "map": "\"102 Toelichting\" commentaar"}]
      },
      {
        "id": "Observation.method",
        "path": "Observation.method",
        "mapping": [{"identity": "zib-method", "map": "NL-CM:12.9.7"}]
      },
      {
        "id": "Observation.code",
        "path": "Observation.code",
        "mapping": [
          {"identity": "a", "map": "103 Meting"},
          {"identity": "b", "map": "104 Metingtype"}
        ]
      }
    ]
  }
}`

const sdNoDeclarationDoc = `{
  "resourceType": "StructureDefinition",
  "id": "ACP-Goal",
  "name": "ACPGoal",
  "type": "Goal",
  "mapping": [{"identity": "zib-treatmentobjective", "uri": "u", "name": "ZIB"}],
  "differential": {
    "element": [
      {"id": "Goal.target", "path": "Goal.target", "mapping": [{"identity": "zib", "map": "515"}]}
    ]
  }
}`

func TestScanProfiles_ExtractsElementMappings(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "StructureDefinition-ACP-Observation.json", sdObservationDoc)

	profiles, scanned, diags, err := scanProfiles(dir, DefaultDatasetIdentity, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, scanned)
	assert.Empty(t, diags)
	require.Len(t, profiles, 1)

	p := profiles[0]
	assert.Equal(t, "ACPObservation", p.name)
	assert.Equal(t, "ACP-Observation", p.id)
	assert.Equal(t, "Observation", p.resourceType)
	assert.Equal(t, "DS PZP", p.datasetName)

	want := []elementMapping{
		{elementID: "Observation.value[x]", conceptID: "101"},
		{elementID: "Observation.note", conceptID: "102"},
		{elementID: "Observation.code", conceptID: "103"},
		{elementID: "Observation.code", conceptID: "104"},
	}
	assert.Equal(t, want, p.elements)
}

func TestScanProfiles_MissingDeclaration(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "StructureDefinition-ACP-Goal.json", sdNoDeclarationDoc)

	profiles, _, diags, err := scanProfiles(dir, DefaultDatasetIdentity, zap.NewNop())
	require.NoError(t, err)

	require.Len(t, diags, 1)
	assert.Equal(t, fhir.CodeNoDeclaration, diags[0].Code)
	assert.Equal(t, "StructureDefinition-ACP-Goal.json", diags[0].File)
	assert.True(t, diags[0].IsWarning())

	require.Len(t, profiles, 1)
	assert.Empty(t, profiles[0].datasetName)
	assert.Equal(t, []elementMapping{{elementID: "Goal.target", conceptID: "515"}}, profiles[0].elements)
}

func TestScanProfiles_SkipsNonStructureDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "StructureDefinition-ACP-Observation.json", sdObservationDoc)
	writeFixture(t, dir, "StructureDefinition-broken.json", `{"resourceType": `)
	writeFixture(t, dir, "StructureDefinition-terminology.json", `{"resourceType": "ValueSet", "id": "vs"}`)
	writeFixture(t, dir, "Patient-anna.json", `{"resourceType": "Patient", "id": "anna"}`)

	profiles, scanned, diags, err := scanProfiles(dir, DefaultDatasetIdentity, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 3, scanned)
	require.Len(t, profiles, 1)
	assert.Equal(t, "ACPObservation", profiles[0].name)

	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, fhir.CodeBadDefinition, d.Code)
		assert.True(t, d.IsWarning())
	}
	assert.Equal(t, "StructureDefinition-broken.json", diags[0].File)
	assert.Equal(t, "StructureDefinition-terminology.json", diags[1].File)
}

func TestScanProfiles_MissingDir(t *testing.T) {
	_, _, _, err := scanProfiles(filepath.Join(t.TempDir(), "absent"), DefaultDatasetIdentity, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resources directory")
}

func TestConceptIDFromMap(t *testing.T) {
	cases := []struct {
		value string
		want  string
	}{
		{"282", "282"},
		{"282 Behandelaanwijzing", "282"},
		{`"90 Vrijheidsbeperkende interventies" toelichting`, "90"},
		{`"90"`, "90"},
		{"NL-CM:12.9.7", ""},
		{"Behandelaanwijzing 282", ""},
		{`"Toelichting" 282`, ""},
		{"282a", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, conceptIDFromMap(tc.value), "map value %q", tc.value)
	}
}
