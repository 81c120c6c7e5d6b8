package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
)

const mappingsFixtureDoc = `{
  "resourceType": "StructureDefinition",
  "id": "ACP-Wilsverklaring",
  "name": "ACPWilsverklaring",
  "type": "Consent",
  "mapping": [
    {"identity": "informatiestandaard_obv_zibs2017", "uri": "https://decor.nictiz.nl/ad/#/pzp-", "name": "DS Wilsverklaring"}
  ],
  "differential": {
    "element": [
      {
        "id": "Consent.category",
        "path": "Consent.category",
        "mapping": [{"identity": "informatiestandaard_obv_zibs2017", "map": "290 Wilsverklaring"}]
      }
    ]
  }
}`

func resetMappingsFlags() {
	mappingsResourcesDir = ""
	mappingsOutput = ""
	mappingsDataset = ""
	mappingsMode = ""
	mappingsVerbose = false
}

func TestNewMappingsCommand(t *testing.T) {
	cmd := NewMappingsCommand()

	if cmd.Use != "mappings" {
		t.Errorf("expected Use to be 'mappings', got %s", cmd.Use)
	}

	if cmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	// Check flags are registered
	for _, name := range []string{"resources-dir", "output", "dataset", "mode", "verbose"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag to be registered", name)
		}
	}
}

func TestRunMappings(t *testing.T) {
	resetMappingsFlags()
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	resources := filepath.Join(tmpDir, "resources")
	if err := os.MkdirAll(resources, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(resources, "StructureDefinition-ACP-Wilsverklaring.json"),
		[]byte(mappingsFixtureDoc), 0644); err != nil {
		t.Fatal(err)
	}

	output := filepath.Join(tmpDir, "includes", "mappings.md")
	cmd := NewMappingsCommand()
	mappingsResourcesDir = resources
	mappingsOutput = output
	// A missing dataset definition is a warning, not a failure
	mappingsDataset = filepath.Join(tmpDir, "missing-dataset.json")
	defer resetMappingsFlags()

	if err := runMappings(cmd, []string{}); err != nil {
		t.Fatalf("runMappings: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("expected mapping tables at %s: %v", output, err)
	}
	if !strings.Contains(string(data), "#### Mappings by profile") {
		t.Errorf("unexpected mapping output:\n%s", data)
	}
	if !strings.Contains(string(data), "ACPWilsverklaring") {
		t.Errorf("expected profile section in output:\n%s", data)
	}
}

func TestRunMappingsDevelopMode(t *testing.T) {
	resetMappingsFlags()
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	resources := filepath.Join(tmpDir, "resources")
	if err := os.MkdirAll(resources, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(resources, "StructureDefinition-ACP-Wilsverklaring.json"),
		[]byte(mappingsFixtureDoc), 0644); err != nil {
		t.Fatal(err)
	}

	dataset := `{
  "concept": [
    {
      "shortName": "informatiestandaard_obv_zibs2017",
      "id": "2.16.840.1.113883.2.4.3.11.60.117.2",
      "concept": [
        {
          "id": "2.16.840.1.113883.2.4.3.11.60.117.2.290",
          "name": [{"language": "nl-NL", "#text": "Wilsverklaring"}]
        }
      ]
    }
  ]
}`
	if err := os.WriteFile(filepath.Join(tmpDir, "dataset.json"), []byte(dataset), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := NewMappingsCommand()
	mappingsResourcesDir = resources
	mappingsOutput = filepath.Join(tmpDir, "mappings.md")
	mappingsDataset = filepath.Join(tmpDir, "dataset.json")
	mappingsMode = "develop"
	defer resetMappingsFlags()

	if err := runMappings(cmd, []string{}); err != nil {
		t.Fatalf("runMappings: %v", err)
	}

	data, err := os.ReadFile(mappingsOutput)
	if err != nil {
		t.Fatalf("expected mapping tables: %v", err)
	}
	if !strings.Contains(string(data), "Orphan Mappings") {
		t.Errorf("expected develop sections in output:\n%s", data)
	}
}

func TestRunMappingsUnknownMode(t *testing.T) {
	resetMappingsFlags()
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cmd := NewMappingsCommand()
	mappingsMode = "debug"
	defer resetMappingsFlags()

	err := runMappings(cmd, []string{})

	if err == nil {
		t.Fatal("expected error for unknown mode, got nil")
	}
	if !strings.Contains(err.Error(), "unknown mode") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunMappingsMissingResourcesDir(t *testing.T) {
	resetMappingsFlags()
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	mappingsResourcesDir = filepath.Join(tmpDir, "nowhere")
	defer resetMappingsFlags()

	cmd := NewMappingsCommand()
	err := runMappings(cmd, []string{})

	if err == nil {
		t.Fatal("expected error for missing resources directory, got nil")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWarningDiagnostics(t *testing.T) {
	diags := []fhir.Diagnostic{
		{Code: fhir.CodeSkippedType, Severity: fhir.Info},
		{Code: fhir.CodeDatasetFile, Severity: fhir.Warning},
		{Code: fhir.CodeParse, Severity: fhir.Error},
		{Code: fhir.CodeNoDeclaration, Severity: fhir.Warning},
	}

	warns := warningDiagnostics(diags)
	if len(warns) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warns))
	}
	if warns[0].Code != fhir.CodeDatasetFile || warns[1].Code != fhir.CodeNoDeclaration {
		t.Errorf("unexpected warning codes: %v", warns)
	}

	if got := warningDiagnostics(nil); got != nil {
		t.Errorf("expected no warnings for nil diagnostics, got %v", got)
	}
}
