package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
	"github.com/IKNL/PZP-FHIR-STU3/mappings"
)

// writeMappingFixtures lays out a resources directory with two profiles and
// a dataset definition, returning the directory and the dataset path.
func writeMappingFixtures(t *testing.T) (resourcesDir, datasetFile string) {
	t.Helper()

	resourcesDir = t.TempDir()
	WriteFixture(t, resourcesDir, "StructureDefinition-ACP-Behandelaanwijzing.json", CreateBehandelaanwijzingDefinition())
	WriteFixture(t, resourcesDir, "StructureDefinition-ACP-Wilsverklaring.json", CreateWilsverklaringDefinition())

	datasetFile = WriteFixture(t, t.TempDir(), "pzp_dataset.json", CreateDatasetDocument())
	return resourcesDir, datasetFile
}

// TestMappings_EndToEnd_GeneratesInclude runs the generator in normal mode
// and verifies the dataset table, the profile tables and the run summary.
func TestMappings_EndToEnd_GeneratesInclude(t *testing.T) {
	resourcesDir, datasetFile := writeMappingFixtures(t)
	outputFile := filepath.Join(t.TempDir(), "includes", "zib2017_stu3_mappings.md")

	res, err := mappings.Run(mappings.Options{
		ResourcesDir: resourcesDir,
		OutputFile:   outputFile,
		DatasetFile:  datasetFile,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Generator run failed: %v", err)
	}

	if res.FilesScanned != 2 {
		t.Errorf("Expected 2 scanned files, got %d", res.FilesScanned)
	}
	if res.MappingEntries != 4 {
		t.Errorf("Expected 4 mapping entries, got %d", res.MappingEntries)
	}
	if res.TotalConcepts != 4 {
		t.Errorf("Expected 4 dataset concepts, got %d", res.TotalConcepts)
	}
	if res.MappedConcepts != 3 || res.Unmapped != 1 || res.Orphans != 1 {
		t.Errorf("Expected 3 mapped, 1 unmapped and 1 orphan, got %d, %d and %d",
			res.MappedConcepts, res.Unmapped, res.Orphans)
	}
	if res.Coverage() != 75.0 {
		t.Errorf("Expected 75%% coverage, got %.1f", res.Coverage())
	}
	if res.Warnings() != 0 {
		t.Errorf("Expected no warnings, got %+v", res.Diagnostics)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("Failed to read generated document: %v", err)
	}
	doc := string(data)

	if !strings.Contains(doc, "#### Mappings by dataset ID") {
		t.Errorf("Generated document does not contain the dataset table")
	}
	if !strings.Contains(doc, "| 290 | Wilsverklaring |") {
		t.Errorf("Generated document does not contain the Wilsverklaring row")
	}
	if !strings.Contains(doc, "| 291 | &emsp;WilsverklaringType |") {
		t.Errorf("Generated document does not indent the nested concept")
	}
	if !strings.Contains(doc, `<a href="StructureDefinition-ACP-Wilsverklaring.html">ACPWilsverklaring</a>`) {
		t.Errorf("Generated document does not link the profile page")
	}
	if !strings.Contains(doc, "#### Mappings by profile") {
		t.Errorf("Generated document does not contain the profile tables")
	}
	if !strings.Contains(doc, "##### ACPWilsverklaring") {
		t.Errorf("Generated document does not contain the profile section")
	}
	if !strings.Contains(doc, "| `Consent.category` | 291 |") {
		t.Errorf("Generated document does not contain the category element row")
	}
	if strings.Contains(doc, "Overview of Unmapped Elements") {
		t.Errorf("Normal mode must not contain the develop sections")
	}
}

// TestMappings_EndToEnd_DevelopSections runs the generator in develop mode
// and verifies the unmapped, orphan and summary sections.
func TestMappings_EndToEnd_DevelopSections(t *testing.T) {
	resourcesDir, datasetFile := writeMappingFixtures(t)
	outputFile := filepath.Join(t.TempDir(), "zib2017_stu3_mappings.md")

	res, err := mappings.Run(mappings.Options{
		ResourcesDir: resourcesDir,
		OutputFile:   outputFile,
		DatasetFile:  datasetFile,
		Mode:         mappings.ModeDevelop,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Generator run failed: %v", err)
	}
	if res.Unmapped != 1 || res.Orphans != 1 {
		t.Fatalf("Expected 1 unmapped concept and 1 orphan, got %d and %d", res.Unmapped, res.Orphans)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("Failed to read generated document: %v", err)
	}
	doc := string(data)

	if !strings.Contains(doc, "##### Overview of Unmapped Elements") {
		t.Errorf("Develop mode does not contain the unmapped section")
	}
	if !strings.Contains(doc, "| 285 | Zorgproces |") {
		t.Errorf("Unmapped section does not list concept 285")
	}
	if !strings.Contains(doc, "##### Overview of Orphan Mappings") {
		t.Errorf("Develop mode does not contain the orphan section")
	}
	if !strings.Contains(doc, "| 999 |") {
		t.Errorf("Orphan section does not list the unknown concept id")
	}
	if !strings.Contains(doc, "##### Summary") {
		t.Errorf("Develop mode does not contain the summary section")
	}
	if !strings.Contains(doc, "- **Coverage**: 75.0%") {
		t.Errorf("Summary does not report the coverage")
	}
}

// TestMappings_EndToEnd_MissingDataset verifies the profile tables still
// render when the dataset definition cannot be read.
func TestMappings_EndToEnd_MissingDataset(t *testing.T) {
	resourcesDir, _ := writeMappingFixtures(t)
	outputFile := filepath.Join(t.TempDir(), "zib2017_stu3_mappings.md")

	res, err := mappings.Run(mappings.Options{
		ResourcesDir: resourcesDir,
		OutputFile:   outputFile,
		DatasetFile:  filepath.Join(t.TempDir(), "missing.json"),
		Mode:         mappings.ModeDevelop,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Generator run failed: %v", err)
	}

	if res.Warnings() != 1 {
		t.Fatalf("Expected a dataset warning, got %+v", res.Diagnostics)
	}
	if res.Diagnostics[len(res.Diagnostics)-1].Code != fhir.CodeDatasetFile {
		t.Errorf("Expected diagnostic code %s, got %+v", fhir.CodeDatasetFile, res.Diagnostics)
	}
	if res.TotalConcepts != 0 {
		t.Errorf("Expected no dataset concepts, got %d", res.TotalConcepts)
	}

	data, err := os.ReadFile(outputFile)
	if err != nil {
		t.Fatalf("Failed to read generated document: %v", err)
	}
	doc := string(data)

	if strings.Contains(doc, "#### Mappings by dataset ID") {
		t.Errorf("Dataset table must be omitted without a dataset definition")
	}
	if strings.Contains(doc, "Overview of Unmapped Elements") {
		t.Errorf("Develop sections must be omitted without a dataset definition")
	}
	if !strings.Contains(doc, "##### ACPBehandelaanwijzing") {
		t.Errorf("Profile tables must render without a dataset definition")
	}
}
