package commands

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/IKNL/PZP-FHIR-STU3/internal/cli/ui"
	"github.com/IKNL/PZP-FHIR-STU3/mappings"
)

const configFileName = "pzpfhir.yaml"

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a pzpfhir.yaml config file",
		Long: `Create a pzpfhir.yaml in the working directory.

Prompts for the resource directory, the mapping output file, the dataset
definition and the output mode, then writes the config file the other
commands read their defaults from. An existing file is only replaced
after confirmation.`,
		Example: `  cd pzp-fhir-stu3
  pzpfhir init`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	infoColor := color.New(color.FgCyan)

	if _, err := os.Stat(configFileName); err == nil {
		overwrite := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("%s already exists. Overwrite?", configFileName),
			Default: false,
		}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			infoColor.Printf("Keeping existing %s\n", configFileName)
			return nil
		}
	}

	questions := []*survey.Question{
		{
			Name: "resourcesDir",
			Prompt: &survey.Input{
				Message: "Resource directory:",
				Default: mappings.DefaultResourcesDir,
			},
			Validate: survey.Required,
		},
		{
			Name: "outputFile",
			Prompt: &survey.Input{
				Message: "Mapping output file:",
				Default: mappings.DefaultOutputFile,
			},
			Validate: survey.Required,
		},
		{
			Name: "datasetFile",
			Prompt: &survey.Input{
				Message: "Dataset definition file:",
				Default: mappings.DefaultDatasetFile,
			},
		},
		{
			Name: "mode",
			Prompt: &survey.Select{
				Message: "Mapping output mode:",
				Options: []string{mappings.ModeNormal, mappings.ModeDevelop},
				Default: mappings.ModeNormal,
			},
		},
	}

	answers := struct {
		ResourcesDir string
		OutputFile   string
		DatasetFile  string
		Mode         string
	}{}

	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	content := renderConfig(answers.ResourcesDir, answers.OutputFile, answers.DatasetFile, answers.Mode)
	if err := os.WriteFile(configFileName, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", configFileName, err)
	}

	ui.WriteSuccess(os.Stdout, fmt.Sprintf("Created %s", configFileName), false)
	return nil
}

// renderConfig builds the pzpfhir.yaml contents from the prompt answers. The
// prefix populator shares the resource directory with the mappings scanner.
func renderConfig(resourcesDir, outputFile, datasetFile, mode string) string {
	return fmt.Sprintf(`# pzpfhir configuration

transform:
  # Positional INPUT... OUTPUT arguments take precedence
  input_dirs: []
  output_dir: ""
  pattern: "*.json"

mappings:
  resources_dir: %s
  output_file: %s
  dataset_file: %s
  dataset_identity: %s
  mode: %s

prefix:
  input_dir: %s
`, resourcesDir, outputFile, datasetFile,
		mappings.DefaultDatasetIdentity, mode, resourcesDir)
}
