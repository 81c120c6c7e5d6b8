package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
	"github.com/IKNL/PZP-FHIR-STU3/internal/cli/config"
	"github.com/IKNL/PZP-FHIR-STU3/internal/cli/ui"
	"github.com/IKNL/PZP-FHIR-STU3/mappings"
)

var (
	mappingsResourcesDir string
	mappingsOutput       string
	mappingsDataset      string
	mappingsMode         string
	mappingsVerbose      bool
)

// NewMappingsCommand creates the mappings command
func NewMappingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Generate the zib mapping tables",
		Long: `Generate the Markdown mapping tables for the implementation guide.

Scans the StructureDefinition documents in the resources directory,
collects their dataset mappings and rewrites the mapping include file:
one table per profile plus a consolidated table ordered by dataset
concept. Develop mode appends unmapped-concept and orphan-mapping
sections with a coverage summary.`,
		Example: `  # Rewrite the configured mapping include
  pzpfhir mappings

  # Scan a different build output
  pzpfhir mappings --resources-dir fsh-generated/resources

  # Coverage report while working on the profiles
  pzpfhir mappings --mode develop`,
		Args: cobra.NoArgs,
		RunE: runMappings,
	}

	cmd.Flags().StringVar(&mappingsResourcesDir, "resources-dir", "", "Directory holding the StructureDefinition documents")
	cmd.Flags().StringVarP(&mappingsOutput, "output", "o", "", "Markdown file to write")
	cmd.Flags().StringVar(&mappingsDataset, "dataset", "", "Dataset definition JSON file")
	cmd.Flags().StringVar(&mappingsMode, "mode", "", "Output mode: normal or develop")
	cmd.Flags().BoolVarP(&mappingsVerbose, "verbose", "v", false, "Enable debug logging with per-file progress")

	return cmd
}

func runMappings(cmd *cobra.Command, args []string) error {
	warningColor := color.New(color.FgYellow)

	// Load config
	cfg, err := config.Load()
	if err != nil {
		if mappingsVerbose {
			warningColor.Printf("Warning: %v\n", err)
		}
	}

	logger := newLogger(mappingsVerbose)
	defer logger.Sync()

	// Flags win over the config file; the generator fills in the defaults
	opts := mappings.Options{
		ResourcesDir: mappingsResourcesDir,
		OutputFile:   mappingsOutput,
		DatasetFile:  mappingsDataset,
		Mode:         mappingsMode,
		Logger:       logger,
	}
	if cfg != nil {
		if opts.ResourcesDir == "" {
			opts.ResourcesDir = cfg.Mappings.ResourcesDir
		}
		if opts.OutputFile == "" {
			opts.OutputFile = cfg.Mappings.OutputFile
		}
		if opts.DatasetFile == "" {
			opts.DatasetFile = cfg.Mappings.DatasetFile
		}
		if opts.Mode == "" {
			opts.Mode = cfg.Mappings.Mode
		}
		opts.DatasetIdentity = cfg.Mappings.DatasetIdentity
		opts.IgnoreUnmapped = cfg.Mappings.IgnoreUnmapped
	}

	switch opts.Mode {
	case "", mappings.ModeNormal, mappings.ModeDevelop:
	default:
		return fmt.Errorf("unknown mode %q (valid: %s, %s)", opts.Mode, mappings.ModeNormal, mappings.ModeDevelop)
	}

	resourcesDir := opts.ResourcesDir
	if resourcesDir == "" {
		resourcesDir = mappings.DefaultResourcesDir
	}
	if _, err := os.Stat(resourcesDir); err != nil {
		fmt.Fprint(os.Stderr, ui.MappingsError(
			fmt.Sprintf("resources directory %s does not exist", resourcesDir), nil, false))
		return fmt.Errorf("resources directory %s does not exist", resourcesDir)
	}

	var res *mappings.Result
	run := func() error {
		var runErr error
		res, runErr = mappings.Run(opts)
		return runErr
	}
	if mappingsVerbose {
		err = run()
	} else {
		err = ui.WithSpinner(os.Stderr, "Generating mapping tables", false, run)
	}
	if err != nil {
		return err
	}

	fmt.Println()
	summary := ui.NewKeyValueTable(os.Stdout, false)
	summary.AddRow("Files scanned", fmt.Sprintf("%d", res.FilesScanned))
	summary.AddRow("Mapping entries", fmt.Sprintf("%d", res.MappingEntries))
	summary.AddRow("Output", res.OutputFile)
	summary.Render()

	if opts.Mode == mappings.ModeDevelop {
		fmt.Println()
		ui.Header(os.Stdout, "Mapping coverage", false)
		table := ui.NewTable(os.Stdout, []string{"Concepts", "Mapped", "Coverage", "Unmapped", "Orphans"}, nil)
		table.AddRow(
			fmt.Sprintf("%d", res.TotalConcepts),
			fmt.Sprintf("%d", res.MappedConcepts),
			fmt.Sprintf("%.1f%%", res.Coverage()),
			fmt.Sprintf("%d", res.Unmapped),
			fmt.Sprintf("%d", res.Orphans),
		)
		table.Render()
	}

	if warns := warningDiagnostics(res.Diagnostics); len(warns) > 0 {
		outputDiagnosticsTerminal(warns, fmt.Sprintf("%d warning(s)", len(warns)), warningColor)
	}

	ui.WriteSuccess(os.Stdout, fmt.Sprintf("Mappings written to %s", res.OutputFile), false)
	return nil
}

func warningDiagnostics(diags []fhir.Diagnostic) []fhir.Diagnostic {
	var warns []fhir.Diagnostic
	for _, d := range diags {
		if d.Severity == fhir.Warning {
			warns = append(warns, d)
		}
	}
	return warns
}
