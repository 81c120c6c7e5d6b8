package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IKNL/PZP-FHIR-STU3/fhir"
	"github.com/IKNL/PZP-FHIR-STU3/internal/cli/config"
	"github.com/IKNL/PZP-FHIR-STU3/internal/cli/ui"
	"github.com/IKNL/PZP-FHIR-STU3/transform"
)

var (
	transformJSON      bool
	transformVerbose   bool
	transformPattern   string
	transformResources []string
)

// NewTransformCommand creates the transform command
func NewTransformCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform [flags] [INPUT... OUTPUT]",
		Short: "Convert R4 resource documents to STU3",
		Long: `Convert FHIR R4 resource documents to their STU3 rendition.

Each input directory is scanned for files matching the pattern. Documents
are indexed first so PractitionerRole references can be resolved, then
every document of a registered resource type is converted and written to
the output directory as converted-<name>. Terminology and conformance
resources are published as-is and skipped here.

Without positional arguments the input and output paths come from the
transform section of pzpfhir.yaml. A single INPUT that is a file converts
just that document; OUTPUT is then the output file path.`,
		Example: `  # Convert the configured input directories
  pzpfhir transform

  # Convert two directories into output/stu3
  pzpfhir transform input/resources input/examples output/stu3

  # Convert a single document
  pzpfhir transform input/resources/Patient-anna.json output/stu3

  # Restrict the run to two resource types
  pzpfhir transform --resources Patient,Consent input/resources output/stu3

  # Machine-readable report
  pzpfhir transform --json input/resources output/stu3`,
		RunE: runTransform,
	}

	cmd.Flags().StringSliceVarP(&transformResources, "resources", "r", nil, "Comma-separated resource type allow-list")
	cmd.Flags().StringVar(&transformPattern, "pattern", "", "Filename glob matched inside each input directory (default \"*.json\")")
	cmd.Flags().BoolVar(&transformJSON, "json", false, "Output the run report in JSON format")
	cmd.Flags().BoolVarP(&transformVerbose, "verbose", "v", false, "Enable debug logging with per-file progress")

	return cmd
}

func runTransform(cmd *cobra.Command, args []string) error {
	successColor := color.New(color.FgGreen, color.Bold)
	errorColor := color.New(color.FgRed, color.Bold)
	infoColor := color.New(color.FgCyan)
	warningColor := color.New(color.FgYellow)

	// Load config
	cfg, err := config.Load()
	if err != nil {
		if transformVerbose {
			warningColor.Printf("Warning: %v\n", err)
		}
	}

	logger := newLogger(transformVerbose)
	defer logger.Sync()

	// Positional arguments take precedence over the config file
	var inputs []string
	var output string
	switch {
	case len(args) >= 2:
		inputs = args[:len(args)-1]
		output = args[len(args)-1]
	case len(args) == 1:
		return fmt.Errorf("transform needs at least one INPUT and one OUTPUT path")
	default:
		if cfg != nil {
			inputs = cfg.Transform.InputDirs
			output = cfg.Transform.OutputDir
		}
		if len(inputs) == 0 || output == "" {
			fmt.Fprint(os.Stderr, ui.ConfigError(
				"no input and output paths given, and transform.input_dirs/transform.output_dir are not configured",
				nil, false))
			return fmt.Errorf("no input and output paths configured")
		}
	}

	// Fail before processing when a named input path does not exist
	for _, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("input path %s does not exist", in)
		}
	}

	// Resource allow-list: the flag wins over the config file
	resourceList := transformResources
	if len(resourceList) == 0 && cfg != nil {
		resourceList = cfg.Transform.Resources
	}
	types, err := resolveTypes(resourceList)
	if err != nil {
		return err
	}

	// File pattern: the flag wins over the config file
	pattern := transformPattern
	if pattern == "" && cfg != nil {
		pattern = cfg.Transform.Pattern
	}

	// Single-file mode: exactly one input that is a regular file
	singleFile := false
	if len(inputs) == 1 {
		if info, err := os.Stat(inputs[0]); err == nil && !info.IsDir() {
			singleFile = true
		}
	}

	var res *transform.Result
	if singleFile {
		if !transformJSON {
			fmt.Fprint(os.Stderr, ui.Warning(
				"single file mode: PractitionerRole references cannot be resolved", nil, false))
		}
		outputFile := output
		if info, err := os.Stat(output); err == nil && info.IsDir() {
			outputFile = filepath.Join(output, transform.OutputPrefix+filepath.Base(inputs[0]))
		}
		res, err = transform.RunFile(inputs[0], outputFile, logger)
	} else {
		run := func() error {
			var runErr error
			res, runErr = transform.Run(transform.Options{
				InputDirs: inputs,
				OutputDir: output,
				Pattern:   pattern,
				Types:     types,
				Logger:    logger,
			})
			return runErr
		}
		if transformJSON || transformVerbose {
			err = run()
		} else {
			spinner := ui.NewSpinner(os.Stderr, ui.SpinnerOptions{Message: "Indexing and transforming resources"})
			spinner.Start()
			err = run()
			spinner.Stop()
		}
	}
	if err != nil {
		return err
	}

	if transformJSON {
		outputReportJSON(res)
	} else {
		outputReportTerminal(res, successColor, errorColor, infoColor, warningColor)
	}

	if res.HasFailures() {
		return fmt.Errorf("transformation failed")
	}
	return nil
}

// resolveTypes validates the allow-list against the registry and turns it
// into the engine's type filter. An unknown name fails the run with fuzzy
// suggestions.
func resolveTypes(resourceList []string) (map[string]bool, error) {
	if len(resourceList) == 0 {
		return nil, nil
	}

	registered := transform.Types()
	types := make(map[string]bool, len(resourceList))
	for _, name := range resourceList {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := transform.Lookup(name); !ok {
			suggestions := ui.FindSimilar(name, registered, nil)
			fmt.Fprint(os.Stderr, ui.TransformError(
				fmt.Sprintf("unknown resource type '%s'", name), suggestions, false))
			return nil, fmt.Errorf("unknown resource type %q", name)
		}
		types[name] = true
	}
	if len(types) == 0 {
		return nil, nil
	}
	return types, nil
}

// newLogger returns a development logger under verbose mode and a nop
// logger otherwise.
func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func outputReportJSON(res *transform.Result) {
	diags := res.Diagnostics
	if diags == nil {
		diags = []fhir.Diagnostic{}
	}

	output := struct {
		Success bool    `json:"success"`
		RunID   string  `json:"run_id"`
		Elapsed float64 `json:"elapsed"`
		Counts  struct {
			Discovered      int `json:"discovered"`
			Transformed     int `json:"transformed"`
			SkippedByType   int `json:"skipped_by_type"`
			SkippedByFilter int `json:"skipped_by_filter"`
			Failed          int `json:"failed"`
			Warnings        int `json:"warnings"`
		} `json:"counts"`
		Diagnostics []fhir.Diagnostic `json:"diagnostics"`
	}{
		Success:     !res.HasFailures(),
		RunID:       res.RunID,
		Elapsed:     res.Elapsed.Seconds(),
		Diagnostics: diags,
	}
	output.Counts.Discovered = res.Discovered
	output.Counts.Transformed = res.Transformed
	output.Counts.SkippedByType = res.SkippedByType
	output.Counts.SkippedByFilter = res.SkippedByFilter
	output.Counts.Failed = res.Failed
	output.Counts.Warnings = res.Warnings

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

func outputReportTerminal(res *transform.Result, successColor, errorColor, infoColor, warningColor *color.Color) {
	fmt.Println()
	successColor.Printf("Transformation complete in %.2fs\n", res.Elapsed.Seconds())
	successColor.Printf("  ✓ Transformed: %d\n", res.Transformed)
	infoColor.Printf("  ⏭ Skipped (type): %d\n", res.SkippedByType)
	infoColor.Printf("  ⏭ Skipped (filter): %d\n", res.SkippedByFilter)
	warningColor.Printf("  ⚠ Warnings: %d\n", res.Warnings)
	errorColor.Printf("  ✗ Failed: %d\n", res.Failed)

	if errs := res.Errors(); len(errs) > 0 {
		outputDiagnosticsTerminal(errs, fmt.Sprintf("%d document(s) failed", len(errs)), errorColor)
	}
	if warns := res.WarningDiagnostics(); len(warns) > 0 {
		outputDiagnosticsTerminal(warns, fmt.Sprintf("%d warning(s)", len(warns)), warningColor)
	}
}

func outputDiagnosticsTerminal(diags []fhir.Diagnostic, heading string, headingColor *color.Color) {
	headingColor.Fprintf(os.Stderr, "\n%s:\n\n", heading)

	for i, d := range diags {
		fmt.Fprintf(os.Stderr, "%d. [%s] %s\n", i+1, d.Code, d.File)
		fmt.Fprintf(os.Stderr, "   %s\n", d.Message)

		if i < len(diags)-1 {
			fmt.Fprintln(os.Stderr, strings.Repeat("-", 60))
		}
	}
	fmt.Fprintln(os.Stderr)
}
