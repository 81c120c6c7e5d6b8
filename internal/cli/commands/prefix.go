package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/IKNL/PZP-FHIR-STU3/internal/cli/config"
	"github.com/IKNL/PZP-FHIR-STU3/internal/cli/ui"
	"github.com/IKNL/PZP-FHIR-STU3/questionnaire"
)

var (
	prefixInputDir          string
	prefixDryRun            bool
	prefixQuestionnaireOnly bool
	prefixResponseOnly      bool
	prefixVerbose           bool
)

// NewPrefixCommand creates the prefix command
func NewPrefixCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefix",
		Short: "Populate questionnaire item prefixes",
		Long: `Move numbering prefixes out of questionnaire item text.

Scans Questionnaire and QuestionnaireResponse documents for item text
starting with a numbering prefix such as "a)", "1." or "1)". On
Questionnaire items the prefix moves into the prefix element; on
QuestionnaireResponse items it is stripped. Changed files are rewritten
in place after the original is saved next to it as <name>.backup.`,
		Example: `  # Rewrite the configured resource directory
  pzpfhir prefix

  # Show what would change without writing
  pzpfhir prefix --dry-run

  # Only touch the questionnaires
  pzpfhir prefix --questionnaire-only`,
		Args: cobra.NoArgs,
		RunE: runPrefix,
	}

	cmd.Flags().StringVar(&prefixInputDir, "input-dir", "", "Directory holding the questionnaire documents")
	cmd.Flags().BoolVar(&prefixDryRun, "dry-run", false, "Report changes without writing any file")
	cmd.Flags().BoolVar(&prefixQuestionnaireOnly, "questionnaire-only", false, "Process Questionnaire documents only")
	cmd.Flags().BoolVar(&prefixResponseOnly, "response-only", false, "Process QuestionnaireResponse documents only")
	cmd.Flags().BoolVarP(&prefixVerbose, "verbose", "v", false, "Enable debug logging with per-file progress")

	return cmd
}

func runPrefix(cmd *cobra.Command, args []string) error {
	warningColor := color.New(color.FgYellow)

	// Load config
	cfg, err := config.Load()
	if err != nil {
		if prefixVerbose {
			warningColor.Printf("Warning: %v\n", err)
		}
	}

	logger := newLogger(prefixVerbose)
	defer logger.Sync()

	inputDir := prefixInputDir
	if inputDir == "" && cfg != nil {
		inputDir = cfg.Prefix.InputDir
	}

	res, err := questionnaire.Run(questionnaire.Options{
		InputDir:          inputDir,
		DryRun:            prefixDryRun,
		QuestionnaireOnly: prefixQuestionnaireOnly,
		ResponseOnly:      prefixResponseOnly,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	if prefixDryRun {
		fmt.Fprint(os.Stdout, ui.Info("dry run, no files written", false))
	}

	fmt.Printf("Examined %d questionnaire document(s)\n", res.Examined())

	if len(res.Changed) == 0 {
		fmt.Fprint(os.Stdout, ui.Info("all item prefixes already in place", false))
	} else {
		fmt.Println()
		table := ui.NewTable(os.Stdout, []string{"File", "Resource", "Items"}, nil)
		total := 0
		for _, change := range res.Changed {
			table.AddRow(change.File, change.Type, fmt.Sprintf("%d", change.Items))
			total += change.Items
		}
		table.Render()
		fmt.Println()

		if prefixDryRun {
			fmt.Printf("%d prefix(es) in %d file(s) would change\n", total, len(res.Changed))
		} else {
			ui.WriteSuccess(os.Stdout, fmt.Sprintf("Populated %d prefix(es) in %d file(s)", total, len(res.Changed)), false)
		}
	}

	if warns := warningDiagnostics(res.Diagnostics); len(warns) > 0 {
		outputDiagnosticsTerminal(warns, fmt.Sprintf("%d warning(s)", len(warns)), warningColor)
	}
	return nil
}
