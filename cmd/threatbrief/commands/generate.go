package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/threatbrief/am"
	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/evidence"
	"github.com/teranos/threatbrief/generator"
	"github.com/teranos/threatbrief/logger"
	"github.com/teranos/threatbrief/pipeline"
	"github.com/teranos/threatbrief/report"
)

// GenerateCmd runs one report from an evidence file
var GenerateCmd = &cobra.Command{
	Use:   "generate [evidence-file]",
	Short: "Generate one incident report from an evidence file",
	Long: `Run the stage pipeline on a detected threat and its evidence, then
render the report.

Evidence is read from the file argument, or stdin when it is "-" or omitted.
Its format follows the file extension (.json, .csv, .yaml) unless --input-format
is set.

Examples:
  threatbrief generate alert.json --threat Ransomware
  threatbrief generate flows.csv --threat "Port scan" --format html -o scan.html
  cat alert.json | threatbrief generate --markdown > report.md
  threatbrief generate alert.json --stream --blueprint compact`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

var (
	genThreat      string
	genInputFormat string
	genFormat      string
	genOut         string
	genBlueprint   string
	genParallelism int
	genStream      bool
	genMarkdown    bool
)

func init() {
	GenerateCmd.Flags().StringVarP(&genThreat, "threat", "t", "", "Detected threat label (default: Safe)")
	GenerateCmd.Flags().StringVar(&genInputFormat, "input-format", "", "Evidence format: json, csv, yaml (default: from file extension)")
	GenerateCmd.Flags().StringVarP(&genFormat, "format", "f", "", "Output format: pdf, html (overrides render.format)")
	GenerateCmd.Flags().StringVarP(&genOut, "out", "o", "", "Output path (default: report.<ext> in the working directory)")
	GenerateCmd.Flags().StringVar(&genBlueprint, "blueprint", "", "Stage blueprint: full, compact, or a YAML file")
	GenerateCmd.Flags().IntVar(&genParallelism, "parallelism", 0, "Concurrent independent stages (overrides pipeline.parallelism)")
	GenerateCmd.Flags().BoolVar(&genStream, "stream", false, "Print each stage output as it completes")
	GenerateCmd.Flags().BoolVar(&genMarkdown, "markdown", false, "Skip rendering and write the Markdown report")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyGenerateOverrides(cfg)

	raw, format, err := readEvidence(cmd, args)
	if err != nil {
		return err
	}

	svc, err := generator.NewFromConfig(cfg, nil, logger.ComponentLogger("generator"))
	if err != nil {
		return err
	}

	// Progress goes to stderr so stdout can carry the report
	pterm.SetDefaultOutput(cmd.ErrOrStderr())
	defer pterm.SetDefaultOutput(os.Stdout)

	total := len(svc.Blueprint().Definitions)
	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Running %d stages (%s)", total, svc.Blueprint().Name))
	done := 0

	req := generator.Request{
		Threat:   genThreat,
		Evidence: raw,
		Format:   format,
		OnStage: func(ev pipeline.Event) {
			done++
			spinner.UpdateText(fmt.Sprintf("[%d/%d] %s finished", done, total, ev.Stage.Role.DisplayName()))
			if genStream {
				pterm.DefaultSection.Printfln("%s (%s)", ev.Stage.ID, ev.Stage.Role.DisplayName())
				pterm.Println(ev.Output)
			}
		},
	}

	if genMarkdown {
		out, err := svc.Run(cmd.Context(), req)
		if err != nil {
			spinner.Fail(describeRunError(err))
			return err
		}
		spinner.Success(fmt.Sprintf("Report generated in %s", out.Duration.Round(time.Millisecond)))

		doc, err := report.Project(out.Report(), out.RunID, time.Now())
		if err != nil {
			return err
		}
		return writeOutput(cmd, []byte(doc.FullMarkdown()))
	}

	out, err := svc.GenerateReport(cmd.Context(), req)
	if err != nil {
		spinner.Fail(describeRunError(err))
		return err
	}
	spinner.Success(fmt.Sprintf("Report generated in %s", out.Duration.Round(time.Millisecond)))

	data, err := out.Artifact.Read()
	if err != nil {
		return err
	}
	if !cfg.Render.KeepArtifacts {
		defer out.Artifact.Remove()
	}

	if genOut == "" {
		genOut = "report" + filepath.Ext(out.Artifact.Path)
	}
	if err := writeOutput(cmd, data); err != nil {
		return err
	}
	pterm.Success.Printfln("Wrote %s (%d bytes, run %s)", genOut, len(data), out.RunID)
	return nil
}

func applyGenerateOverrides(cfg *am.Config) {
	if genFormat != "" {
		cfg.Render.Format = genFormat
	}
	if genBlueprint != "" {
		cfg.Pipeline.Blueprint = genBlueprint
	}
	if genParallelism > 0 {
		cfg.Pipeline.Parallelism = genParallelism
	}
}

// readEvidence reads the evidence argument or stdin
func readEvidence(cmd *cobra.Command, args []string) ([]byte, evidence.Format, error) {
	var (
		raw  []byte
		err  error
		name string
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		name = args[0]
		raw, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read evidence")
	}

	if genInputFormat != "" {
		format, err := evidence.ParseFormat(genInputFormat)
		return raw, format, err
	}
	return raw, evidence.FormatFromFilename(name), nil
}

// writeOutput writes to --out, or stdout when it is "-" or unset in markdown mode
func writeOutput(cmd *cobra.Command, data []byte) error {
	if genOut == "" || genOut == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(genOut, data, am.DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", genOut)
	}
	return nil
}

// describeRunError names the failed stage when there is one
func describeRunError(err error) string {
	if pe, ok := pipeline.AsPipelineError(err); ok {
		return fmt.Sprintf("Stage %s (%s) failed", pe.Stage, pe.Role)
	}
	return "Report generation failed"
}
