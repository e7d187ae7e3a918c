package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/clinlex/medfuse/internal/application"
	"github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	"github.com/clinlex/medfuse/internal/intelligence/medner"
	"github.com/clinlex/medfuse/pkg/client"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

var (
	analyzeFile      string
	analyzeThreshold float64
	analyzeNoBoost   bool
)

// newAnalyzeCmd creates the analyze command.
func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Extract clinical entities from Italian text",
		Long: "Analyze Italian clinical text and print the extracted PROBLEM,\n" +
			"TREATMENT and TEST entities. The text comes from the argument, from\n" +
			"--file (one text per line, analyzed as a batch) or from stdin.\n" +
			"Analysis runs in-process unless --server points at an API server.",
		Example: `  medfuse analyze "Il paziente presenta forti mal di testa."
  medfuse analyze --file referti.txt -o json
  cat referto.txt | medfuse analyze
  medfuse analyze --server http://localhost:8080 "Prescritto paracetamolo."`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&analyzeFile, "file", "f", "", "read texts from file, one per line")
	cmd.Flags().Float64Var(&analyzeThreshold, "threshold", -1, "confidence threshold override (0.0-1.0)")
	cmd.Flags().BoolVar(&analyzeNoBoost, "no-boost", false, "disable contextual boosting")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	if analyzeThreshold >= 0 && analyzeThreshold > 1 {
		return apperrors.InvalidParam(
			fmt.Sprintf("threshold must be between 0.0 and 1.0, got %.2f", analyzeThreshold))
	}

	texts, batch, err := gatherInputTexts(cmd, args)
	if err != nil {
		return err
	}
	if err := checkInputLimits(cliCtx, texts); err != nil {
		return err
	}

	ctx := cmd.Context()
	if cliCtx.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliCtx.Timeout)
		defer cancel()
	}

	var results []*medner.AnalysisResult
	if cliCtx.ServerAddr != "" {
		results, err = analyzeRemote(ctx, cliCtx, texts, batch)
	} else {
		results, err = analyzeLocal(ctx, cliCtx, texts)
	}
	if err != nil {
		return err
	}

	out, err := formatAnalysisResults(results, batch, cliCtx.OutputFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)

	total := 0
	for _, r := range results {
		total += r.TotalEntities
	}
	cliCtx.Logger.Debug("analysis completed",
		logging.Int("texts", len(texts)),
		logging.Int("entities", total),
		logging.Bool("remote", cliCtx.ServerAddr != ""))

	return nil
}

// gatherInputTexts resolves the input source: --file beats the positional
// argument beats piped stdin. The batch flag is true when the input came
// from a file, where each line is its own text.
func gatherInputTexts(cmd *cobra.Command, args []string) ([]string, bool, error) {
	if analyzeFile != "" {
		if len(args) > 0 {
			return nil, false, apperrors.InvalidParam("--file and a text argument are mutually exclusive")
		}
		f, err := os.Open(analyzeFile)
		if err != nil {
			return nil, false, apperrors.Wrap(err, apperrors.ErrCodeBadRequest,
				fmt.Sprintf("cannot open input file %q", analyzeFile))
		}
		defer f.Close()

		var texts []string
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				texts = append(texts, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, false, apperrors.Wrap(err, apperrors.ErrCodeBadRequest,
				fmt.Sprintf("cannot read input file %q", analyzeFile))
		}
		if len(texts) == 0 {
			return nil, false, apperrors.InvalidParam(fmt.Sprintf("input file %q contains no text", analyzeFile))
		}
		return texts, true, nil
	}

	if len(args) == 1 {
		return []string{args[0]}, false, nil
	}

	if in, ok := cmd.InOrStdin().(*os.File); ok {
		if stat, err := in.Stat(); err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
			return nil, false, apperrors.InvalidParam("no input text; pass a text argument, --file or pipe stdin")
		}
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "cannot read stdin")
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, false, apperrors.InvalidParam("no input text; pass a text argument, --file or pipe stdin")
	}
	return []string{text}, false, nil
}

// checkInputLimits applies the configured size caps so local runs fail the
// same way a server would.
func checkInputLimits(cliCtx *CLIContext, texts []string) error {
	if max := cliCtx.Config.Analysis.MaxBatchTexts; max > 0 && len(texts) > max {
		return apperrors.InvalidParam(
			fmt.Sprintf("batch has %d texts, maximum is %d", len(texts), max))
	}
	if max := cliCtx.Config.Analysis.MaxTextChars; max > 0 {
		for i, text := range texts {
			if n := len([]rune(text)); n > max {
				return apperrors.New(apperrors.ErrCodeTextTooLong,
					fmt.Sprintf("text %d has %d characters, maximum is %d", i+1, n, max))
			}
		}
	}
	return nil
}

// analysisOptions maps the analyze flags onto per-call pipeline options.
func analysisOptions() *medner.Options {
	opts := &medner.Options{}
	if analyzeThreshold >= 0 {
		t := analyzeThreshold
		opts.ConfidenceThreshold = &t
	}
	if analyzeNoBoost {
		off := false
		opts.EnableContextualBoost = &off
	}
	return opts
}

// analyzeLocal builds an in-process engine from the loaded configuration
// and runs every text through it.
func analyzeLocal(ctx context.Context, cliCtx *CLIContext, texts []string) ([]*medner.AnalysisResult, error) {
	engine, err := application.BuildEngine(cliCtx.Config, cliCtx.Logger, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Shutdown(shutCtx)
	}()

	opts := analysisOptions()
	results := make([]*medner.AnalysisResult, 0, len(texts))
	for _, text := range texts {
		result, err := engine.Pipeline.AnalyzeWithOptions(ctx, text, opts)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// analyzeRemote sends the texts to a running API server.
func analyzeRemote(ctx context.Context, cliCtx *CLIContext, texts []string, batch bool) ([]*medner.AnalysisResult, error) {
	if cliCtx.Client == nil {
		return nil, apperrors.InvalidState("API client not initialized")
	}

	if batch {
		resp, err := cliCtx.Client.AnalyzeBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		results := make([]*medner.AnalysisResult, 0, len(resp.Results))
		for _, r := range resp.Results {
			results = append(results, resultFromDTO(r))
		}
		return results, nil
	}

	req := client.AnalyzeRequest{Text: texts[0]}
	if analyzeThreshold >= 0 {
		t := analyzeThreshold
		req.ConfidenceThreshold = &t
	}
	if analyzeNoBoost {
		off := false
		req.Enhancement = &off
	}
	result, err := cliCtx.Client.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	return []*medner.AnalysisResult{resultFromDTO(result)}, nil
}

// resultFromDTO converts a client result into the domain shape so that
// local and remote runs render identically.
func resultFromDTO(r *client.AnalysisResult) *medner.AnalysisResult {
	if r == nil {
		return &medner.AnalysisResult{}
	}
	out := &medner.AnalysisResult{
		Text:                r.Text,
		Entities:            make([]medner.Entity, 0, len(r.Entities)),
		EntityCounts:        make(map[medner.EntityKind]int, len(r.EntityCounts)),
		SourceDistribution:  make(map[medner.SourceKind]int, len(r.SourceDistribution)),
		TotalEntities:       r.TotalEntities,
		AverageConfidence:   r.AverageConfidence,
		ConfidenceStd:       r.ConfidenceStd,
		MinConfidence:       r.MinConfidence,
		MaxConfidence:       r.MaxConfidence,
		AverageBoost:        r.AverageBoost,
		ConfidenceThreshold: r.ConfidenceThreshold,
		EnhancementApplied:  r.EnhancementApplied,
		ProcessingTimeMs:    r.ProcessingTimeMs,
	}
	for _, e := range r.Entities {
		entity := medner.Entity{
			Candidate: medner.Candidate{
				Text:            e.Text,
				Label:           medner.EntityKind(e.Label),
				Start:           e.Start,
				End:             e.End,
				Confidence:      e.Confidence,
				Source:          medner.SourceKind(e.Source),
				ContextualBoost: e.ContextualBoost,
			},
		}
		for _, src := range e.MergeProvenance {
			entity.MergeProvenance = append(entity.MergeProvenance, medner.SourceKind(src))
		}
		out.Entities = append(out.Entities, entity)
	}
	for kind, n := range r.EntityCounts {
		out.EntityCounts[medner.EntityKind(kind)] = n
	}
	for src, n := range r.SourceDistribution {
		out.SourceDistribution[medner.SourceKind(src)] = n
	}
	return out
}

// formatAnalysisResults renders one or more results in the requested
// output format.
func formatAnalysisResults(results []*medner.AnalysisResult, batch bool, format string) (string, error) {
	if strings.ToLower(format) == "json" {
		var payload interface{} = results
		if !batch && len(results) == 1 {
			payload = results[0]
		}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	}

	asTable := strings.ToLower(format) == "table"
	var sb strings.Builder
	for i, result := range results {
		if batch {
			sb.WriteString(fmt.Sprintf("\n--- text %d of %d ---\n", i+1, len(results)))
		}
		if asTable {
			sb.WriteString(renderResultTable(result))
		} else {
			sb.WriteString(renderResultText(result))
		}
	}
	if batch {
		total := 0
		var totalMs int64
		for _, r := range results {
			total += r.TotalEntities
			totalMs += r.ProcessingTimeMs
		}
		sb.WriteString(fmt.Sprintf("\nBatch total: %d entities across %d texts in %d ms\n",
			total, len(results), totalMs))
	}
	return sb.String(), nil
}

// renderResultTable renders one result as a bordered table with a summary
// footer.
func renderResultTable(result *medner.AnalysisResult) string {
	var sb strings.Builder

	if len(result.Entities) == 0 {
		sb.WriteString("No entities found.\n")
		sb.WriteString(renderSummary(result))
		return sb.String()
	}

	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"#", "Text", "Label", "Span", "Conf", "Source", "Boost"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for i, e := range result.Entities {
		boost := ""
		if e.ContextualBoost > 0 {
			boost = fmt.Sprintf("+%.2f", e.ContextualBoost)
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			truncateString(e.Text, 40),
			colorizeLabel(e.Label),
			fmt.Sprintf("[%d,%d)", e.Start, e.End),
			colorizeConfidence(e.Confidence),
			string(e.Source),
			boost,
		})
	}
	table.Render()

	sb.WriteString(renderSummary(result))
	return sb.String()
}

// renderResultText renders one result as plain entity lines.
func renderResultText(result *medner.AnalysisResult) string {
	var sb strings.Builder

	if len(result.Entities) == 0 {
		sb.WriteString("No entities found.\n")
		sb.WriteString(renderSummary(result))
		return sb.String()
	}

	for i, e := range result.Entities {
		boost := ""
		if e.ContextualBoost > 0 {
			boost = fmt.Sprintf("  boost=+%.2f", e.ContextualBoost)
		}
		sb.WriteString(fmt.Sprintf("%2d. %-10s %q  [%d,%d)  conf=%s  source=%s%s\n",
			i+1,
			colorizeLabel(e.Label),
			e.Text,
			e.Start, e.End,
			colorizeConfidence(e.Confidence),
			e.Source,
			boost))
	}
	sb.WriteString(renderSummary(result))
	return sb.String()
}

// renderSummary renders the aggregate footer shared by the text and table
// formats.
func renderSummary(result *medner.AnalysisResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\nEntities: %d", result.TotalEntities))
	if result.TotalEntities > 0 {
		parts := make([]string, 0, len(result.EntityCounts))
		for _, kind := range []medner.EntityKind{medner.KindProblem, medner.KindTreatment, medner.KindTest} {
			if n := result.EntityCounts[kind]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", strings.ToLower(string(kind)), n))
			}
		}
		if len(parts) > 0 {
			sb.WriteString(" (" + strings.Join(parts, ", ") + ")")
		}
		sb.WriteString(fmt.Sprintf("\nConfidence: avg %.2f, range [%.2f, %.2f]",
			result.AverageConfidence, result.MinConfidence, result.MaxConfidence))
	}
	sb.WriteString(fmt.Sprintf("\nThreshold: %.2f", result.ConfidenceThreshold))
	if result.EnhancementApplied {
		sb.WriteString("  (contextual boost on)")
	}
	sb.WriteString(fmt.Sprintf("\nProcessing: %d ms\n", result.ProcessingTimeMs))
	return sb.String()
}

// colorizeLabel colors an entity label by its category.
func colorizeLabel(label medner.EntityKind) string {
	switch label {
	case medner.KindProblem:
		return color.RedString(string(label))
	case medner.KindTreatment:
		return color.GreenString(string(label))
	case medner.KindTest:
		return color.YellowString(string(label))
	default:
		return string(label)
	}
}

// colorizeConfidence colors a confidence value by band.
func colorizeConfidence(conf float64) string {
	s := fmt.Sprintf("%.2f", conf)
	switch {
	case conf >= 0.8:
		return color.GreenString(s)
	case conf >= 0.5:
		return color.YellowString(s)
	default:
		return s
	}
}
