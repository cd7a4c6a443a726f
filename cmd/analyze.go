package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/microfinance-cli/internal/analysis"
	"github.com/sells-group/microfinance-cli/internal/sheet"
)

var (
	analyzeFile   string
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run summary, financial and commission analyses on a spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := sheet.Load(analyzeFile)
		if err != nil {
			return err
		}
		rep := analysis.Run(cmd.Context(), t, nil)
		return writeReport(cmd.OutOrStdout(), rep, analyzeFormat)
	},
}

func writeReport(out io.Writer, rep *analysis.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(rep), "analyze: encode json")
	case "yaml":
		return writeYAML(out, rep)
	case "text":
		formatReport(out, rep)
		return nil
	default:
		return eris.Errorf("analyze: unknown format %q (want json, yaml or text)", format)
	}
}

// writeYAML renders v as block YAML in the field order of its JSON form.
func writeYAML(out io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "analyze: encode json")
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return eris.Wrap(err, "analyze: decode json as yaml")
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return eris.Wrap(err, "analyze: encode yaml")
	}
	return eris.Wrap(enc.Close(), "analyze: flush yaml")
}

// blockStyle drops the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func formatReport(out io.Writer, rep *analysis.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush() //nolint:errcheck

	if s := rep.Summary; s != nil {
		fmt.Fprintf(w, "Rows:\t%d\n", s.Rows)
		fmt.Fprintf(w, "Columns:\t%d\n", s.Columns)
	}
	if f := rep.Financial; f != nil {
		for _, c := range f.AmountColumns {
			fmt.Fprintf(w, "Total %s:\t%.2f\n", c, f.Totals[c])
		}
	}
	if c := rep.Commission; c != nil {
		fmt.Fprintf(w, "Total commissions:\t%.2f\n", c.TotalCommissions)
		for i, p := range c.TopPerformers {
			fmt.Fprintf(w, "  #%d %s\t%.2f\n", i+1, p.Agent, p.Total)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "ANALYSIS\tSTATUS\tDETAIL")
	for _, name := range []string{analysis.TypeSummary, analysis.TypeFinancial, analysis.TypeCommission} {
		o := rep.Outcomes[name]
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, o.Status, o.Error)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "spreadsheet to analyze (.xlsx or .csv)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "output format: json, yaml or text")
	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}
