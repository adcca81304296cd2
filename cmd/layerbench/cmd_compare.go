package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/engine"
	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/publish"
	"github.com/nvandessel/layerbench/internal/report"
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <a-run> <b-run>",
		Short: "Compare two protocol runs layer by layer",
		Long: `Ingest two per-protocol run records (JSON or YAML), seal them, and
compare every shared metric. Protocol A is the first argument.

Rejected trials are reported as warnings; the remaining trials are still
compared. The result is stored in the history and published to the
configured broker when those are enabled.

Examples:
  layerbench compare lwm2m.json matter.json
  layerbench compare lwm2m.json matter.json --json --out result.json
  layerbench compare a.yaml b.yaml --no-store --no-publish`,
		Args: cobra.ExactArgs(2),
		RunE: runCompare,
	}

	cmd.Flags().String("out", "", "Also write the result JSON to this file")
	cmd.Flags().Bool("no-store", false, "Do not save the result to the history")
	cmd.Flags().Bool("no-publish", false, "Do not publish the result")
	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	app, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	eng, err := app.engine()
	if err != nil {
		return err
	}

	handles := make([]*engine.Handle, 2)
	for i, path := range args {
		rec, err := readRecord(path)
		if err != nil {
			return err
		}
		h, rep, err := eng.IngestRecord(rec, engine.IngestOptions{Seal: true})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, te := range rep.Rejected {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s: %v\n", path, te)
		}
		if len(rep.Accepted) == 0 {
			return fmt.Errorf("%s: no usable trials", path)
		}
		handles[i] = h
	}

	res, err := eng.Compare(handles[0], handles[1])
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out != "" {
		if err := writeResult(out, res); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	noStore, _ := cmd.Flags().GetBool("no-store")
	if app.cfg.Store.Enabled && !noStore {
		s, err := app.openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Save(ctx, res); err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
	}

	noPublish, _ := cmd.Flags().GetBool("no-publish")
	if app.cfg.Publish.Enabled && !noPublish {
		p := publish.New(app.cfg.Publish, publish.WithLogger(app.logger))
		defer p.Close()
		if err := p.Publish(ctx, res); err != nil {
			// The comparison itself succeeded; report and continue.
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}

	if app.jsonOut {
		return report.Encode(cmd.OutOrStdout(), res)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

// readRecord loads a run record; .yaml and .yml files are read as YAML,
// everything else as JSON.
func readRecord(path string) (models.ProtocolRunRecord, error) {
	var rec models.ProtocolRunRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("failed to read run record: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &rec)
	default:
		err = json.Unmarshal(data, &rec)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to parse run record %s: %w", path, err)
	}
	if rec.Protocol == "" {
		return rec, fmt.Errorf("run record %s has no protocol", path)
	}
	return rec, nil
}

func writeResult(path string, res *report.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := report.Encode(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printResult(w io.Writer, res *report.Result) {
	fmt.Fprintf(w, "Comparison %s\n", res.ID())
	fmt.Fprintf(w, "A: %s (%d trials)   B: %s (%d trials)\n\n",
		res.ProtocolA(), res.SummaryA().Trials, res.ProtocolB(), res.SummaryB().Trials)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tMETRIC\tUNIT\tA MEAN\tB MEAN\tDELTA\tP\tWINNER")
	for _, v := range res.Verdicts() {
		winner := string(v.Winner)
		if v.MissingFrom != "" {
			winner += " (missing from " + v.MissingFrom + ")"
		}
		if v.Flagged {
			winner += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			v.Layer, v.MetricName, v.Unit,
			formatPtr(v.ProtocolAMean, "%.3f"), formatPtr(v.ProtocolBMean, "%.3f"),
			formatPtr(v.DeltaPct, "%+.2f%%"), formatPtr(v.PValue, "%.4f"), winner)
	}
	tw.Flush()

	wins := res.Winners()
	fmt.Fprintf(w, "\nWins: A %d, B %d, tie %d, inconclusive %d, incomparable %d\n",
		wins[compare.WinnerA], wins[compare.WinnerB], wins[compare.WinnerTie],
		wins[compare.WinnerInconclusive], wins[compare.WinnerIncomparable])
	fmt.Fprintf(w, "Overall efficiency: A %s, B %s\n",
		formatFloat(res.OverallEfficiencyA(), "%.3f"), formatFloat(res.OverallEfficiencyB(), "%.3f"))
	if a, b := res.SummaryA(), res.SummaryB(); a.Partial || b.Partial {
		fmt.Fprintln(w, "* metric flagged by a rejected trial; run is partial")
	}
}

func formatPtr(p *float64, format string) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf(format, *p)
}

func formatFloat(v float64, format string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}
