package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/layerbench/internal/models"
	"github.com/nvandessel/layerbench/internal/pathutil"
	"github.com/nvandessel/layerbench/internal/simulation"
	"github.com/nvandessel/layerbench/internal/store"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate run records from synthetic protocol drivers",
		Long: `Run synthetic drivers through the measurement harness and write
ProtocolRunRecords that 'layerbench compare' can read.

With --preset a single built-in driver is run and its record is written to
--out (or stdout). With --scenario every driver in the YAML scenario runs
concurrently and each record is written to <out-dir>/<protocol>.json.

Examples:
  layerbench simulate --preset lwm2m --trials 30 --seed 1 --out lwm2m.json
  layerbench simulate --scenario bench.yaml --out-dir runs/`,
		RunE: runSimulate,
	}

	cmd.Flags().String("preset", "", "Built-in driver to run (lwm2m, matter)")
	cmd.Flags().String("scenario", "", "YAML scenario file")
	cmd.Flags().Int("trials", 30, "Trials per driver (overrides the scenario)")
	cmd.Flags().Int64("seed", 1, "Random seed (overrides the scenario)")
	cmd.Flags().String("out", "", "Output file for --preset (default stdout)")
	cmd.Flags().String("out-dir", ".", "Output directory for --scenario")
	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	app, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	preset, _ := cmd.Flags().GetString("preset")
	scenarioPath, _ := cmd.Flags().GetString("scenario")
	if (preset == "") == (scenarioPath == "") {
		return fmt.Errorf("specify exactly one of --preset or --scenario")
	}

	sc := simulation.Scenario{Name: preset, Drivers: []simulation.DriverSpec{{Preset: preset}}}
	if scenarioPath != "" {
		sc, err = simulation.LoadScenarioFile(scenarioPath)
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("trials") || sc.Trials == 0 {
		sc.Trials, _ = cmd.Flags().GetInt("trials")
	}
	if cmd.Flags().Changed("seed") || sc.Seed == 0 {
		sc.Seed, _ = cmd.Flags().GetInt64("seed")
	}

	records, err := simulation.NewRunner(simulation.WithLogger(app.logger)).Run(cmd.Context(), sc)
	if err != nil {
		return err
	}

	if preset != "" {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return writeRecord(cmd.OutOrStdout(), records[0])
		}
		if err := writeRecordFile(out, records[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d trials of %s to %s\n", sc.Trials, records[0].Protocol, out)
		return nil
	}

	outDir, _ := cmd.Flags().GetString("out-dir")
	if err := store.EnsureDir(outDir); err != nil {
		return err
	}
	written := make([]string, 0, len(records))
	for _, rec := range records {
		path, err := pathutil.Join(outDir, rec.Protocol+".json")
		if err != nil {
			return fmt.Errorf("protocol %q: %w", rec.Protocol, err)
		}
		if err := writeRecordFile(path, rec); err != nil {
			return err
		}
		written = append(written, path)
	}

	if app.jsonOut {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]interface{}{
			"scenario": sc.Name,
			"trials":   sc.Trials,
			"seed":     sc.Seed,
			"files":    written,
		})
	}
	for _, p := range written {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", p)
	}
	return nil
}

func writeRecord(w io.Writer, rec models.ProtocolRunRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}
	return nil
}

func writeRecordFile(path string, rec models.ProtocolRunRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeRecord(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
