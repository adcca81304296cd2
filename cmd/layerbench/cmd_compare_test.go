package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/layerbench/internal/compare"
	"github.com/nvandessel/layerbench/internal/constants"
	"github.com/nvandessel/layerbench/internal/report"
	"github.com/nvandessel/layerbench/internal/store"
)

// simulateRuns writes lwm2m and matter records into dir.
func simulateRuns(t *testing.T, dir string) (string, string) {
	t.Helper()
	a := filepath.Join(dir, "lwm2m.json")
	b := filepath.Join(dir, "matter.json")
	mustExecute(t, "simulate", "--preset", "lwm2m", "--trials", "12", "--seed", "3", "--out", a)
	mustExecute(t, "simulate", "--preset", "matter", "--trials", "12", "--seed", "4", "--out", b)
	return a, b
}

func TestCompareJSONAndHistory(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	a, b := simulateRuns(t, dir)

	out := mustExecute(t, "compare", a, b, "--json", "--root", dir)
	res, err := report.Decode(strings.NewReader(out))
	if err != nil {
		t.Fatalf("compare --json output is not a result: %v", err)
	}
	if res.ProtocolA() != "lwm2m" || res.ProtocolB() != "matter" {
		t.Errorf("protocols = %s/%s", res.ProtocolA(), res.ProtocolB())
	}
	var transport compare.Verdict
	for _, v := range res.Verdicts() {
		if v.MetricName == "transport_time" {
			transport = v
		}
	}
	if transport.Winner != compare.WinnerA {
		t.Errorf("transport_time winner = %s, want A", transport.Winner)
	}

	if _, err := os.Stat(filepath.Join(dir, constants.DirName, constants.ResultsDBName)); err != nil {
		t.Fatalf("results store not created: %v", err)
	}

	var rows []store.ResultSummary
	if err := json.Unmarshal([]byte(mustExecute(t, "history", "list", "--json", "--root", dir)), &rows); err != nil {
		t.Fatalf("history list --json: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != res.ID() {
		t.Fatalf("history list = %+v, want the one result", rows)
	}

	var points []store.MetricPoint
	if err := json.Unmarshal([]byte(mustExecute(t, "history", "metric", "transport_time", "--json", "--root", dir)), &points); err != nil {
		t.Fatalf("history metric --json: %v", err)
	}
	if len(points) != 1 || points[0].Winner != compare.WinnerA {
		t.Errorf("history metric = %+v", points)
	}

	shown := mustExecute(t, "history", "show", res.ID(), "--root", dir)
	if !strings.Contains(shown, "transport_time") {
		t.Errorf("history show output missing verdicts:\n%s", shown)
	}

	mustExecute(t, "history", "delete", res.ID(), "--root", dir)
	if _, _, err := execute(t, "history", "show", res.ID(), "--root", dir); err == nil {
		t.Error("history show after delete should fail")
	}
}

func TestCompareTableOutput(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	a, b := simulateRuns(t, dir)
	outFile := filepath.Join(dir, "result.json")

	out := mustExecute(t, "compare", a, b, "--root", dir, "--no-store", "--out", outFile)
	for _, want := range []string{"LAYER", "transport_time", "certificate_size", "Incomparable (missing from A)", "Overall efficiency"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	f, err := os.Open(outFile)
	if err != nil {
		t.Fatalf("--out file not written: %v", err)
	}
	defer f.Close()
	if _, err := report.Decode(f); err != nil {
		t.Errorf("--out file is not a result: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, constants.DirName, constants.ResultsDBName)); !os.IsNotExist(err) {
		t.Error("--no-store should not create the results store")
	}
}

func TestCompareYAMLRecord(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	writeFile(t, a, `protocol: lwm2m
trials:
  - {metric_name: connection_time_ms, value: 8}
  - {metric_name: connection_time_ms, value: 9}
  - {metric_name: connection_time_ms, value: 10}
`)
	writeFile(t, b, `protocol: matter
trials:
  - {trial: 0, metric_name: udp_discovery_time_ms, value: 10}
  - {trial: 0, metric_name: tcp_connection_time_ms, value: 20}
  - {trial: 1, metric_name: udp_discovery_time_ms, value: 15}
  - {trial: 1, metric_name: tcp_connection_time_ms, value: 25}
  - {trial: 2, metric_name: udp_discovery_time_ms, value: 20}
  - {trial: 2, metric_name: tcp_connection_time_ms, value: 30}
`)

	out := mustExecute(t, "compare", a, b, "--json", "--no-store", "--root", dir)
	res, err := report.Decode(strings.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	vs := res.Verdicts()
	if len(vs) != 1 || vs[0].MetricName != "transport_time" || vs[0].Winner != compare.WinnerA {
		t.Fatalf("verdicts = %+v, want transport_time won by A", vs)
	}
	if vs[0].DeltaPct == nil || *vs[0].DeltaPct < 344 || *vs[0].DeltaPct > 345 {
		t.Errorf("delta = %v, want ~344.44", vs[0].DeltaPct)
	}
}

func TestCompareErrors(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	mustExecute(t, "simulate", "--preset", "lwm2m", "--trials", "3", "--out", good)

	unknown := filepath.Join(dir, "unknown.json")
	writeFile(t, unknown, `{"protocol":"zigbee","trials":[{"metric_name":"x","value":1}]}`)
	noProtocol := filepath.Join(dir, "noproto.json")
	writeFile(t, noProtocol, `{"trials":[]}`)
	allBad := filepath.Join(dir, "allbad.json")
	writeFile(t, allBad, `{"protocol":"matter","trials":[{"metric_name":"bogus_key","value":1}]}`)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown protocol", []string{"compare", good, unknown}},
		{"missing protocol", []string{"compare", good, noProtocol}},
		{"missing file", []string{"compare", good, filepath.Join(dir, "nope.json")}},
		{"no usable trials", []string{"compare", good, allBad}},
		{"one argument", []string{"compare", good}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--root", dir, "--no-store")
			if _, _, err := execute(t, args...); err == nil {
				t.Errorf("layerbench %v: expected error", tt.args)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
