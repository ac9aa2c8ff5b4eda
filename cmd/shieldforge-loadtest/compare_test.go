package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const baselineOutput = `goos: linux
BenchmarkValidateToken-8        	  500000	      2000 ns/op	     900 B/op	      14 allocs/op
BenchmarkValidateToken-8        	  500000	      2200 ns/op	     900 B/op	      14 allocs/op
BenchmarkMetricsIncParallel-8   	90000000	        12 ns/op
BenchmarkVerify-8               	 3000000	       400 ns/op
BenchmarkUntracked-8            	       1	         1 ns/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	samples, err := parseBenchmarks(strings.NewReader(baselineOutput))
	if err != nil {
		t.Fatalf("parseBenchmarks failed: %v", err)
	}
	if got := samples["BenchmarkValidateToken"]["ns/op"]; len(got) != 2 {
		t.Fatalf("expected 2 ns/op samples, got %v", got)
	}
	if _, ok := samples["BenchmarkUntracked"]; ok {
		t.Fatal("untracked benchmark must be skipped")
	}
	if got := median(samples["BenchmarkValidateToken"]["ns/op"]); got != 2100 {
		t.Fatalf("expected median 2100, got %v", got)
	}
}

func TestCompareDetectsRegression(t *testing.T) {
	baseline, _ := parseBenchmarks(strings.NewReader(baselineOutput))
	slower, _ := parseBenchmarks(strings.NewReader(strings.ReplaceAll(baselineOutput, "12 ns/op", "30 ns/op")))

	var out bytes.Buffer
	if err := compare(&out, baseline, baseline, defaultThreshold); err != nil {
		t.Fatalf("identical runs must pass: %v", err)
	}
	err := compare(&out, baseline, slower, defaultThreshold)
	if err == nil || !strings.Contains(err.Error(), "BenchmarkMetricsIncParallel ns/op regressed") {
		t.Fatalf("expected regression error, got %v", err)
	}
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.txt")
	if err := os.WriteFile(path, []byte(baselineOutput), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"compare", "--baseline", path, "--candidate", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if !strings.Contains(out.String(), "BenchmarkVerify ns/op") {
		t.Fatalf("expected report, got:\n%s", out.String())
	}

	cmd = newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"compare", "--baseline", path})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --candidate")
	}
}
