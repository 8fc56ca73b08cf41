// Command perf-regression checks the engine's hot paths against a baseline.
// Both inputs are `go test -bench . -count N` outputs; every budgeted
// benchmark is reduced to its median and compared under its own limit.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
)

// budget caps how far the candidate median of one benchmark unit may drift
// above the baseline median, as a ratio.
type budget struct {
	Benchmark string
	Unit      string
	Limit     float64
}

// budgets covers the benchmarks in engine_bench_test.go and
// jwt/codec_bench_test.go. Login is dominated by argon2id and is noisy, so it
// gets the widest limit. Allocation counts are deterministic and must not grow.
var budgets = []budget{
	{"BenchmarkValidateAccess", "ns/op", 0.25},
	{"BenchmarkValidateAccess", "allocs/op", 0},
	{"BenchmarkValidateAccessParallel", "ns/op", 0.35},
	{"BenchmarkLogin", "ns/op", 0.50},
	{"BenchmarkCodecDecode", "ns/op", 0.20},
	{"BenchmarkCodecDecode", "allocs/op", 0},
}

type samples map[string]map[string][]float64

type verdict struct {
	budget
	Baseline  float64
	Candidate float64
	Delta     float64
	Problem   string
	// NewBench marks a benchmark the baseline does not contain yet.
	NewBench bool
}

func (v verdict) failed() bool {
	return v.Problem != "" || (!v.NewBench && v.Delta > v.Limit)
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		scale         float64
	)

	flag.StringVar(&baselinePath, "baseline", "", "benchmark output of the reference build")
	flag.StringVar(&candidatePath, "candidate", "", "benchmark output of the build under test")
	flag.Float64Var(&scale, "scale", 1, "multiplier applied to every budget limit, for noisy runners")
	flag.Parse()

	os.Exit(run(baselinePath, candidatePath, scale, os.Stdout, os.Stderr))
}

func run(baselinePath, candidatePath string, scale float64, stdout, stderr io.Writer) int {
	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(stderr, "-baseline and -candidate are required")
		return 2
	}
	if scale <= 0 {
		fmt.Fprintln(stderr, "-scale must be > 0")
		return 2
	}

	baseline, err := parseFile(baselinePath)
	if err != nil {
		fmt.Fprintf(stderr, "baseline: %v\n", err)
		return 1
	}
	candidate, err := parseFile(candidatePath)
	if err != nil {
		fmt.Fprintf(stderr, "candidate: %v\n", err)
		return 1
	}

	verdicts := compare(baseline, candidate, scaled(budgets, scale))
	report(stdout, verdicts)

	failed := 0
	for _, v := range verdicts {
		if v.failed() {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(stderr, "%d of %d budgets exceeded\n", failed, len(verdicts))
		return 1
	}
	return 0
}

func scaled(in []budget, scale float64) []budget {
	out := make([]budget, len(in))
	for i, b := range in {
		b.Limit *= scale
		out[i] = b
	}
	return out
}

// compare evaluates every budget in order. A benchmark missing from the
// baseline is reported but not failed, so new benchmarks can land before the
// baseline is refreshed. A benchmark missing from the candidate fails.
func compare(baseline, candidate samples, list []budget) []verdict {
	out := make([]verdict, 0, len(list))
	for _, b := range list {
		v := verdict{budget: b}
		base := baseline[b.Benchmark][b.Unit]
		cand := candidate[b.Benchmark][b.Unit]

		switch {
		case len(cand) == 0:
			v.Problem = "missing from candidate"
		case len(base) == 0:
			v.Candidate = median(cand)
			v.NewBench = true
		default:
			v.Baseline = median(base)
			v.Candidate = median(cand)
			v.Delta = relative(v.Baseline, v.Candidate)
		}
		out = append(out, v)
	}
	return out
}

func relative(base, cand float64) float64 {
	if base == 0 {
		if cand == 0 {
			return 0
		}
		return cand
	}
	return (cand - base) / base
}

func report(w io.Writer, verdicts []verdict) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "benchmark\tunit\tbaseline\tcandidate\tdelta\tlimit\tstatus")
	for _, v := range verdicts {
		status := "ok"
		switch {
		case v.Problem != "":
			status = v.Problem
		case v.NewBench:
			status = "no baseline"
		case v.failed():
			status = "REGRESSED"
		}
		delta := "-"
		if v.Problem == "" && !v.NewBench {
			delta = fmt.Sprintf("%+.1f%%", v.Delta*100)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\t%s\t%+.0f%%\t%s\n",
			v.Benchmark, v.Unit, v.Baseline, v.Candidate, delta, v.Limit*100, status)
	}
	_ = tw.Flush()
}

func parseFile(path string) (samples, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// parse collects value/unit pairs of budgeted benchmarks from r. The -N GOMAXPROCS
// suffix is stripped so runs on different machines line up.
func parse(r io.Reader) (samples, error) {
	tracked := make(map[string]bool, len(budgets))
	for _, b := range budgets {
		tracked[b.Benchmark] = true
	}

	out := samples{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}
		name := trimProcs(fields[0])
		if !tracked[name] {
			continue
		}
		if out[name] == nil {
			out[name] = map[string][]float64{}
		}
		// fields[1] is the iteration count.
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			out[name][fields[i+1]] = append(out[name][fields[i+1]], value)
		}
	}
	return out, sc.Err()
}

func trimProcs(name string) string {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 {
		return name
	}
	if _, err := strconv.Atoi(name[i+1:]); err != nil {
		return name
	}
	return name[:i]
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Sorted(slices.Values(values))
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
