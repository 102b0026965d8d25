// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"ssaopt/internal/dce"
	"ssaopt/internal/diagnostics"
	"ssaopt/internal/ir"
	"ssaopt/internal/irtext"
	"ssaopt/internal/licm"
	"ssaopt/internal/looprotate"
	"ssaopt/internal/pre"
)

// allPasses is the default pipeline order (§4.9): loop rotation gives LICM a
// preheader to target, LICM shrinks what PRE's expression domain has to
// consider, and DCE cleans up whatever either pass leaves dead.
var allPasses = map[string]ir.OptimizationPass{
	"looprotate": looprotate.Pass{},
	"licm":       licm.Pass{},
	"pre":        pre.Pass{},
	"dce":        dce.Pass{},
}

var passOrder = []string{"looprotate", "licm", "pre", "dce"}

func main() {
	irFile := flag.String("ir-file", "", "path to a textual IR file (internal/irtext grammar)")
	passesFlag := flag.String("passes", "all", "comma-separated pass names to run, or \"all\"")
	dumpIR := flag.Bool("dump-ir", false, "print the optimized IR to stdout")
	noColor := flag.Bool("no-color", false, "disable colorized diagnostic output")
	flag.Parse()

	if *irFile == "" {
		fmt.Fprintln(os.Stderr, "usage: ssaopt -ir-file <path> [-passes p1,p2,...] [-dump-ir] [-no-color]")
		os.Exit(1)
	}

	passes, err := resolvePasses(*passesFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	source, err := os.ReadFile(*irFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %s\n", *irFile, err)
		os.Exit(1)
	}

	program, err := irtext.Parse(string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse %s: %s\n", *irFile, err)
		os.Exit(1)
	}

	printer := diagnostics.NewPrinter(*noColor)
	reports, err := runConcurrently(program, passes)
	for _, r := range reports {
		fmt.Print(printer.FormatReport(r))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *dumpIR {
		fmt.Print(irtext.Print(program))
	}
}

func resolvePasses(flagValue string) ([]ir.OptimizationPass, error) {
	if flagValue == "all" {
		passes := make([]ir.OptimizationPass, len(passOrder))
		for i, name := range passOrder {
			passes[i] = allPasses[name]
		}
		return passes, nil
	}

	var passes []ir.OptimizationPass
	for _, name := range strings.Split(flagValue, ",") {
		name = strings.TrimSpace(name)
		p, ok := allPasses[name]
		if !ok {
			return nil, fmt.Errorf("unknown pass %q (known: %s)", name, strings.Join(passOrder, ", "))
		}
		passes = append(passes, p)
	}
	return passes, nil
}

// runConcurrently runs one OptimizationPipeline per function, in parallel
// (§5, ADDED): each function keeps the single-threaded, per-function
// lifetime rule every pass was built under, since the pipeline itself is
// constructed fresh inside each goroutine.
func runConcurrently(program *ir.Program, passes []ir.OptimizationPass) ([]*diagnostics.Report, error) {
	reports := make([]*diagnostics.Report, len(program.Functions))
	var g errgroup.Group

	for i, fn := range program.Functions {
		i, fn := i, fn
		g.Go(func() error {
			report := diagnostics.NewReport("ssaopt")
			pipeline := ir.NewOptimizationPipeline()
			for _, p := range passes {
				pipeline.AddPass(p)
			}
			single := &ir.Program{Functions: []*ir.Function{fn}}
			for _, fired := range pipeline.Run(single) {
				for _, entry := range fired {
					report.Info(diagnostics.CodePassFired, fmt.Sprintf("function %s", fn.Name), "%s", entry)
				}
			}
			reports[i] = report
			return nil
		})
	}

	err := g.Wait()
	return reports, err
}
