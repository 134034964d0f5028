// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

// lgt samples SU(3) gauge configurations with Hybrid Monte Carlo and reports the average plaquette.
//
// The run is configured with context parameters (see hmc.CreateDefaultContext), set with -set. E.g.:
//
//	lgt -set="beta=5.7;c1=-0.331;lattice_shape=8,8,8,8;batch_size=4;hmc_trajectories=200" -out=~/runs -skip=50
//
// With -out, each run gets its own sub-directory (named with a unique id) holding the final links, the history of
// observables as CSV, a plot of the plaquette and the settings used.
package main

import (
	stdcontext "context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/nftqcd/lgt/pkg/hmc"
	"github.com/nftqcd/lgt/pkg/lattice"
	"github.com/nftqcd/lgt/pkg/measure"
	"github.com/nftqcd/lgt/ui/commandline"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagLoad = flag.String("load", "", "Load the initial links from this file, instead of the start selected by the "+
		"\"start\" parameter.")
	flagSave     = flag.String("save", "", "Save the final links to this file.")
	flagCSV      = flag.String("csv", "", "Save the history of observables (one row per trajectory and chain) as CSV.")
	flagPlot     = flag.String("plot", "", "Save a plot of the plaquette history. Format given by the extension (.png, .svg, .pdf).")
	flagOut      = flag.String("out", "", "Base output directory: a sub-directory with a unique run id is created for the outputs not set with -save, -csv or -plot.")
	flagSkip     = flag.Int("skip", 0, "Number of initial trajectories (thermalization) excluded from the summary.")
	flagProgress = flag.Bool("progress", true, "Display a progress bar.")
)

func main() {
	ctx := hmc.CreateDefaultContext()
	settings := commandline.CreateSettingsFlag(ctx, "")
	klog.InitFlags(nil)
	flag.Parse()

	err := exceptions.TryCatch[error](func() {
		paramsSet := must.M1(commandline.ParseSettings(ctx, *settings))
		if len(paramsSet) > 0 {
			klog.Infof("Parameters set:\n%s", commandline.SprintModifiedSettings(ctx, paramsSet))
		}
		klog.V(1).Infof("All parameters:\n%s", commandline.SprintSettings(ctx))
		run(ctx, *settings)
	})
	if err != nil {
		klog.Fatalf("Failed: %+v", err)
	}
}

// outputPaths resolves the output files, creating the run directory if -out is set.
func outputPaths(settings string) (links, csv, plot string) {
	links, csv, plot = *flagSave, *flagCSV, *flagPlot
	if *flagOut == "" {
		return
	}
	runDir := filepath.Join(fsutil.MustReplaceTildeInDir(*flagOut), uuid.NewString())
	must.M(os.MkdirAll(runDir, 0o755))
	klog.Infof("Run directory: %s", runDir)
	if links == "" {
		links = filepath.Join(runDir, "links.bin")
	}
	if csv == "" {
		csv = filepath.Join(runDir, "history.csv")
	}
	if plot == "" {
		plot = filepath.Join(runDir, "plaquette.png")
	}
	// Settings are saved so the run can be repeated with -set=file:<run>/settings.txt.
	must.M(os.WriteFile(filepath.Join(runDir, "settings.txt"), []byte(strings.ReplaceAll(settings, ";", "\n")+"\n"), 0o644))
	return
}

func run(ctx *context.Context, settings string) {
	backend := backends.MustNew()
	defer backend.Finalize()
	klog.V(1).Infof("Backend: %s", backend.Name())

	sampler := must.M1(hmc.New(backend, ctx))
	defer sampler.Finalize()
	l := sampler.Lattice()
	fmt.Printf("%s, beta=%g\n", l, sampler.Beta())
	linksPath, csvPath, plotPath := outputPaths(settings)

	var links *lattice.Links
	if *flagLoad != "" {
		links = must.M1(lattice.LoadLinks(fsutil.MustReplaceTildeInDir(*flagLoad)))
		must.M(l.ValidateLinks(links))
	} else {
		links = must.M1(sampler.InitialLinks())
	}
	startPlaquettes := must.M1(sampler.Evaluator().Plaquettes(links))
	klog.Infof("Initial plaquettes: %v", startPlaquettes)

	history := measure.NewHistory()
	hook := func(trajectory int, r *hmc.Result) error {
		return history.Record(trajectory, r.Plaquettes, r.Action, r.DeltaH, r.Accepted)
	}
	var pBar *commandline.ProgressBar
	if *flagProgress {
		pBar = commandline.NewProgressBar(sampler.NumTrajectories())
		recordFn := hook
		hook = func(trajectory int, r *hmc.Result) error {
			if err := recordFn(trajectory, r); err != nil {
				return err
			}
			return pBar.Hook(trajectory, r)
		}
	}

	runCtx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt)
	defer stop()
	links, err := sampler.Run(runCtx, links, sampler.NumTrajectories(), hook)
	if pBar != nil {
		pBar.Done()
	}
	if err != nil {
		if !errors.Is(err, stdcontext.Canceled) {
			panic(err)
		}
		klog.Warningf("Interrupted, saving the %d trajectories run so far.", history.Len())
	}

	if linksPath != "" {
		must.M(links.Save(linksPath))
		klog.Infof("Links saved to %s", linksPath)
	}
	if history.Len() == 0 {
		return
	}
	if csvPath != "" {
		f := must.M1(os.Create(csvPath))
		must.M(history.WriteCSV(f))
		must.M(f.Close())
		klog.Infof("History saved to %s", csvPath)
	}
	if plotPath != "" {
		must.M(history.PlotPlaquette(plotPath))
		klog.Infof("Plaquette plot saved to %s", plotPath)
	}
	summary, err := history.Summary(*flagSkip)
	if err != nil {
		klog.Warningf("No summary: %v", err)
		return
	}
	fmt.Println(commandline.SummaryTable(fmt.Sprintf("β=%g, c1=%g", sampler.Beta(), l.C1()), summary))
}
