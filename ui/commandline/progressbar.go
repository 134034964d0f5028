// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"github.com/nftqcd/lgt/pkg/hmc"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/stat"
)

// ExtraMetricFn returns a name and a value to display along the progress bar. It is called at every update.
type ExtraMetricFn func() (name, value string)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider progressbar.ThemeUnicode for a prettier version, if the terminal supports the symbols.
var ProgressbarStyle = progressbar.ThemeASCII

// maxUpdateFrequency is the minimum time between redraws of the stats table.
const maxUpdateFrequency = time.Millisecond * 200

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// ProgressBar displays the progress of an HMC run on the terminal, with a table of the latest observables.
//
// Create it with NewProgressBar, pass its Hook method to hmc.Sampler.Run and call Done at the end.
// Redraws happen asynchronously, so a slow terminal doesn't slow down the sampling.
type ProgressBar struct {
	numTrajectories int
	bar             *progressbar.ProgressBar

	termenv          *termenv.Output
	statsStyle       lipgloss.Style
	statsTable       *lgtable.Table
	isFirstOutput    bool
	updates          chan progressBarUpdate
	asyncUpdatesDone sync.WaitGroup

	lastTime            time.Time
	durations           []float64
	numAccepted, numAll int

	extraMetricFns []ExtraMetricFn
}

type progressBarUpdate struct {
	amount int
	rows   [][2]string
}

// NewProgressBar creates a progress bar for a run of numTrajectories trajectories, and starts its display.
func NewProgressBar(numTrajectories int, extraMetrics ...ExtraMetricFn) *ProgressBar {
	pBar := &ProgressBar{
		numTrajectories: numTrajectories,
		termenv:         termenv.NewOutput(os.Stdout),
		statsStyle:      lipgloss.NewStyle().PaddingLeft(8),
		isFirstOutput:   true,
		updates:         make(chan progressBarUpdate, 100),
		lastTime:        time.Now(),
		extraMetricFns:  extraMetrics,
	}
	pBar.statsTable = lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
	pBar.bar = progressbar.NewOptions(numTrajectories,
		progressbar.OptionSetDescription("      [bold]"),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("trajectories"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionSetWriter(os.Stdout),
	)
	pBar.asyncUpdatesDone.Add(1)
	go pBar.drawLoop()
	return pBar
}

// Hook implements hmc.HookFn: pass it to hmc.Sampler.Run.
func (pBar *ProgressBar) Hook(trajectory int, r *hmc.Result) error {
	now := time.Now()
	pBar.durations = append(pBar.durations, now.Sub(pBar.lastTime).Seconds())
	pBar.lastTime = now
	pBar.numAccepted += r.NumAccepted()
	pBar.numAll += len(r.Accepted)

	sorted := slices.Sorted(slices.Values(pBar.durations))
	median := time.Duration(stat.Quantile(0.5, stat.Empirical, sorted, nil) * float64(time.Second))
	update := progressBarUpdate{
		amount: 1,
		rows: [][2]string{
			{"Trajectory", fmt.Sprintf("%s of %s", humanizeInt(trajectory+1), humanizeInt(pBar.numTrajectories))},
			{"Median trajectory duration", FormatDuration(median)},
			{"Plaquette", fmt.Sprintf("%.6f", stat.Mean(r.Plaquettes, nil))},
			{"Action", humanize.CommafWithDigits(stat.Mean(r.Action, nil), 2)},
			{"ΔH", fmt.Sprintf("%.4g", stat.Mean(r.DeltaH, nil))},
			{"Acceptance", fmt.Sprintf("%.1f%%", 100*float64(pBar.numAccepted)/float64(pBar.numAll))},
		},
	}
	for _, extraMetric := range pBar.extraMetricFns {
		name, value := extraMetric()
		update.rows = append(update.rows, [2]string{name, value})
	}
	pBar.updates <- update
	return nil
}

// drawLoop draws the updates until the updates channel is closed.
func (pBar *ProgressBar) drawLoop() {
	defer pBar.asyncUpdatesDone.Done()
	for update := range pBar.updates {
		// Merge updates that queued up while drawing.
		amount := update.amount
	exhaust:
		for {
			select {
			case newUpdate, ok := <-pBar.updates:
				if !ok {
					break exhaust
				}
				amount += newUpdate.amount
				update = newUpdate
			default:
				break exhaust
			}
		}

		pBar.statsTable.Data(lgtable.NewStringData())
		for _, row := range update.rows {
			pBar.statsTable.Row(row[0], row[1])
		}
		pBar.termenv.HideCursor()
		if !pBar.isFirstOutput {
			// Table rows, its top and bottom borders and the progress bar line.
			pBar.termenv.CursorPrevLine(len(update.rows) + 2 + 1)
		}
		pBar.isFirstOutput = false
		fmt.Println(pBar.statsStyle.Render(pBar.statsTable.String()))
		_ = pBar.bar.Add(amount)
		fmt.Println()
		pBar.termenv.ShowCursor()
		time.Sleep(maxUpdateFrequency)
	}
}

// Done waits for the pending updates to be drawn and restores the terminal cursor.
func (pBar *ProgressBar) Done() {
	close(pBar.updates)
	pBar.asyncUpdatesDone.Wait()
	pBar.termenv.ShowCursor()
	fmt.Println()
}

// humanizeInt formats n with thousands separators.
func humanizeInt[I constraints.Integer](n I) string {
	return humanize.Comma(int64(n))
}
