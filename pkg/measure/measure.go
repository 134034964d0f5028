// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

// Package measure collects the observables of a sampling run (plaquette, action, deltaH and acceptance per chain
// and trajectory), summarizes them and exports them as CSV or plots.
package measure

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Record holds the observables of one trajectory, one value per chain.
type Record struct {
	Trajectory int
	Plaquette  []float64
	Action     []float64
	DeltaH     []float64
	Accepted   []bool
}

// History of the records of a run. It is safe for concurrent use.
type History struct {
	mu        sync.Mutex
	numChains int
	records   []Record
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{}
}

// Record appends the observables of a trajectory. All chains must be reported, and the number of chains can't
// change during a run.
func (h *History) Record(trajectory int, plaquette, action, deltaH []float64, accepted []bool) error {
	numChains := len(plaquette)
	if numChains == 0 || len(action) != numChains || len(deltaH) != numChains || len(accepted) != numChains {
		return errors.Errorf("measure.Record(trajectory=%d): observables for all chains required, got %d plaquettes, "+
			"%d actions, %d deltaH and %d accepted values", trajectory, len(plaquette), len(action), len(deltaH),
			len(accepted))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.numChains == 0 {
		h.numChains = numChains
	} else if h.numChains != numChains {
		return errors.Errorf("measure.Record(trajectory=%d): history has %d chains, got %d",
			trajectory, h.numChains, numChains)
	}
	h.records = append(h.records, Record{
		Trajectory: trajectory,
		Plaquette:  slices.Clone(plaquette),
		Action:     slices.Clone(action),
		DeltaH:     slices.Clone(deltaH),
		Accepted:   slices.Clone(accepted),
	})
	return nil
}

// Len returns the number of records.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// NumChains returns the number of chains of the records, or 0 if the history is empty.
func (h *History) NumChains() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.numChains
}

// Records returns a copy of the list of records.
func (h *History) Records() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.records)
}

// Summary of a run.
type Summary struct {
	NumTrajectories, NumChains int

	// Plaquette mean and standard deviation over all chains and trajectories.
	Plaquette, PlaquetteStdDev float64

	// ChainPlaquettes is the mean plaquette of each chain.
	ChainPlaquettes []float64

	// AcceptanceRate is the fraction of accepted trajectories.
	AcceptanceRate float64

	// ExpMinusDeltaH is the mean of exp(-deltaH): it should be close to 1 at equilibrium.
	ExpMinusDeltaH float64
}

// String implements fmt.Stringer.
func (s Summary) String() string {
	return fmt.Sprintf("plaquette=%.6f±%.6f, acceptance=%.1f%%, <exp(-dH)>=%.4f (%d trajectories x %d chains)",
		s.Plaquette, s.PlaquetteStdDev, 100*s.AcceptanceRate, s.ExpMinusDeltaH, s.NumTrajectories, s.NumChains)
}

// Summary summarizes the records, skipping the first skip trajectories (thermalization).
// It returns an error if no records are left.
func (h *History) Summary(skip int) (Summary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if skip < 0 {
		skip = 0
	}
	if skip >= len(h.records) {
		return Summary{}, errors.Errorf("measure.Summary: no records to summarize (%d records, skipping %d)",
			len(h.records), skip)
	}
	records := h.records[skip:]
	s := Summary{
		NumTrajectories: len(records),
		NumChains:       h.numChains,
		ChainPlaquettes: make([]float64, h.numChains),
	}
	var plaquettes, expDeltaH []float64
	var numAccepted int
	chain := make([]float64, len(records))
	for b := range h.numChains {
		for i, r := range records {
			chain[i] = r.Plaquette[b]
			plaquettes = append(plaquettes, r.Plaquette[b])
			expDeltaH = append(expDeltaH, math.Exp(-r.DeltaH[b]))
			if r.Accepted[b] {
				numAccepted++
			}
		}
		s.ChainPlaquettes[b] = stat.Mean(chain, nil)
	}
	if len(plaquettes) > 1 {
		s.Plaquette, s.PlaquetteStdDev = stat.MeanStdDev(plaquettes, nil)
	} else {
		s.Plaquette = plaquettes[0]
	}
	s.ExpMinusDeltaH = stat.Mean(expDeltaH, nil)
	s.AcceptanceRate = float64(numAccepted) / float64(len(plaquettes))
	return s, nil
}

// Column names used by WriteCSV and ReadCSV.
const (
	ColTrajectory = "trajectory"
	ColChain      = "chain"
	ColPlaquette  = "plaquette"
	ColAction     = "action"
	ColDeltaH     = "delta_h"
	ColAccepted   = "accepted"
)

// DataFrame returns the history in long format: one row per trajectory and chain.
func (h *History) DataFrame() dataframe.DataFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.records) * h.numChains
	trajectories, chains := make([]int, 0, n), make([]int, 0, n)
	plaquettes, actions, deltaHs := make([]float64, 0, n), make([]float64, 0, n), make([]float64, 0, n)
	accepted := make([]bool, 0, n)
	for _, r := range h.records {
		for b := range h.numChains {
			trajectories = append(trajectories, r.Trajectory)
			chains = append(chains, b)
			plaquettes = append(plaquettes, r.Plaquette[b])
			actions = append(actions, r.Action[b])
			deltaHs = append(deltaHs, r.DeltaH[b])
			accepted = append(accepted, r.Accepted[b])
		}
	}
	return dataframe.New(
		series.New(trajectories, series.Int, ColTrajectory),
		series.New(chains, series.Int, ColChain),
		series.New(plaquettes, series.Float, ColPlaquette),
		series.New(actions, series.Float, ColAction),
		series.New(deltaHs, series.Float, ColDeltaH),
		series.New(accepted, series.Bool, ColAccepted),
	)
}

// WriteCSV writes the history in long format (see DataFrame), with a header.
func (h *History) WriteCSV(w io.Writer) error {
	if h.Len() == 0 {
		return errors.New("measure.WriteCSV: empty history")
	}
	df := h.DataFrame()
	if df.Err != nil {
		return errors.Wrap(df.Err, "measure.WriteCSV: building data frame")
	}
	return errors.Wrap(df.WriteCSV(w), "measure.WriteCSV")
}

// ReadCSV reads a history written by WriteCSV.
func ReadCSV(r io.Reader) (*History, error) {
	df := dataframe.ReadCSV(r, dataframe.WithTypes(map[string]series.Type{
		ColTrajectory: series.Int,
		ColChain:      series.Int,
		ColPlaquette:  series.Float,
		ColAction:     series.Float,
		ColDeltaH:     series.Float,
		ColAccepted:   series.Bool,
	}))
	if df.Err != nil {
		return nil, errors.Wrap(df.Err, "measure.ReadCSV")
	}
	if missing := missingColumns(df.Names()); len(missing) > 0 {
		return nil, errors.Errorf("measure.ReadCSV: missing columns %s", strings.Join(missing, ", "))
	}
	trajectories, err := df.Col(ColTrajectory).Int()
	if err != nil {
		return nil, errors.Wrapf(err, "measure.ReadCSV: column %q", ColTrajectory)
	}
	chains, err := df.Col(ColChain).Int()
	if err != nil {
		return nil, errors.Wrapf(err, "measure.ReadCSV: column %q", ColChain)
	}
	accepted, err := df.Col(ColAccepted).Bool()
	if err != nil {
		return nil, errors.Wrapf(err, "measure.ReadCSV: column %q", ColAccepted)
	}
	plaquettes := df.Col(ColPlaquette).Float()
	actions := df.Col(ColAction).Float()
	deltaHs := df.Col(ColDeltaH).Float()

	if len(chains) == 0 {
		return nil, errors.New("measure.ReadCSV: no records")
	}
	if minChain := slices.Min(chains); minChain < 0 {
		return nil, errors.Errorf("measure.ReadCSV: invalid negative chain %d", minChain)
	}
	numChains := slices.Max(chains) + 1
	if len(chains)%numChains != 0 {
		return nil, errors.Errorf("measure.ReadCSV: %d rows is not a multiple of the %d chains", len(chains), numChains)
	}
	h := NewHistory()
	for start := 0; start < len(chains); start += numChains {
		end := start + numChains
		for row := start; row < end; row++ {
			if chains[row] != row-start || trajectories[row] != trajectories[start] {
				return nil, errors.Errorf("measure.ReadCSV: row %d out of order (trajectory %d, chain %d)",
					row, trajectories[row], chains[row])
			}
		}
		err = h.Record(trajectories[start], plaquettes[start:end], actions[start:end], deltaHs[start:end],
			accepted[start:end])
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

func missingColumns(names []string) (missing []string) {
	for _, col := range []string{ColTrajectory, ColChain, ColPlaquette, ColAction, ColDeltaH, ColAccepted} {
		if !slices.Contains(names, col) {
			missing = append(missing, col)
		}
	}
	return
}
