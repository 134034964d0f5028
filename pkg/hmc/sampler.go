// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

// Package hmc implements a Hybrid Monte Carlo sampler for the lattice gauge action.
//
// Each trajectory draws Gaussian momenta, integrates the equations of motion with a leapfrog integrator driven by
// the gauge force, and accepts or rejects the new configuration of each chain with a Metropolis test on the
// change of the Hamiltonian. A whole trajectory is a single compiled computation.
package hmc

import (
	stdcontext "context"
	"math"
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/nftqcd/lgt/internal/su3"
	"github.com/nftqcd/lgt/pkg/lattice"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Sampler runs HMC trajectories for a lattice.
//
// It is safe for concurrent use, but trajectories of the same sampler are serialized: each one consumes the
// random state left by the previous one.
type Sampler struct {
	backend   backends.Backend
	lattice   *lattice.Lattice
	evaluator *lattice.Evaluator

	beta, stepSize float64
	numSteps       int
	numTraj        int
	seed           int64
	start          string

	mu       sync.Mutex
	exec     *graph.Exec
	rngState *tensors.Tensor
}

// Result of one trajectory.
type Result struct {
	// Links after the Metropolis test: the new configuration for accepted chains, the previous one otherwise.
	Links *lattice.Links

	// DeltaH is H(end) - H(start) of the trajectory, per chain.
	DeltaH []float64

	// Accepted reports, per chain, whether the new configuration was accepted.
	Accepted []bool

	// Plaquettes and Action of the resulting configuration, per chain.
	Plaquettes, Action []float64
}

// NumAccepted returns the number of chains that accepted the trajectory.
func (r *Result) NumAccepted() int {
	var n int
	for _, a := range r.Accepted {
		if a {
			n++
		}
	}
	return n
}

// New creates a sampler configured by the parameters in ctx (see CreateDefaultContext).
func New(backend backends.Backend, ctx *context.Context) (*Sampler, error) {
	l, err := LatticeFromContext(ctx)
	if err != nil {
		return nil, err
	}
	s := &Sampler{
		backend:   backend,
		lattice:   l,
		evaluator: lattice.NewEvaluator(backend, l),
		beta:      context.GetParamOr(ctx, ParamBeta, 6.0),
		stepSize:  context.GetParamOr(ctx, ParamStepSize, 0.01),
		numSteps:  context.GetParamOr(ctx, ParamNumLeapfrogSteps, 20),
		numTraj:   context.GetParamOr(ctx, ParamTrajectories, 100),
		seed:      int64(context.GetParamOr(ctx, ParamSeed, 42)),
		start:     context.GetParamOr(ctx, ParamStart, "cold"),
	}
	if s.numSteps < 1 {
		return nil, errors.Errorf("%s must be >= 1, got %d", ParamNumLeapfrogSteps, s.numSteps)
	}
	if s.stepSize <= 0 {
		return nil, errors.Errorf("%s must be > 0, got %g", ParamStepSize, s.stepSize)
	}
	if s.start != "cold" && s.start != "hot" {
		return nil, errors.Errorf("invalid %s=%q, valid values are \"cold\" or \"hot\"", ParamStart, s.start)
	}
	s.rngState, err = graph.RNGStateFromSeed(s.seed)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating random state for seed %d", s.seed)
	}
	return s, nil
}

// Lattice being sampled.
func (s *Sampler) Lattice() *lattice.Lattice { return s.lattice }

// Evaluator for the sampled lattice, sharing the sampler backend.
func (s *Sampler) Evaluator() *lattice.Evaluator { return s.evaluator }

// NumTrajectories configured with ParamTrajectories.
func (s *Sampler) NumTrajectories() int { return s.numTraj }

// Beta is the gauge coupling.
func (s *Sampler) Beta() float64 { return s.beta }

// hotStartSeed derives the seed of the hot start from ParamSeed. It must differ from the seed of the sampler's
// random state, otherwise the first momenta would be the generator of the initial links.
func hotStartSeed(seed int64) int64 { return seed + 1 }

// InitialLinks returns the starting configuration selected by ParamStart.
func (s *Sampler) InitialLinks() (*lattice.Links, error) {
	if s.start == "hot" {
		return s.evaluator.Hot(hotStartSeed(s.seed))
	}
	return s.evaluator.Cold()
}

// buildExec creates the trajectory executable. Its inputs are (re, im, rngState, beta, stepSize) and its
// outputs (re, im, rngState, deltaH, accepted, plaquettes, action).
func (s *Sampler) buildExec() (err error) {
	if s.exec != nil {
		return nil
	}
	l := s.lattice
	numSteps := s.numSteps
	err = exceptions.TryCatch[error](func() {
		s.exec = graph.MustNewExec(s.backend, func(inputs []*Node) []*Node {
			u0 := l.Field(su3.Matrix{Re: inputs[0], Im: inputs[1]})
			rngState, beta, dt := inputs[2], inputs[3], inputs[4]

			var p0 su3.Matrix
			rngState, p0 = Momenta(l, rngState)
			h0 := Hamiltonian(l, u0, p0, beta)
			u1, p1 := Leapfrog(l, u0, p0, beta, dt, numSteps)
			h1 := Hamiltonian(l, u1, p1, beta)
			deltaH := graph.Sub(h1, h0)

			// Metropolis: accept with probability min(1, exp(-deltaH)).
			var uniform *Node
			rngState, uniform = graph.RandomUniform(rngState, shapes.Make(l.DType(), l.NumBatch()))
			accepted := graph.LessThan(uniform, graph.Exp(graph.Neg(deltaH)))
			u := su3.Matrix{
				Re: graph.Where(accepted, u1.Re, u0.Re),
				Im: graph.Where(accepted, u1.Im, u0.Im),
			}
			return []*Node{
				u.Re, u.Im, rngState,
				graph.ConvertDType(deltaH, dtypes.Float64), accepted,
				graph.ConvertDType(l.Plaquettes(u), dtypes.Float64),
				graph.ConvertDType(l.Action(u, beta), dtypes.Float64),
			}
		})
		s.exec.WithName("hmc_trajectory")
	})
	if err != nil {
		s.exec = nil
		return errors.WithMessagef(err, "building HMC trajectory for %s", l)
	}
	return nil
}

// Trajectory runs one HMC trajectory starting from links x.
//
// The first call compiles the trajectory, which can take a while for larger numbers of leapfrog steps.
func (s *Sampler) Trajectory(x *lattice.Links) (*Result, error) {
	if err := s.lattice.ValidateLinks(x); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.buildExec(); err != nil {
		return nil, err
	}
	outputs, err := s.exec.Exec(x.Re, x.Im, s.rngState, s.beta, s.stepSize)
	if err != nil {
		return nil, errors.WithMessagef(err, "running HMC trajectory for %s", s.lattice)
	}
	s.rngState = outputs[2]
	r := &Result{
		Links:      &lattice.Links{Re: outputs[0], Im: outputs[1]},
		DeltaH:     tensors.MustCopyFlatData[float64](outputs[3]),
		Accepted:   tensors.MustCopyFlatData[bool](outputs[4]),
		Plaquettes: tensors.MustCopyFlatData[float64](outputs[5]),
		Action:     tensors.MustCopyFlatData[float64](outputs[6]),
	}
	for b, dH := range r.DeltaH {
		if math.IsNaN(dH) || math.IsInf(dH, 0) {
			return nil, errors.Errorf("HMC trajectory for %s diverged in chain %d (deltaH=%g): reduce %s",
				s.lattice, b, dH, ParamStepSize)
		}
	}
	return r, nil
}

// HookFn is called by Run after each trajectory, with the trajectory number (starting at 0) and its result.
// If it returns an error, Run stops and returns it.
type HookFn func(trajectory int, r *Result) error

// Run runs numTrajectories trajectories, each starting from the links left by the previous one.
//
// It returns the final links. It stops early if ctx is cancelled or hook returns an error, in which case it
// returns the links reached so far along with the error.
func (s *Sampler) Run(ctx stdcontext.Context, x *lattice.Links, numTrajectories int, hook HookFn) (*lattice.Links, error) {
	for traj := range numTrajectories {
		if err := ctx.Err(); err != nil {
			return x, errors.Wrapf(err, "HMC run interrupted after %d trajectories", traj)
		}
		r, err := s.Trajectory(x)
		if err != nil {
			return x, errors.WithMessagef(err, "trajectory #%d", traj)
		}
		x = r.Links
		if klog.V(1).Enabled() {
			klog.Infof("trajectory #%d: plaquettes=%v, deltaH=%v, accepted=%d/%d",
				traj, r.Plaquettes, r.DeltaH, r.NumAccepted(), len(r.Accepted))
		}
		if hook != nil {
			if err = hook(traj, r); err != nil {
				return x, err
			}
		}
	}
	return x, nil
}

// Finalize releases the compiled trajectory and the evaluator executables.
func (s *Sampler) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exec != nil {
		s.exec.Finalize()
		s.exec = nil
	}
	s.evaluator.Finalize()
}
