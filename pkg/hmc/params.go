// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package hmc

import (
	"strings"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/nftqcd/lgt/pkg/lattice"
	"github.com/pkg/errors"
)

const (
	// ParamBeta is the gauge coupling beta of the action. Default is 6.0.
	ParamBeta = "beta"

	// ParamC1 is the rectangle coefficient of the action: 0 is the Wilson action, -0.331 the Iwasaki action.
	// Default is 0.
	ParamC1 = "c1"

	// ParamStepSize is the leapfrog step size. Default is 0.01.
	//
	// The energy violation of a trajectory grows as the step size squared times the number of links: larger
	// lattices need smaller steps to keep a reasonable acceptance rate.
	ParamStepSize = "hmc_step_size"

	// ParamNumLeapfrogSteps is the number of leapfrog steps per trajectory. Default is 20.
	ParamNumLeapfrogSteps = "hmc_num_steps"

	// ParamTrajectories is the number of trajectories of a run. Default is 100.
	ParamTrajectories = "hmc_trajectories"

	// ParamSeed seeds the random number generator used for the momenta, the Metropolis test and hot starts.
	ParamSeed = "seed"

	// ParamDType is the dtype of the links: "float64" (default) or "float32".
	ParamDType = "dtype"

	// ParamBatchSize is the number of independent chains evolved in parallel. Default is 1.
	ParamBatchSize = "batch_size"

	// ParamShape is the lattice extents (nt, nx, ny, nz). Default is 4x4x4x4.
	ParamShape = "lattice_shape"

	// ParamStart selects the initial configuration: "cold" (all links identity, the default) or "hot" (random).
	ParamStart = "start"
)

// CreateDefaultContext returns a context with the default sampler parameters.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	ctx.SetParams(map[string]any{
		ParamBeta:             6.0,
		ParamC1:               0.0,
		ParamStepSize:         0.01,
		ParamNumLeapfrogSteps: 20,
		ParamTrajectories:     100,
		ParamSeed:             42,
		ParamDType:            "float64",
		ParamBatchSize:        1,
		ParamShape:            []int{4, 4, 4, 4},
		ParamStart:            "cold",
	})
	return ctx
}

// LatticeFromContext creates the lattice described by the parameters in ctx.
func LatticeFromContext(ctx *context.Context) (*lattice.Lattice, error) {
	dims := context.GetParamOr(ctx, ParamShape, []int{4, 4, 4, 4})
	if len(dims) != lattice.Dim {
		return nil, errors.Errorf("%s must have %d values (nt, nx, ny, nz), got %v", ParamShape, lattice.Dim, dims)
	}
	var shape [lattice.Dim]int
	copy(shape[:], dims)

	var dtype dtypes.DType
	dtypeStr := context.GetParamOr(ctx, ParamDType, "float64")
	switch strings.ToLower(dtypeStr) {
	case "float64", "f64":
		dtype = dtypes.Float64
	case "float32", "f32":
		dtype = dtypes.Float32
	default:
		return nil, errors.Errorf("invalid %s=%q: only float32 and float64 are supported", ParamDType, dtypeStr)
	}

	l, err := lattice.New(
		context.GetParamOr(ctx, ParamBatchSize, 1),
		shape,
		context.GetParamOr(ctx, ParamC1, 0.0),
		lattice.WithDType(dtype))
	if err != nil {
		return nil, errors.WithMessage(err, "creating lattice from context parameters")
	}
	return l, nil
}
