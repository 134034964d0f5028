// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package su3

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
)

const (
	// DefaultExpOrder is the order of the Taylor expansion used by Exp.
	DefaultExpOrder = 12

	// DefaultExpSquarings is the number of squarings used by Exp: the argument is scaled by 2^-squarings
	// before the expansion.
	DefaultExpSquarings = 4
)

// Exp returns the matrix exponential of m, using scaling and squaring with a truncated Taylor series.
//
// For anti-Hermitian m the result is unitary up to the truncation error, which for the default parameters
// is below float64 precision as long as the entries of m are O(1).
func Exp(m Matrix) Matrix {
	return ExpWith(m, DefaultExpOrder, DefaultExpSquarings)
}

// ExpWith is Exp with explicit Taylor order and number of squarings.
func ExpWith(m Matrix, order, squarings int) Matrix {
	if order < 1 || squarings < 0 {
		exceptions.Panicf("su3.ExpWith(m, order=%d, squarings=%d): order must be >= 1 and squarings >= 0",
			order, squarings)
	}
	x := m
	if squarings > 0 {
		x = ScaleBy(m, 1.0/float64(int(1)<<squarings))
	}

	// Horner: exp(x) ~ 1 + x(1 + x/2(1 + x/3(...(1 + x/order))))
	id := IdentityLike(m)
	result := id
	for k := order; k >= 1; k-- {
		result = Add(id, ScaleBy(Mul(x, result, false, false), 1.0/float64(k)))
	}
	for range squarings {
		result = Mul(result, result, false, false)
	}
	return result
}

// RandomTAH samples a field of traceless anti-Hermitian matrices with leading dimensions dims.
//
// Entries are projected from a complex Gaussian matrix (real and imaginary parts drawn from N(0,1)),
// which gives the density proportional to exp(-1/2 sum_ij |P_ij|^2) on the su(3) algebra: the
// distribution of HMC momenta.
func RandomTAH(rngState *Node, dtype dtypes.DType, dims ...int) (newRngState *Node, p Matrix) {
	fullDims := append(append([]int{}, dims...), N, N)
	shape := shapes.Make(dtype, fullDims...)
	var re, im *Node
	rngState, re = graph.RandomNormal(rngState, shape)
	rngState, im = graph.RandomNormal(rngState, shape)
	return rngState, ProjectTAH(Matrix{Re: re, Im: im})
}

// RandomSU3 samples a field of SU(3) matrices exp(scale * H), with H drawn by RandomTAH.
//
// scale controls the spread around the identity: small values produce near-identity links,
// scale ~ 1 produces a "hot" (disordered) configuration.
func RandomSU3(rngState *Node, dtype dtypes.DType, scale float64, dims ...int) (newRngState *Node, u Matrix) {
	var h Matrix
	rngState, h = RandomTAH(rngState, dtype, dims...)
	return rngState, Exp(ScaleBy(h, scale))
}
