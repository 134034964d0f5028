// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package su3_test

import (
	"math"
	"testing"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/nftqcd/lgt/internal/su3"
	"github.com/stretchr/testify/require"
)

func must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func shapesMake(dims ...int) shapes.Shape {
	return shapes.Make(dtypes.Float64, dims...)
}

// maxAbs returns the largest absolute entry over both planes of m.
func maxAbs(m su3.Matrix) *Node {
	return Max(ReduceAllMax(Abs(m.Re)), ReduceAllMax(Abs(m.Im)))
}

// unitarityError returns max |U U^dagger - 1|.
func unitarityError(u su3.Matrix) *Node {
	return maxAbs(su3.Sub(su3.Mul(u, u, false, true), su3.IdentityLike(u)))
}

func TestMul(t *testing.T) {
	graphtest.RunTestGraphFn(t, "Mul", func(g *Graph) (inputs, outputs []*Node) {
		a := su3.Matrix{
			Re: Const(g, [][]float64{{1, 2, 0}, {0, 1, 0}, {0, 0, 1}}),
			Im: Const(g, [][]float64{{0, 0, 1}, {0, 0, 0}, {0, 0, 0}}),
		}
		b := su3.Matrix{
			Re: Const(g, [][]float64{{0, 0, 0}, {1, 0, 0}, {0, 0, 2}}),
			Im: Const(g, [][]float64{{1, 0, 0}, {0, 0, 0}, {0, 1, 0}}),
		}
		c := su3.Mul(a, b, false, false)
		cAdj := su3.Mul(a, b, true, false)
		inputs = []*Node{a.Re, a.Im, b.Re, b.Im}
		outputs = []*Node{c.Re, c.Im, cAdj.Re, cAdj.Im}
		return
	}, []any{
		// a.b
		[][]float64{{2, -1, 0}, {1, 0, 0}, {0, 0, 2}},
		[][]float64{{1, 0, 2}, {0, 0, 0}, {0, 1, 0}},
		// a^dagger.b
		[][]float64{{0, 0, 0}, {1, 0, 0}, {1, 0, 2}},
		[][]float64{{1, 0, 0}, {2, 0, 0}, {0, 1, 0}},
	}, 1e-12)
}

func TestTraceAndNorm(t *testing.T) {
	graphtest.RunTestGraphFn(t, "Trace", func(g *Graph) (inputs, outputs []*Node) {
		m := su3.Matrix{
			Re: Const(g, [][][]float64{
				{{1, 5, 5}, {5, 2, 5}, {5, 5, 3}},
				{{-1, 0, 0}, {0, 0, 0}, {0, 0, 1}},
			}),
			Im: Const(g, [][][]float64{
				{{0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
				{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}},
			}),
		}
		tr := su3.Trace(m)
		inputs = []*Node{m.Re, m.Im}
		outputs = []*Node{tr.Re, tr.Im, su3.NormSquare(m)}
		return
	}, []any{
		[]float64{6, 0},
		[]float64{1, 0},
		[]float64{1 + 4 + 9 + 6*25 + 7, 2},
	}, 1e-12)
}

func TestProjectTAH(t *testing.T) {
	graphtest.RunTestGraphFn(t, "ProjectTAH", func(g *Graph) (inputs, outputs []*Node) {
		rngState := Const(g, must1(RNGStateFromSeed(42)))
		shape := []int{5, 3, 3}
		_, re := RandomNormal(rngState, shapesMake(shape...))
		_, im := RandomNormal(Const(g, must1(RNGStateFromSeed(7))), shapesMake(shape...))
		p := su3.ProjectTAH(su3.Matrix{Re: re, Im: im})
		tr := su3.Trace(p)
		antiHermitianErr := maxAbs(su3.Add(p, su3.Adjoint(p)))
		traceErr := Max(ReduceAllMax(Abs(tr.Re)), ReduceAllMax(Abs(tr.Im)))
		// Projecting twice is the identity.
		idempotentErr := maxAbs(su3.Sub(su3.ProjectTAH(p), p))
		outputs = []*Node{antiHermitianErr, traceErr, idempotentErr}
		return
	}, []any{0.0, 0.0, 0.0}, 1e-12)
}

func TestExp(t *testing.T) {
	theta := 0.7
	graphtest.RunTestGraphFn(t, "Exp(diagonal)", func(g *Graph) (inputs, outputs []*Node) {
		x := su3.Matrix{
			Re: Zeros(g, shapesMake(3, 3)),
			Im: Const(g, [][]float64{{theta, 0, 0}, {0, -theta, 0}, {0, 0, 0}}),
		}
		u := su3.Exp(x)
		tr := su3.Trace(u)
		outputs = []*Node{tr.Re, tr.Im}
		return
	}, []any{2*math.Cos(theta) + 1, 0.0}, 1e-10)

	graphtest.RunTestGraphFn(t, "RandomSU3 is unitary", func(g *Graph) (inputs, outputs []*Node) {
		rngState := Const(g, must1(RNGStateFromSeed(42)))
		_, u := su3.RandomSU3(rngState, dtypes.Float64, 1.0, 4, 2)
		tr := su3.Trace(su3.Mul(u, u, true, false))
		outputs = []*Node{unitarityError(u), ReduceAllMean(tr.Re)}
		return
	}, []any{0.0, 3.0}, 1e-9)
}

func TestExpWithInvalidArguments(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	require.Panics(t, func() {
		_ = MustNewExec(backend, func(g *Graph) *Node {
			x := su3.Identity(g, dtypes.Float64)
			return su3.ExpWith(x, 0, 1).Re
		}).MustExec()
	})
}
