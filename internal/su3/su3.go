// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

// Package su3 implements the SU(3) matrix algebra needed by the lattice and the sampler,
// as GoMLX graph operations over fields of 3x3 complex matrices.
//
// Complex values are kept as two real planes (Re, Im) of the same float dtype, so every
// operation stays on the real-valued automatic differentiation path of the graph package.
// All operations broadcast over any number of leading (batch/lattice) axes: only the last two
// axes are the color axes.
package su3

import (
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/shapes"
)

// Node is an alias to graph.Node, to keep signatures short.
type Node = graph.Node

// N is the number of colors.
const N = 3

// Matrix is a field of complex NxN matrices with shape [..., N, N] on both planes.
type Matrix struct {
	Re, Im *Node
}

// Complex is a field of complex scalars, e.g. traces.
type Complex struct {
	Re, Im *Node
}

// New returns the Matrix with the given planes, checking that the shapes match and that
// the last two axes are the color axes.
func New(re, im *Node) Matrix {
	if !re.Shape().Equal(im.Shape()) {
		exceptions.Panicf("su3.New(re, im): real and imaginary planes must have the same shape, got %s and %s",
			re.Shape(), im.Shape())
	}
	dims := re.Shape().Dimensions
	if len(dims) < 2 || dims[len(dims)-1] != N || dims[len(dims)-2] != N {
		exceptions.Panicf("su3.New(re, im): last two axes must be %dx%d, got shape %s", N, N, re.Shape())
	}
	return Matrix{Re: re, Im: im}
}

// Shape of each of the planes.
func (m Matrix) Shape() shapes.Shape { return m.Re.Shape() }

// DType of the planes.
func (m Matrix) DType() dtypes.DType { return m.Re.DType() }

// Graph the matrix belongs to.
func (m Matrix) Graph() *graph.Graph { return m.Re.Graph() }

// Nodes returns the planes as a slice, handy as Exec outputs.
func (m Matrix) Nodes() []*Node { return []*Node{m.Re, m.Im} }

// Map applies fn to both planes. fn must be real-linear for the result to be meaningful,
// e.g. slicing, reshaping, rolling or scaling by a real value.
func (m Matrix) Map(fn func(x *Node) *Node) Matrix {
	return Matrix{Re: fn(m.Re), Im: fn(m.Im)}
}

// Real returns the real part.
func (c Complex) Real() *Node { return c.Re }

// Map applies fn to both planes of c.
func (c Complex) Map(fn func(x *Node) *Node) Complex {
	return Complex{Re: fn(c.Re), Im: fn(c.Im)}
}

// identity returns the real identity constant, with leading axes of dimension 1 up to the given rank,
// so it broadcasts against any field of that rank.
func identity(g *graph.Graph, dtype dtypes.DType, rank int) *Node {
	one := make([][]float64, N)
	for i := range N {
		one[i] = make([]float64, N)
		one[i][i] = 1
	}
	return graph.ExpandLeftToRank(graph.ConstAsDType(g, dtype, one), rank)
}

// Identity returns the identity matrix with the given dtype, shaped [N, N].
func Identity(g *graph.Graph, dtype dtypes.DType) Matrix {
	re := identity(g, dtype, 2)
	return Matrix{Re: re, Im: graph.ZerosLike(re)}
}

// IdentityLike returns a field of identity matrices shaped like m.
func IdentityLike(m Matrix) Matrix {
	dims := m.Shape().Dimensions
	re := graph.BroadcastToDims(identity(m.Graph(), m.DType(), len(dims)), dims...)
	return Matrix{Re: re, Im: graph.ZerosLike(re)}
}

// Add returns a + b.
func Add(a, b Matrix) Matrix {
	return Matrix{Re: graph.Add(a.Re, b.Re), Im: graph.Add(a.Im, b.Im)}
}

// Sub returns a - b.
func Sub(a, b Matrix) Matrix {
	return Matrix{Re: graph.Sub(a.Re, b.Re), Im: graph.Sub(a.Im, b.Im)}
}

// Scale multiplies m by a real node. s can be a scalar or a prefix of m's shape (e.g. one value per
// batch element), in which case it is expanded with trailing axes of dimension 1.
func Scale(m Matrix, s *Node) Matrix {
	if !s.IsScalar() && s.Rank() < m.Shape().Rank() {
		dims := slices.Clone(s.Shape().Dimensions)
		for len(dims) < m.Shape().Rank() {
			dims = append(dims, 1)
		}
		s = graph.Reshape(s, dims...)
	}
	return m.Map(func(x *Node) *Node { return graph.Mul(x, s) })
}

// ScaleBy multiplies m by a real constant.
func ScaleBy(m Matrix, s float64) Matrix {
	return m.Map(func(x *Node) *Node { return graph.MulScalar(x, s) })
}

// Adjoint returns the conjugate transpose of m.
func Adjoint(m Matrix) Matrix {
	return Matrix{
		Re: graph.Transpose(m.Re, -2, -1),
		Im: graph.Neg(graph.Transpose(m.Im, -2, -1)),
	}
}

// Mul returns the matrix product op(a) . op(b), where op is the adjoint if the corresponding flag is set.
func Mul(a, b Matrix, adjointA, adjointB bool) Matrix {
	if adjointA {
		a = Adjoint(a)
	}
	if adjointB {
		b = Adjoint(b)
	}
	// (A + iB)(C + iD) = (AC - BD) + i(AD + BC)
	return Matrix{
		Re: graph.Sub(graph.MatMul(a.Re, b.Re), graph.MatMul(a.Im, b.Im)),
		Im: graph.Add(graph.MatMul(a.Re, b.Im), graph.MatMul(a.Im, b.Re)),
	}
}

// Trace over the color axes. The result drops the last two axes.
func Trace(m Matrix) Complex {
	rank := m.Shape().Rank()
	id := identity(m.Graph(), m.DType(), rank)
	return Complex{
		Re: graph.ReduceSum(graph.Mul(m.Re, id), rank-2, rank-1),
		Im: graph.ReduceSum(graph.Mul(m.Im, id), rank-2, rank-1),
	}
}

// NormSquare returns the sum of |m_ij|^2 over the color axes. The result drops the last two axes.
func NormSquare(m Matrix) *Node {
	rank := m.Shape().Rank()
	return graph.ReduceSum(graph.Add(graph.Square(m.Re), graph.Square(m.Im)), rank-2, rank-1)
}

// ProjectTAH projects m onto the traceless anti-Hermitian matrices (the su(3) algebra):
//
//	T = (m - m^dagger)/2 - tr(m - m^dagger)/(2N) * 1
func ProjectTAH(m Matrix) Matrix {
	ah := ScaleBy(Sub(m, Adjoint(m)), 0.5)

	// The anti-Hermitian part has a purely imaginary diagonal: the trace correction only touches Im.
	trIm := graph.DivScalar(Trace(ah).Im, float64(N))
	dims := append(slices.Clone(trIm.Shape().Dimensions), 1, 1)
	correction := graph.Mul(graph.Reshape(trIm, dims...), identity(m.Graph(), m.DType(), len(dims)))
	return Matrix{Re: ah.Re, Im: graph.Sub(ah.Im, correction)}
}
