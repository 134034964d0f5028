// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package lattice

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/nftqcd/lgt/internal/su3"
)

// Roll shifts x by one site along the given axis, with periodic boundary conditions:
//
//	Roll(x, axis)[..., n, ...] = x[..., (n+1) mod size, ...]
//
// For a per-direction field, rolling along lattice direction mu (axis mu+1) gives the value at the
// neighbour n + mu_hat.
func Roll(x *Node, axis int) *Node {
	size := x.Shape().Dimensions[axis]
	if size == 1 {
		return x
	}
	head := graph.SliceAxis(x, axis, graph.AxisRange(0, 1))
	return graph.ShiftWithValue(x, axis, graph.ShiftDirLeft, 1, head)
}

// rollField applies Roll to both planes of m.
func rollField(m su3.Matrix, axis int) su3.Matrix {
	return m.Map(func(x *Node) *Node { return Roll(x, axis) })
}

// Field returns x with the canonical links shape [numBatch, Dim, nt, nx, ny, nz, 3, 3].
//
// x can have any shape with the same number of elements (e.g. a flat layout): it is reshaped.
// It panics if the size or the dtype doesn't match.
func (l *Lattice) Field(x su3.Matrix) su3.Matrix {
	if !x.Re.Shape().Equal(x.Im.Shape()) {
		exceptions.Panicf("%s: real and imaginary planes must have the same shape, got %s and %s",
			l, x.Re.Shape(), x.Im.Shape())
	}
	if x.DType() != l.dtype {
		exceptions.Panicf("%s: links must have dtype %s, got %s", l, l.dtype, x.DType())
	}
	if l.fieldDimsEqual(x.Shape().Dimensions) {
		return x
	}
	if x.Shape().Size() != l.FieldSize() {
		exceptions.Panicf("%s: links of shape %s can't be reshaped to %v", l, x.Shape(), l.FieldShape())
	}
	dims := l.FieldShape()
	return x.Map(func(n *Node) *Node { return graph.Reshape(n, dims...) })
}

// Direction returns the links x[:, mu] of direction mu, shaped [numBatch, nt, nx, ny, nz, 3, 3].
// x must already be in the canonical shape (see Field).
func Direction(x su3.Matrix, mu int) su3.Matrix {
	return x.Map(func(n *Node) *Node {
		return graph.Squeeze(graph.SliceAxis(n, 1, graph.AxisElem(mu)), 1)
	})
}

// LinkStaple returns the product link . staple.
func (l *Lattice) LinkStaple(link, staple su3.Matrix) su3.Matrix {
	return su3.Mul(link, staple, false, false)
}

// Plaquette returns the trace of the plaquette in the (u, v) plane at every site:
//
//	P_uv(n) = tr[ U_u(n) U_v(n+u) (U_v(n) U_u(n+v))^dagger ]
//
// The result is shaped [numBatch, nt, nx, ny, nz].
func (l *Lattice) Plaquette(x su3.Matrix, u, v int) su3.Complex {
	x = l.Field(x)
	xu, xv := Direction(x, u), Direction(x, v)
	yuv := su3.Mul(xu, rollField(xv, u+1), false, false)
	yvu := su3.Mul(xv, rollField(xu, v+1), false, false)
	return su3.Trace(su3.Mul(yuv, yvu, false, true))
}

// WilsonLoops returns the traced plaquettes for each of the 6 planes (u, v), u in 1..3, v < u,
// in the order (1,0), (2,0), (2,1), (3,0), (3,1), (3,2).
//
// If needsRect is set, it also returns the traced 1x2 rectangles: two per plane (one elongated in u, one in v),
// in the same plane order, 12 in total. Otherwise rects is nil.
//
// Each loop is shaped [numBatch, nt, nx, ny, nz].
func (l *Lattice) WilsonLoops(x su3.Matrix, needsRect bool) (plaqs, rects []su3.Complex) {
	x = l.Field(x)
	plaqs = make([]su3.Complex, 0, NumPlanes)
	if needsRect {
		rects = make([]su3.Complex, 0, 2*NumPlanes)
	}
	for u := 1; u < Dim; u++ {
		for v := 0; v < u; v++ {
			xu, xv := Direction(x, u), Direction(x, v)
			yuv := su3.Mul(xu, rollField(xv, u+1), false, false) // U_u(n) U_v(n+u)
			yvu := su3.Mul(xv, rollField(xu, v+1), false, false) // U_v(n) U_u(n+v)
			plaqs = append(plaqs, su3.Trace(su3.Mul(yuv, yvu, false, true)))
			if !needsRect {
				continue
			}

			yu := rollField(xu, v+1)             // U_u(n+v)
			yv := rollField(xv, u+1)             // U_v(n+u)
			uu := su3.Mul(xv, yuv, true, false)  // U_v(n)^+ U_u(n) U_v(n+u)
			ur := su3.Mul(xu, yvu, true, false)  // U_u(n)^+ U_v(n) U_u(n+v)
			ul := su3.Mul(yuv, yu, false, true)  // U_u(n) U_v(n+u) U_u(n+v)^+
			ud := su3.Mul(yvu, yv, false, true)  // U_v(n) U_u(n+v) U_v(n+u)^+
			ulNext := rollField(ul, u+1)         // ul(n+u)
			udNext := rollField(ud, v+1)         // ud(n+v)
			rects = append(rects,
				su3.Trace(su3.Mul(ur, ulNext, false, true)),
				su3.Trace(su3.Mul(uu, udNext, false, true)))
		}
	}
	return
}

// sumRealOverSites sums the real part of each loop over all sites and all loops, returning a [numBatch] node.
func sumRealOverSites(loops []su3.Complex) *Node {
	var sum *Node
	for _, loop := range loops {
		s := graph.ReduceSum(loop.Re, siteAxes...)
		if sum == nil {
			sum = s
		} else {
			sum = graph.Add(sum, s)
		}
	}
	return sum
}
