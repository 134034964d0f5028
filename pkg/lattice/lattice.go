// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

// Package lattice implements a batched 4D lattice with SU(3) link variables, and the Wilson gauge
// action built from plaquettes and (optionally) rectangles, together with its gradient (the gauge force).
//
// The main elements in the package are:
//
//   - Lattice: immutable description of the lattice (batch size, extents, improvement coefficient c1, dtype).
//     Its methods build computation graphs: WilsonLoops, Plaquettes, Action, GradAction, Random.
//
//   - Links: a host-side configuration of links, as two tensors (real and imaginary parts), with
//     shape [numBatch, 4, nt, nx, ny, nz, 3, 3].
//
//   - Evaluator: compiled (and cached) executables for the lattice quantities, for callers that only
//     hold tensors.
//
// All lattice directions have periodic boundary conditions.
package lattice

import (
	"fmt"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/nftqcd/lgt/internal/su3"
	"github.com/pkg/errors"
)

// Node is an alias to graph.Node.
type Node = graph.Node

const (
	// Dim is the number of spacetime dimensions.
	Dim = 4

	// NumPlanes is the number of (u, v) planes with u > v: 6 in 4 dimensions.
	NumPlanes = Dim * (Dim - 1) / 2
)

// Lattice describes a batch of 4D lattices with SU(3) links.
//
// Links are laid out as [numBatch, Dim, nt, nx, ny, nz, 3, 3]: for direction mu, the lattice axis of
// the per-direction field x[:, mu] is mu+1.
type Lattice struct {
	numBatch int
	shape    [Dim]int
	c1       float64
	dtype    dtypes.DType
}

// Option configures optional attributes of a Lattice.
type Option func(l *Lattice)

// WithDType sets the float dtype of the links. Default is dtypes.Float64.
func WithDType(dtype dtypes.DType) Option {
	return func(l *Lattice) {
		l.dtype = dtype
	}
}

// New creates a Lattice with numBatch independent configurations (chains) of the given shape (nt, nx, ny, nz).
//
// c1 is the rectangle (1x2 loops) coefficient of the improved gauge action: c1 = 0 is the plain Wilson
// action, c1 = -1/12 is the tree-level Symanzik action and c1 = -0.331 the Iwasaki action.
func New(numBatch int, shape [Dim]int, c1 float64, opts ...Option) (*Lattice, error) {
	l := &Lattice{
		numBatch: numBatch,
		shape:    shape,
		c1:       c1,
		dtype:    dtypes.Float64,
	}
	for _, opt := range opts {
		opt(l)
	}
	if numBatch < 1 {
		return nil, errors.Errorf("lattice.New: numBatch must be >= 1, got %d", numBatch)
	}
	for mu, n := range shape {
		if n < 1 {
			return nil, errors.Errorf("lattice.New: all lattice extents must be >= 1, got shape %v (direction %d)",
				shape, mu)
		}
	}
	if l.dtype != dtypes.Float32 && l.dtype != dtypes.Float64 {
		return nil, errors.Errorf("lattice.New: dtype must be Float32 or Float64, got %s", l.dtype)
	}
	return l, nil
}

// String implements fmt.Stringer.
func (l *Lattice) String() string {
	return fmt.Sprintf("LatticeSU3(nb=%d, shape=%v, c1=%g, dtype=%s)", l.numBatch, l.shape, l.c1, l.dtype)
}

// NumBatch is the number of configurations (chains) held in parallel.
func (l *Lattice) NumBatch() int { return l.numBatch }

// Shape returns the lattice extents (nt, nx, ny, nz).
func (l *Lattice) Shape() [Dim]int { return l.shape }

// C1 is the rectangle coefficient.
func (l *Lattice) C1() float64 { return l.c1 }

// DType of the links.
func (l *Lattice) DType() dtypes.DType { return l.dtype }

// NeedsRect reports whether the action includes rectangle terms.
func (l *Lattice) NeedsRect() bool { return l.c1 != 0 }

// Volume is the number of sites, nt*nx*ny*nz.
func (l *Lattice) Volume() int {
	v := 1
	for _, n := range l.shape {
		v *= n
	}
	return v
}

// NumSites is the number of sites of one configuration. Same as Volume.
func (l *Lattice) NumSites() int { return l.Volume() }

// NumLinks is the number of links of one configuration, Dim*Volume.
func (l *Lattice) NumLinks() int { return Dim * l.Volume() }

// NumPlaquettes returns nt*nx, the number of plaquettes in the (t, x) plane.
func (l *Lattice) NumPlaquettes() int { return l.shape[0] * l.shape[1] }

// SiteIndices returns (nt, nx, nx, nx): the site index ranges assuming a hypercubic spatial volume.
// Use Shape for the actual extents.
func (l *Lattice) SiteIndices() [Dim]int {
	return [Dim]int{l.shape[0], l.shape[1], l.shape[1], l.shape[1]}
}

// LinkIndices returns SiteIndices followed by Dim.
func (l *Lattice) LinkIndices() [Dim + 1]int {
	s := l.SiteIndices()
	return [Dim + 1]int{s[0], s[1], s[2], s[3], Dim}
}

// LinkShape is the shape of one link matrix.
func (l *Lattice) LinkShape() [2]int { return [2]int{su3.N, su3.N} }

// FieldShape returns the canonical dimensions of a links field: [numBatch, Dim, nt, nx, ny, nz, 3, 3].
func (l *Lattice) FieldShape() []int {
	return []int{l.numBatch, Dim, l.shape[0], l.shape[1], l.shape[2], l.shape[3], su3.N, su3.N}
}

// FieldSize is the number of entries (per plane) of a links field.
func (l *Lattice) FieldSize() int {
	size := 1
	for _, d := range l.FieldShape() {
		size *= d
	}
	return size
}

// siteAxes are the lattice axes of a per-direction field [numBatch, nt, nx, ny, nz, ...].
var siteAxes = []int{1, 2, 3, 4}

// Coefficients of the plaquette and rectangle terms of the action.
type Coefficients struct {
	Plaq, Rect *Node
}

// Coeffs returns the coefficients for the plaquette and rectangle terms:
//
//	plaq = beta * (1 - 8*c1)
//	rect = beta * c1
func (l *Lattice) Coeffs(beta *Node) Coefficients {
	return Coefficients{
		Plaq: graph.MulScalar(beta, 1.0-8.0*l.c1),
		Rect: graph.MulScalar(beta, l.c1),
	}
}

// fieldDimsEqual reports whether dims is the canonical field shape.
func (l *Lattice) fieldDimsEqual(dims []int) bool {
	return slices.Equal(dims, l.FieldShape())
}
