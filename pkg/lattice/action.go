// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package lattice

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/nftqcd/lgt/internal/su3"
)

// Plaquettes returns the average plaquette of each configuration, shaped [numBatch]:
//
//	sum_{planes} sum_{sites} Re tr P_uv(n) / (6 * 3 * Volume)
//
// It is 1 for a cold (all identity) configuration.
func (l *Lattice) Plaquettes(x su3.Matrix) *Node {
	plaqs, _ := l.WilsonLoops(x, false)
	psum := sumRealOverSites(plaqs)
	return graph.DivScalar(psum, float64(NumPlanes*su3.N*l.Volume()))
}

// Action returns the gauge action of each configuration, shaped [numBatch]:
//
//	S = -1/3 * ( beta(1-8c1) * sum Re tr(plaquettes) + beta*c1 * sum Re tr(rectangles) )
//
// beta can be a scalar, or one value per configuration (shaped [numBatch]). It is converted to the lattice dtype.
// Rectangles are only built if c1 != 0.
func (l *Lattice) Action(x su3.Matrix, beta *Node) *Node {
	beta = l.checkBeta(beta)
	coeffs := l.Coeffs(beta)
	plaqs, rects := l.WilsonLoops(x, l.NeedsRect())
	action := graph.Mul(coeffs.Plaq, sumRealOverSites(plaqs))
	if l.NeedsRect() {
		action = graph.Add(action, graph.Mul(coeffs.Rect, sumRealOverSites(rects)))
	}
	return graph.MulScalar(action, -1.0/3.0)
}

// GradAction returns the gauge force: the derivative of the action with respect to the links, projected
// onto the su(3) algebra.
//
// With G = dS/dRe(U) + i dS/dIm(U) (computed by reverse-mode automatic differentiation), it returns
//
//	F = ProjectTAH(G . U^dagger)
//
// shaped like the canonical links field. Moving the links along U -> (1 + eps*X) U, for X in su(3), changes the
// action by eps * sum Re tr(X F^dagger) to first order.
//
// x.Re and x.Im must be nodes of the graph the gradient is taken with respect to (e.g. graph parameters).
func (l *Lattice) GradAction(x su3.Matrix, beta *Node) su3.Matrix {
	total := graph.ReduceAllSum(l.Action(x, beta))
	grads := graph.Gradient(total, x.Re, x.Im)
	g := l.Field(su3.Matrix{Re: grads[0], Im: grads[1]})
	return su3.ProjectTAH(su3.Mul(g, l.Field(x), false, true))
}

// checkBeta converts beta to the lattice dtype and checks its shape: a scalar or [numBatch].
func (l *Lattice) checkBeta(beta *Node) *Node {
	if !beta.IsScalar() && !(beta.Rank() == 1 && beta.Shape().Dimensions[0] == l.numBatch) {
		exceptions.Panicf("%s: beta must be a scalar or shaped [%d], got %s", l, l.numBatch, beta.Shape())
	}
	if beta.DType() != l.dtype {
		beta = graph.ConvertDType(beta, l.dtype)
	}
	return beta
}

// DefaultHotScale is the spread used by Random: links are exp(DefaultHotScale * H), with H a random su(3) element.
var DefaultHotScale = 1.0

// Random returns a random ("hot") links field, with each link an SU(3) matrix drawn with RandomNear(DefaultHotScale).
func (l *Lattice) Random(rngState *Node) (newRngState *Node, x su3.Matrix) {
	return l.RandomNear(rngState, DefaultHotScale)
}

// RandomNear returns a random links field whose links are exp(scale * H), with H a Gaussian su(3) element.
// Small scales produce configurations close to the identity.
func (l *Lattice) RandomNear(rngState *Node, scale float64) (newRngState *Node, x su3.Matrix) {
	dims := l.FieldShape()
	return su3.RandomSU3(rngState, l.dtype, scale, dims[:len(dims)-2]...)
}

// Identity returns the cold links field: all links are the identity.
func (l *Lattice) Identity(g *graph.Graph) su3.Matrix {
	dims := l.FieldShape()
	id := su3.Identity(g, l.dtype)
	return id.Map(func(n *Node) *Node {
		return graph.BroadcastToDims(graph.ExpandLeftToRank(n, len(dims)), dims...)
	})
}

// GaugeTransform applies the gauge transformation g to the links:
//
//	U_mu(n) -> g(n) U_mu(n) g(n+mu)^dagger
//
// g is a field of SU(3) matrices shaped [numBatch, nt, nx, ny, nz, 3, 3]. Wilson loops, and hence the action
// and the plaquettes, are invariant.
func (l *Lattice) GaugeTransform(x su3.Matrix, g su3.Matrix) su3.Matrix {
	x = l.Field(x)
	dirs := make([]su3.Matrix, Dim)
	for mu := range Dim {
		u := su3.Mul(g, Direction(x, mu), false, false)
		dirs[mu] = su3.Mul(u, rollField(g, mu+1), false, true)
	}
	stack := func(parts []*Node) *Node { return graph.Stack(parts, 1) }
	res, ims := make([]*Node, Dim), make([]*Node, Dim)
	for mu, d := range dirs {
		res[mu], ims[mu] = d.Re, d.Im
	}
	return su3.Matrix{Re: stack(res), Im: stack(ims)}
}
