// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package hmc

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/nftqcd/lgt/internal/su3"
	"github.com/nftqcd/lgt/pkg/lattice"
)

// Node is an alias to graph.Node.
type Node = graph.Node

// Momenta samples the conjugate momenta of the links: traceless anti-Hermitian matrices with density
// proportional to exp(-KineticEnergy).
func Momenta(l *lattice.Lattice, rngState *Node) (newRngState *Node, p su3.Matrix) {
	dims := l.FieldShape()
	return su3.RandomTAH(rngState, l.DType(), dims[:len(dims)-2]...)
}

// KineticEnergy returns 1/2 sum |P_ij|^2 for each configuration, shaped [numBatch].
func KineticEnergy(l *lattice.Lattice, p su3.Matrix) *Node {
	p = l.Field(p)
	k := graph.ReduceSum(su3.NormSquare(p), 1, 2, 3, 4, 5)
	return graph.MulScalar(k, 0.5)
}

// Hamiltonian returns K(p) + S(u) for each configuration, shaped [numBatch].
func Hamiltonian(l *lattice.Lattice, u, p su3.Matrix, beta *Node) *Node {
	return graph.Add(KineticEnergy(l, p), l.Action(u, beta))
}

// Leapfrog integrates the molecular dynamics equations of motion for numSteps steps of size dt:
//
//	P <- P - dt/2 F(U);  U <- exp(dt P) U;  P <- P - dt/2 F(U)
//
// with the inner half-steps of the momenta merged. F is the gauge force, see lattice.Lattice.GradAction.
// beta and dt are scalars (beta can also be shaped [numBatch]).
//
// The integrator is reversible and area preserving: integrating (u', -p') returns (u, -p).
func Leapfrog(l *lattice.Lattice, u, p su3.Matrix, beta, dt *Node, numSteps int) (su3.Matrix, su3.Matrix) {
	if numSteps < 1 {
		exceptions.Panicf("hmc.Leapfrog: numSteps must be >= 1, got %d", numSteps)
	}
	if dt.DType() != l.DType() {
		dt = graph.ConvertDType(dt, l.DType())
	}
	halfDt := graph.MulScalar(dt, 0.5)
	u, p = l.Field(u), l.Field(p)
	kick := func(p su3.Matrix, u su3.Matrix, eps *Node) su3.Matrix {
		return su3.Sub(p, su3.Scale(l.GradAction(u, beta), eps))
	}
	p = kick(p, u, halfDt)
	for step := range numSteps {
		u = su3.Mul(su3.Exp(su3.Scale(p, dt)), u, false, false)
		if step < numSteps-1 {
			p = kick(p, u, dt)
		}
	}
	p = kick(p, u, halfDt)
	return u, p
}
