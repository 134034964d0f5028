// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package lattice

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/nftqcd/lgt/internal/su3"
	"github.com/pkg/errors"
)

// Evaluator holds compiled executables for the lattice quantities, for callers working with host tensors.
//
// Executables are created on first use and cached: the first call of each method JIT-compiles the
// computation, later calls are fast. It is safe for concurrent use.
type Evaluator struct {
	backend backends.Backend
	lattice *Lattice

	mu                                    sync.Mutex
	actionExec, plaqExec, forceExec       *graph.Exec
	hotExec, coldExec, gaugeTransformExec *graph.Exec
}

// NewEvaluator creates an Evaluator for the lattice on the given backend.
func NewEvaluator(backend backends.Backend, lattice *Lattice) *Evaluator {
	return &Evaluator{backend: backend, lattice: lattice}
}

// Lattice returns the lattice being evaluated.
func (e *Evaluator) Lattice() *Lattice { return e.lattice }

// Backend used by the evaluator.
func (e *Evaluator) Backend() backends.Backend { return e.backend }

// execFor returns the cached executable in *slot, creating it with build if needed.
func (e *Evaluator) execFor(slot **graph.Exec, build func() *graph.Exec) (exec *graph.Exec, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if *slot == nil {
		err = exceptions.TryCatch[error](func() { *slot = build() })
		if err != nil {
			return nil, errors.WithMessagef(err, "creating executable for %s", e.lattice)
		}
	}
	return *slot, nil
}

// run executes exec with the given arguments, after validating the links.
func (e *Evaluator) run(exec *graph.Exec, x *Links, args ...any) ([]*tensors.Tensor, error) {
	if x != nil {
		if err := e.lattice.ValidateLinks(x); err != nil {
			return nil, err
		}
		args = append([]any{x.Re, x.Im}, args...)
	}
	var outputs []*tensors.Tensor
	err := exceptions.TryCatch[error](func() {
		outputs = exec.MustExec(args...)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "executing %q for %s", exec.Name(), e.lattice)
	}
	return outputs, nil
}

// Action returns the action of each configuration, shaped [numBatch].
func (e *Evaluator) Action(x *Links, beta float64) (*tensors.Tensor, error) {
	exec, err := e.execFor(&e.actionExec, func() *graph.Exec {
		return graph.MustNewExec(e.backend, func(re, im, beta *Node) *Node {
			return e.lattice.Action(su3.Matrix{Re: re, Im: im}, beta)
		})
	})
	if err != nil {
		return nil, err
	}
	outputs, err := e.run(exec, x, beta)
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}

// Plaquettes returns the average plaquette of each configuration, shaped [numBatch].
func (e *Evaluator) Plaquettes(x *Links) (*tensors.Tensor, error) {
	exec, err := e.execFor(&e.plaqExec, func() *graph.Exec {
		return graph.MustNewExec(e.backend, func(re, im *Node) *Node {
			return e.lattice.Plaquettes(su3.Matrix{Re: re, Im: im})
		})
	})
	if err != nil {
		return nil, err
	}
	outputs, err := e.run(exec, x)
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}

// Force returns the projected gradient of the action (see Lattice.GradAction) as links-shaped planes.
func (e *Evaluator) Force(x *Links, beta float64) (*Links, error) {
	exec, err := e.execFor(&e.forceExec, func() *graph.Exec {
		return graph.MustNewExec(e.backend, func(re, im, beta *Node) (*Node, *Node) {
			f := e.lattice.GradAction(su3.Matrix{Re: re, Im: im}, beta)
			return f.Re, f.Im
		})
	})
	if err != nil {
		return nil, err
	}
	outputs, err := e.run(exec, x, beta)
	if err != nil {
		return nil, err
	}
	return &Links{Re: outputs[0], Im: outputs[1]}, nil
}

// Hot returns a random configuration (see Lattice.Random), seeded with seed.
func (e *Evaluator) Hot(seed int64) (*Links, error) {
	rngState, err := graph.RNGStateFromSeed(seed)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating random state for seed %d", seed)
	}
	exec, err := e.execFor(&e.hotExec, func() *graph.Exec {
		return graph.MustNewExec(e.backend, func(rngState *Node) (*Node, *Node) {
			_, x := e.lattice.Random(rngState)
			return x.Re, x.Im
		})
	})
	if err != nil {
		return nil, err
	}
	outputs, err := e.run(exec, nil, rngState)
	if err != nil {
		return nil, err
	}
	return &Links{Re: outputs[0], Im: outputs[1]}, nil
}

// Cold returns the configuration with all links set to the identity.
func (e *Evaluator) Cold() (*Links, error) {
	exec, err := e.execFor(&e.coldExec, func() *graph.Exec {
		return graph.MustNewExec(e.backend, func(g *graph.Graph) (*Node, *Node) {
			x := e.lattice.Identity(g)
			return x.Re, x.Im
		})
	})
	if err != nil {
		return nil, err
	}
	outputs, err := e.run(exec, nil)
	if err != nil {
		return nil, err
	}
	return &Links{Re: outputs[0], Im: outputs[1]}, nil
}

// RandomGaugeTransform applies a random gauge transformation (seeded with seed) to x.
// The action and plaquettes of the result are the same as those of x.
func (e *Evaluator) RandomGaugeTransform(x *Links, seed int64) (*Links, error) {
	rngState, err := graph.RNGStateFromSeed(seed)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating random state for seed %d", seed)
	}
	exec, err := e.execFor(&e.gaugeTransformExec, func() *graph.Exec {
		return graph.MustNewExec(e.backend, func(re, im, rngState *Node) (*Node, *Node) {
			dims := e.lattice.FieldShape()
			siteDims := append([]int{dims[0]}, dims[2:6]...)
			_, g := su3.RandomSU3(rngState, e.lattice.DType(), 1.0, siteDims...)
			y := e.lattice.GaugeTransform(su3.Matrix{Re: re, Im: im}, g)
			return y.Re, y.Im
		})
	})
	if err != nil {
		return nil, err
	}
	outputs, err := e.run(exec, x, rngState)
	if err != nil {
		return nil, err
	}
	return &Links{Re: outputs[0], Im: outputs[1]}, nil
}

// Finalize releases the compiled executables.
func (e *Evaluator) Finalize() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, exec := range []**graph.Exec{&e.actionExec, &e.plaqExec, &e.forceExec, &e.hotExec, &e.coldExec,
		&e.gaugeTransformExec} {
		if *exec != nil {
			(*exec).Finalize()
			*exec = nil
		}
	}
}
