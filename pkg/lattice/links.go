// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package lattice

import (
	"encoding/gob"
	"os"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Links is a host-side configuration of links: the real and imaginary planes of the links field, each with
// shape [numBatch, 4, nt, nx, ny, nz, 3, 3].
//
// The tensors may live on a device (as returned by an execution): they are transferred lazily when read.
type Links struct {
	Re, Im *tensors.Tensor
}

// Dimensions of the links field.
func (x *Links) Dimensions() []int {
	return x.Re.Shape().Dimensions
}

// Finalize frees the tensors immediately, without waiting for the garbage collector.
func (x *Links) Finalize() {
	for _, t := range []*tensors.Tensor{x.Re, x.Im} {
		if t == nil {
			continue
		}
		if err := t.FinalizeAll(); err != nil {
			klog.Warningf("failed to finalize links tensor: %+v", err)
		}
	}
	x.Re, x.Im = nil, nil
}

// ValidateLinks checks that x is a valid links configuration for the lattice: both planes present, with the
// lattice dtype and with the canonical shape or a shape of the same size.
func (l *Lattice) ValidateLinks(x *Links) error {
	if x == nil || x.Re == nil || x.Im == nil {
		return errors.Errorf("%s: links are missing the real or imaginary planes", l)
	}
	reShape, imShape := x.Re.Shape(), x.Im.Shape()
	if !reShape.Equal(imShape) {
		return errors.Errorf("%s: links planes have different shapes %s and %s", l, reShape, imShape)
	}
	if reShape.DType != l.dtype {
		return errors.Errorf("%s: links have dtype %s, expected %s", l, reShape.DType, l.dtype)
	}
	if !slices.Equal(reShape.Dimensions, l.FieldShape()) && reShape.Size() != l.FieldSize() {
		return errors.Errorf("%s: links of shape %s don't match the lattice shape %v", l, reShape, l.FieldShape())
	}
	return nil
}

// Save the links to filePath, serialized with gob: real plane followed by the imaginary plane.
func (x *Links) Save(filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q to save links", filePath)
	}
	enc := gob.NewEncoder(f)
	for _, t := range []*tensors.Tensor{x.Re, x.Im} {
		if err = t.GobSerialize(enc); err != nil {
			_ = f.Close()
			return errors.WithMessagef(err, "saving links to %q", filePath)
		}
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing links file %q", filePath)
	}
	return nil
}

// LoadLinks loads links saved with Links.Save.
func LoadLinks(filePath string) (*Links, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q to load links", filePath)
	}
	defer func() { _ = f.Close() }()
	dec := gob.NewDecoder(f)
	re, err := tensors.GobDeserialize(dec)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading real plane of links from %q", filePath)
	}
	im, err := tensors.GobDeserialize(dec)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading imaginary plane of links from %q", filePath)
	}
	return &Links{Re: re, Im: im}, nil
}
