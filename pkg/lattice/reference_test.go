// Copyright 2026 The LGT Authors. SPDX-License-Identifier: Apache-2.0

package lattice

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Host-side loop sums used as an independent check of the graph implementation.

type mat3 [3][3]complex128

func (a mat3) mul(b mat3) (c mat3) {
	for i := range 3 {
		for j := range 3 {
			var s complex128
			for k := range 3 {
				s += a[i][k] * b[k][j]
			}
			c[i][j] = s
		}
	}
	return
}

func (a mat3) adj() (c mat3) {
	for i := range 3 {
		for j := range 3 {
			c[i][j] = complex(real(a[j][i]), -imag(a[j][i]))
		}
	}
	return
}

func (a mat3) trace() complex128 { return a[0][0] + a[1][1] + a[2][2] }

// hostLinks indexes a canonical links configuration.
type hostLinks struct {
	l      *Lattice
	re, im []float64
}

func newHostLinks(l *Lattice, x *Links) *hostLinks {
	return &hostLinks{
		l:  l,
		re: tensors.MustCopyFlatData[float64](x.Re),
		im: tensors.MustCopyFlatData[float64](x.Im),
	}
}

// link returns U_mu(n) for batch element b, with n taken modulo the lattice extents.
func (h *hostLinks) link(b, mu int, n [Dim]int) (u mat3) {
	shape := h.l.Shape()
	idx := b*Dim + mu
	for d := range Dim {
		idx = idx*shape[d] + ((n[d]%shape[d])+shape[d])%shape[d]
	}
	idx *= 9
	for i := range 3 {
		for j := range 3 {
			u[i][j] = complex(h.re[idx+3*i+j], h.im[idx+3*i+j])
		}
	}
	return
}

func shift(n [Dim]int, mu, steps int) [Dim]int {
	n[mu] += steps
	return n
}

// sites calls fn for each site of the lattice.
func (h *hostLinks) sites(fn func(n [Dim]int)) {
	shape := h.l.Shape()
	for t := range shape[0] {
		for x := range shape[1] {
			for y := range shape[2] {
				for z := range shape[3] {
					fn([Dim]int{t, x, y, z})
				}
			}
		}
	}
}

// loopSums returns, for batch element b, the sum over sites and planes of Re tr of the plaquettes and of
// the 2x1 and 1x2 rectangles.
func (h *hostLinks) loopSums(b int) (plaqSum, rectSum float64) {
	h.sites(func(n [Dim]int) {
		for u := 1; u < Dim; u++ {
			for v := range u {
				uu := func(m [Dim]int) mat3 { return h.link(b, u, m) }
				vv := func(m [Dim]int) mat3 { return h.link(b, v, m) }
				plaq := uu(n).mul(vv(shift(n, u, 1))).mul(uu(shift(n, v, 1)).adj()).mul(vv(n).adj())
				plaqSum += real(plaq.trace())

				// 2 steps along u, 1 along v.
				r1 := uu(n).mul(uu(shift(n, u, 1))).mul(vv(shift(n, u, 2))).
					mul(uu(shift(shift(n, u, 1), v, 1)).adj()).mul(uu(shift(n, v, 1)).adj()).mul(vv(n).adj())
				// 1 step along u, 2 along v.
				r2 := uu(n).mul(vv(shift(n, u, 1))).mul(vv(shift(shift(n, u, 1), v, 1))).
					mul(uu(shift(n, v, 2)).adj()).mul(vv(shift(n, v, 1)).adj()).mul(vv(n).adj())
				rectSum += real(r1.trace()) + real(r2.trace())
			}
		}
	})
	return
}

// hostAction returns the action of batch element b.
func (h *hostLinks) hostAction(b int, beta float64) float64 {
	plaqSum, rectSum := h.loopSums(b)
	c1 := h.l.C1()
	s := beta * (1 - 8*c1) * plaqSum
	if c1 != 0 {
		s += beta * c1 * rectSum
	}
	return -s / 3
}

// hostPlaquette returns the average plaquette of batch element b.
func (h *hostLinks) hostPlaquette(b int) float64 {
	plaqSum, _ := h.loopSums(b)
	return plaqSum / float64(NumPlanes*3*h.l.Volume())
}
