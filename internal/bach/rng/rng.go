// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package rng implements the exact three-stream linear congruential
// generator used by stamp statistics sampling, so that pixel draws are
// bit-reproducible across runs and across the original implementation.
package rng

const (
	m1 = 259200
	ia1 = 7141
	ic1 = 54773
	rm1 = 1.0 / m1

	m2 = 134456
	ia2 = 8121
	ic2 = 28411
	rm2 = 1.0 / m2

	m3 = 243000
	ia3 = 4561
	ic3 = 51349
)

// Source reproduces the classic three-stream ran1 generator: two streams
// feed a 97-entry shuffle table, a third stream picks which table entry to
// return and replace. Each Source owns its own state, so concurrent
// pipeline stages never share a generator.
type Source struct {
	ix1, ix2, ix3 int32
	table         [98]float64 // 1-indexed, table[0] unused
}

// New seeds a Source the same way the original first call with a negative
// idum does: it re-seeds the three streams from seed and fills the shuffle
// table by advancing the first two streams 97 times.
func New(seed int32) *Source {
	s := &Source{}
	if seed < 0 {
		seed = -seed
	}
	if seed == 0 {
		seed = 1
	}

	s.ix1 = (ic1 + seed) % m1
	s.ix1 = (ia1*s.ix1 + ic1) % m1
	s.ix2 = s.ix1 % m2
	s.ix1 = (ia1*s.ix1 + ic1) % m1
	s.ix3 = s.ix1 % m3

	for j := 1; j <= 97; j++ {
		s.ix1 = (ia1*s.ix1 + ic1) % m1
		s.ix2 = (ia2*s.ix2 + ic2) % m2
		s.table[j] = (float64(s.ix1) + float64(s.ix2)*rm2) * rm1
	}
	return s
}

// Float64 draws the next uniform deviate in [0, 1).
func (s *Source) Float64() float64 {
	s.ix1 = (ia1*s.ix1 + ic1) % m1
	s.ix2 = (ia2*s.ix2 + ic2) % m2
	s.ix3 = (ia3*s.ix3 + ic3) % m3

	j := 1 + (97*s.ix3)/m3
	out := s.table[j]

	s.table[j] = (float64(s.ix1) + float64(s.ix2)*rm2) * rm1
	return out
}
