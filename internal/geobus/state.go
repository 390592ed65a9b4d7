// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package geobus

import "github.com/wneessen/ridegrid/internal/geomath"

// SampleState tracks the last position a provider emitted, so providers can suppress repeated
// reports of an unchanged fix.
type SampleState struct {
	last     Sample
	haveLast bool
}

// HasChanged reports whether the sample moved by more than minMeters compared to the last
// stored sample. An empty state always reports a change.
func (s *SampleState) HasChanged(sample Sample, minMeters float64) bool {
	if !s.haveLast {
		return true
	}
	return geomath.Distance(s.last.Point(), sample.Point()) > minMeters
}

// Update stores the sample as the last emitted one.
func (s *SampleState) Update(sample Sample) {
	s.last = sample
	s.haveLast = true
}
