// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"fmt"
	"math"
	"time"
)

const (
	metersPerFoot = 0.3048
	metersPerMile = 1609.344
	kmPerMile     = 1.609344
)

// FormatDistance renders a distance in meters for the HUD. Below one kilometer the value is shown
// in whole meters, above with one decimal in kilometers. Imperial units switch from feet to miles
// at 1000 ft. Unknown distances render empty.
func FormatDistance(meters float64, imperial bool) string {
	if math.IsInf(meters, 0) || math.IsNaN(meters) || meters < 0 {
		return ""
	}
	if imperial {
		feet := meters / metersPerFoot
		if feet < 1000 {
			return fmt.Sprintf("%.0f ft", math.Round(feet))
		}
		return fmt.Sprintf("%.1f mi", meters/metersPerMile)
	}
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", math.Round(meters))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

func FormatSpeed(kmh float64, imperial bool) string {
	if imperial {
		return fmt.Sprintf("%.0f mph", math.Round(kmh/kmPerMile))
	}
	return fmt.Sprintf("%.0f km/h", math.Round(kmh))
}

// FormatDuration renders d as m:ss, or h:mm:ss once it reaches an hour.
func FormatDuration(d time.Duration) string {
	secs := int(d.Truncate(time.Second).Seconds())
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
