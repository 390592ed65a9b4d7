// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package presenter

import (
	"strings"

	"github.com/wneessen/ridegrid/internal/navigation"
)

// IconKind is the turn icon chosen from a maneuver instruction.
type IconKind string

const (
	IconStraight IconKind = "straight"
	IconLeft     IconKind = "left"
	IconRight    IconKind = "right"
	IconArrive   IconKind = "arrive"
	IconUTurn    IconKind = "uturn"

	radarIcon = "📡"
)

// Icons maps the icon kinds to their glyphs.
var Icons = map[IconKind]string{
	IconStraight: "⬆️",
	IconLeft:     "⬅️",
	IconRight:    "➡️",
	IconArrive:   "📍",
	IconUTurn:    "↩️",
}

var navStateLabels = map[navigation.State]string{
	navigation.Idle:      "Idle",
	navigation.Active:    "Navigating",
	navigation.Completed: "Arrived",
}

// IconKindOf picks the icon for an instruction text. Left and right win over arrival, so
// "Arrive at your destination, on the left" shows a left turn.
func IconKindOf(instruction string) IconKind {
	text := strings.ToLower(instruction)
	switch {
	case strings.Contains(text, "left"):
		return IconLeft
	case strings.Contains(text, "right"):
		return IconRight
	case strings.Contains(text, "arrive"), strings.Contains(text, "destination"):
		return IconArrive
	case strings.Contains(text, "uturn"), strings.Contains(text, "u-turn"):
		return IconUTurn
	default:
		return IconStraight
	}
}
