// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package template

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/vorlif/humanize"
	"github.com/vorlif/humanize/locale/de"
	"github.com/vorlif/spreak"
	"github.com/vorlif/spreak/localize"

	"github.com/wneessen/ridegrid/internal/config"
)

type Templates struct {
	Text      *template.Template
	Tooltip   *template.Template
	localizer *spreak.Localizer
	humanizer *humanize.Humanizer
}

// i18nVars maps the lower-cased label keys accepted by the loc template func to message ids.
var i18nVars = map[string]localize.MsgID{
	"next":        "Next",
	"then":        "Then",
	"speed":       "Speed",
	"distance":    "Distance",
	"duration":    "Duration",
	"route":       "Route",
	"radar":       "Radar",
	"position":    "Position",
	"fastest":     "Fastest",
	"shortest":    "Shortest",
	"twistiest":   "Twistiest",
	"straightest": "Straightest",
	"alternative": "Alternative",
	"public":      "Public",
	"group":       "Group",
	"off":         "Off",
	"idle":        "Idle",
	"navigating":  "Navigating",
	"arrived":     "Arrived",
	"curvy":       "Curvy",
	"twisty":      "Twisty",
	"straight":    "Straight",
}

// New parses the text and tooltip templates of the configuration.
func New(conf *config.Config, loc *spreak.Localizer) (*Templates, error) {
	tpls := new(Templates)
	tpls.localizer = loc
	tpls.humanizer = humanize.MustNew(humanize.WithLocale(de.New())).CreateHumanizer(loc.Language())

	tpl, err := template.New("text").Funcs(tpls.templateFuncMap()).Parse(conf.Templates.Text)
	if err != nil {
		return tpls, fmt.Errorf("failed to parse text template: %w", err)
	}
	tpls.Text = tpl

	tpl, err = template.New("tooltip").Funcs(tpls.templateFuncMap()).Parse(conf.Templates.Tooltip)
	if err != nil {
		return tpls, fmt.Errorf("failed to parse tooltip template: %w", err)
	}
	tpls.Tooltip = tpl

	return tpls, nil
}

// Execute renders both templates with data and returns text and tooltip.
func (t *Templates) Execute(data any) (string, string, error) {
	text := bytes.NewBuffer(nil)
	if err := t.Text.Execute(text, data); err != nil {
		return "", "", fmt.Errorf("failed to render text template: %w", err)
	}
	tooltip := bytes.NewBuffer(nil)
	if err := t.Tooltip.Execute(tooltip, data); err != nil {
		return "", "", fmt.Errorf("failed to render tooltip template: %w", err)
	}
	return text.String(), tooltip.String(), nil
}

// Localize translates a known label and returns any other value unchanged.
func (t *Templates) Localize(val string) string {
	return t.loc(val)
}

func (t *Templates) templateFuncMap() template.FuncMap {
	return template.FuncMap{
		"timeFormat":    timeFormat,
		"localizedTime": t.localizedTime,
		"floatFormat":   floatFormat,
		"loc":           t.loc,
		"lc":            strings.ToLower,
		"uc":            strings.ToUpper,
		"pad":           Pad,
	}
}

func (t *Templates) loc(val string) string {
	if raw, ok := i18nVars[strings.ToLower(val)]; ok {
		return t.localizer.Get(raw)
	}
	return val
}

// LocalizedTime formats the time of day the way the configured locale writes it.
func (t *Templates) LocalizedTime(val time.Time) string {
	return t.localizedTime(val)
}

func (t *Templates) localizedTime(val time.Time) string {
	return t.humanizer.FormatTime(val, humanize.TimeFormat)
}

func timeFormat(val time.Time, fmt string) string {
	return val.Format(fmt)
}

func floatFormat(val float64, precision int) string {
	pow := math.Pow(10, float64(precision))
	return fmt.Sprintf("%.*f", precision, math.Trunc(val*pow)/pow)
}

// Pad fills s with spaces up to the given display width. Wide runes like emoji count double.
func Pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}

func EmojiWithSpace(emoji string) string {
	width := runewidth.StringWidth(emoji)
	return fmt.Sprintf("%s%s", emoji, strings.Repeat(" ", width+1))
}
