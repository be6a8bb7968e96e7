// Copyright (c) The Threadline Authors. All rights reserved.

package threadline

import (
	"fmt"
	"strings"
)

// Template renders instruction strings with {field} placeholders filled from
// an envelope's [Values]. It pairs with mapping-shaped invokers whose
// pass-through fields parameterize the system prompt:
//
//	tmpl := threadline.NewTemplate("You're an assistant who's good at {ability}.")
//	instructions := tmpl.Render(threadline.Values{"ability": "math"})
//
// Placeholders with no matching field are left verbatim, so a half-rendered
// prompt is visible rather than silently blanked.
type Template struct {
	raw string
}

// NewTemplate creates a Template from a format string.
func NewTemplate(raw string) Template {
	return Template{raw: raw}
}

// Render substitutes {field} placeholders with the corresponding values.
// Non-string values are formatted with fmt.Sprint.
func (t Template) Render(vals Values) string {
	if len(vals) == 0 {
		return t.raw
	}
	pairs := make([]string, 0, len(vals)*2)
	for k, v := range vals {
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case []Message, Message, *Message:
			// Message fields are payload, not prompt parameters.
			continue
		default:
			s = fmt.Sprint(val)
		}
		pairs = append(pairs, "{"+k+"}", s)
	}
	return strings.NewReplacer(pairs...).Replace(t.raw)
}

// String returns the unrendered template text.
func (t Template) String() string { return t.raw }
