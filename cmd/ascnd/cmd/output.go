package cmd

import (
	"strconv"
	"strings"

	"github.com/fatih/color"

	"ascnd/core"
)

// bracketLabel renders a bracket name in its own color.
func bracketLabel(b *core.BracketInfo) string {
	if b == nil {
		return ""
	}
	r, g, bl, ok := hexRGB(b.Color)
	if !ok {
		return b.Name
	}
	return color.RGB(r, g, bl).Sprint(b.Name)
}

// hexRGB parses #RGB or #RRGGBB.
func hexRGB(s string) (r, g, b int, ok bool) {
	if !core.ValidHexColor(s) {
		return 0, 0, 0, false
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
