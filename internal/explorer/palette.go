package explorer

import (
	"github.com/fatih/color"
)

// palette holds the styles used for terminal output. Styles are enabled
// or disabled per explorer so the global color.NoColor is left alone.
type palette struct {
	title   *color.Color
	name    *color.Color
	index   *color.Color
	format  *color.Color
	path    *color.Color
	dim     *color.Color
	info    *color.Color
	ok      *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	command *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		title:   color.New(color.FgBlue, color.Bold),
		name:    color.New(color.FgYellow, color.Bold),
		index:   color.New(color.FgBlue, color.Bold),
		format:  color.New(color.FgGreen),
		path:    color.New(color.FgBlue),
		dim:     color.New(color.Faint),
		info:    color.New(color.FgCyan),
		ok:      color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow, color.Bold),
		label:   color.New(color.Bold),
		command: color.New(color.FgGreen, color.Bold),
	}
	for _, c := range []*color.Color{p.title, p.name, p.index, p.format, p.path, p.dim, p.info, p.ok, p.fail, p.warn, p.label, p.command} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}
