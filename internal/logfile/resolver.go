package logfile

import (
	"strings"
	"time"
)

// Placeholders understood in a path template
const (
	PlaceholderYear    = "[[year]]"
	PlaceholderMonth   = "[[month]]"
	PlaceholderDay     = "[[day]]"
	PlaceholderMachine = "[[machine]]"
)

// invalidFileNameChars is the portable set of characters that cannot appear
// in a file name on any of the supported systems.
const invalidFileNameChars = `"<>|:*?\/`

// Resolver expands a path template for a fixed machine name
type Resolver struct {
	template string
	machine  string
}

// NewResolver creates a resolver for the given template and machine name
func NewResolver(template, machine string) *Resolver {
	return &Resolver{
		template: template,
		machine:  machine,
	}
}

// Template returns the unexpanded path template
func (r *Resolver) Template() string {
	return r.template
}

// Resolve returns the log file for records logged at t
func (r *Resolver) Resolve(t time.Time) string {
	return Resolve(r.template, t, r.machine)
}

// Resolve substitutes the date and machine placeholders in template and
// makes the file name portion safe. The directory portion is kept as is.
// It does no I/O.
func Resolve(template string, t time.Time, machine string) string {
	path := strings.NewReplacer(
		PlaceholderYear, t.Format("2006"),
		PlaceholderMonth, t.Format("01"),
		PlaceholderDay, t.Format("02"),
		PlaceholderMachine, machine,
	).Replace(template)

	dir, file := splitPath(path)
	return dir + sanitizeFileName(file)
}

// splitPath splits p after its last separator. Both slash kinds count as
// separators so templates written on Windows resolve the same way elsewhere.
func splitPath(p string) (dir, file string) {
	i := strings.LastIndexAny(p, `/\`)
	return p[:i+1], p[i+1:]
}

// Dir returns the directory portion of a resolved path, separator included
func Dir(path string) string {
	dir, _ := splitPath(path)
	return dir
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || strings.ContainsRune(invalidFileNameChars, r) {
			return '_'
		}
		return r
	}, name)
}
