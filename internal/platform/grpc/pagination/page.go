// Package pagination bounds client supplied page sizes.
package pagination

// Limits bounds one kind of listing.
type Limits struct {
	Default int
	Max     int
}

var (
	// Messages bounds conversation history pages.
	Messages = Limits{Default: 50, Max: 200}
	// Inbox bounds notification inbox pages.
	Inbox = Limits{Default: 50, Max: 200}
)

// Clamp returns requested within l. Zero or negative picks the default and
// the result is never below one.
func (l Limits) Clamp(requested int) int {
	size := requested
	if size <= 0 {
		size = l.Default
	}
	if l.Max > 0 && size > l.Max {
		size = l.Max
	}
	return max(size, 1)
}
