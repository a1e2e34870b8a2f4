package output

import (
	"fmt"
	"io"
)

// Progress reports per-item progress of a multi-file operation on one
// line of a terminal, e.g. "verifying [2/5] app-....vlog".
type Progress struct {
	w     io.Writer
	verb  string
	total int
	n     int
}

// NewProgress creates a progress line. A nil w disables output.
func NewProgress(w io.Writer, verb string, total int) *Progress {
	return &Progress{w: w, verb: verb, total: total}
}

// Step announces the next item.
func (p *Progress) Step(item string) {
	if p.w == nil {
		return
	}
	p.n++
	fmt.Fprintf(p.w, "\r\033[K%s [%d/%d] %s", p.verb, p.n, p.total, item)
}

// Done clears the progress line.
func (p *Progress) Done() {
	if p.w == nil {
		return
	}
	fmt.Fprint(p.w, "\r\033[K")
}
