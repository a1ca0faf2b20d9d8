package chart

import (
	"fmt"
	"io"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TablePrinter writes each frame as a text table, for running without a browser.
type TablePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{w: w}
}

func (p *TablePrinter) Print(f Frame) {
	t := table.NewWriter()
	t.SetTitle("frame %d  %s", f.Seq, f.At.Format("15:04:05.000"))
	t.AppendHeader(table.Row{"#", "Color", "Width", "Dash", "From", "To"})
	for i, l := range f.Lines {
		t.AppendRow(table.Row{
			i + 1,
			l.Stroke.Color.String(),
			l.Stroke.Width,
			l.Stroke.Dash.String(),
			fmt.Sprintf("(%.1f, %.1f)", l.From.X, l.From.Y),
			fmt.Sprintf("(%.1f, %.1f)", l.To.X, l.To.Y),
		})
	}
	if len(f.Lines) == 0 {
		t.AppendFooter(table.Row{"", "no data"})
	}
	t.SetStyle(table.StyleLight)

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, t.Render())
}
