package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/adventure-agent/pkg/autoplay"
)

// printer writes transcript entries as plain text. Reasoning and streamed
// tokens are shown only when thinking is set.
type printer struct {
	w        io.Writer
	width    int
	thinking bool

	mu        sync.Mutex
	streaming bool
}

var _ autoplay.Sink = (*printer)(nil)

func newPrinter(w io.Writer, width int, thinking bool) *printer {
	return &printer{w: w, width: width, thinking: thinking}
}

func (p *printer) wrap(text string) string {
	if p.width <= 0 {
		return text
	}
	return wordwrap.String(text, p.width)
}

func (p *printer) Emit(entry autoplay.LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry.Kind == autoplay.EntryStream {
		if p.thinking {
			if !p.streaming {
				fmt.Fprint(p.w, "  ... ")
			}
			fmt.Fprint(p.w, entry.Text)
			p.streaming = true
		}
		return
	}
	if p.streaming {
		fmt.Fprintln(p.w)
		p.streaming = false
	}

	text := strings.TrimSpace(entry.Text)
	switch entry.Kind {
	case autoplay.EntryGameText:
		fmt.Fprintf(p.w, "%s\n\n", p.wrap(text))
	case autoplay.EntryCommandSent:
		fmt.Fprintf(p.w, "[%d] > %s\n\n", entry.Turn, text)
	case autoplay.EntryThinking:
		if p.thinking {
			fmt.Fprintf(p.w, "  (%s)\n\n", p.wrap(text))
		}
	case autoplay.EntryError:
		fmt.Fprintf(p.w, "!! %s\n\n", text)
	}
}
