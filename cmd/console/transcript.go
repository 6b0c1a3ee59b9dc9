package main

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/adventure-agent/internal/services/events"
)

type entry struct {
	kind events.EventType
	turn int
	text string
}

// transcript accumulates session events into what the chat panel shows.
type transcript struct {
	entries   []entry
	streaming strings.Builder
}

func eventText(ev events.Event) string {
	if ev.Data == nil {
		return ""
	}
	text, _ := ev.Data["text"].(string)
	return text
}

// apply folds one event in and reports whether the visible transcript changed.
func (t *transcript) apply(ev events.Event) bool {
	switch ev.Type {
	case events.EventTypeStream:
		t.streaming.WriteString(eventText(ev))
		return true
	case events.EventTypeCommandSent, events.EventTypeError:
		t.streaming.Reset()
	case events.EventTypeGameText, events.EventTypeThinking:
	default:
		return false
	}
	text := strings.TrimSpace(eventText(ev))
	if text == "" {
		return false
	}
	t.entries = append(t.entries, entry{kind: ev.Type, turn: ev.Turn, text: text})
	return true
}

func (t *transcript) reset() {
	t.entries = nil
	t.streaming.Reset()
}

// plain is the transcript as copied to the clipboard.
func (t *transcript) plain() string {
	var b strings.Builder
	for _, e := range t.entries {
		switch e.kind {
		case events.EventTypeCommandSent:
			fmt.Fprintf(&b, "> %s\n\n", e.text)
		case events.EventTypeGameText:
			fmt.Fprintf(&b, "%s\n\n", e.text)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func (t *transcript) render(width int, showThinking bool) string {
	if width < 10 {
		width = 10
	}
	var b strings.Builder
	for _, e := range t.entries {
		switch e.kind {
		case events.EventTypeGameText:
			b.WriteString(gameStyle.Render(wordwrap.String(e.text, width)) + "\n\n")
		case events.EventTypeCommandSent:
			b.WriteString(turnStyle.Render(fmt.Sprintf("[%d] ", e.turn)) + commandStyle.Render("> "+e.text) + "\n\n")
		case events.EventTypeThinking:
			if showThinking {
				b.WriteString(thinkingStyle.Render(wordwrap.String(e.text, width)) + "\n\n")
			}
		case events.EventTypeError:
			b.WriteString(errorStyle.Render(wordwrap.String("Error: "+e.text, width)) + "\n\n")
		}
	}
	if s := t.streaming.String(); s != "" {
		b.WriteString(thinkingStyle.Render("... " + s))
	}
	return b.String()
}
