package tail

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tessro/spool/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template. An invalid template is
// reported by ParseTemplate; here it is ignored.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if t, err := ParseTemplate(tmpl); err == nil {
			f.template = t
		}
	}
}

// ParseTemplate parses a --format template. An empty string yields nil.
func ParseTemplate(tmpl string) (*template.Template, error) {
	if tmpl == "" {
		return nil, nil
	}
	t, err := template.New("format").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid format template: %w", err)
	}
	return t, nil
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{showEmoji: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

func (f *Formatter) formatLine(e Event) string {
	var parts []string
	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, describe(e))
	return strings.Join(parts, " ")
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	ItemID    int64
	Title     string
	Artist    string
	Album     string
	Volume    int
	Repeat    string
}

func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}
	if it := subject(e); it != nil {
		data.ItemID = it.ID
		data.Title = it.Track.Title
		data.Artist = it.Track.Artist
		data.Album = it.Track.Album
	}
	if e.Current != nil {
		data.Volume = e.Current.Volume
		data.Repeat = e.Current.Repeat.String()
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

// subject is the item an event is about: the outgoing one for completions
// and skips, otherwise the current one.
func subject(e Event) *core.QueueItem {
	switch e.Type {
	case EventTrackComplete, EventTrackSkip:
		if e.Previous != nil {
			return e.Previous.Item
		}
	default:
		if e.Current != nil {
			return e.Current.Item
		}
	}
	return nil
}

// eventKind holds the fixed presentation of one event type.
type eventKind struct {
	name  string
	emoji string
	verb  string
}

var eventKinds = map[EventType]eventKind{
	EventTrackChange:   {"track_change", "🎵", "Now playing"},
	EventTrackComplete: {"track_complete", "✅", "Finished"},
	EventTrackSkip:     {"track_skip", "⏭️", "Skipped"},
	EventPause:         {"pause", "⏸️", "Paused"},
	EventResume:        {"resume", "▶️", "Resumed"},
	EventVolumeChange:  {"volume_change", "🔊", "Volume"},
	EventRepeatChange:  {"repeat_change", "🔁", "Repeat"},
	EventQueueEnd:      {"queue_end", "⏹️", "End of queue"},
}

func kindOf(t EventType) eventKind {
	if k, ok := eventKinds[t]; ok {
		return k
	}
	return eventKind{name: "unknown", emoji: "❓", verb: "Unknown event"}
}

func describe(e Event) string {
	k := kindOf(e.Type)
	switch e.Type {
	case EventTrackChange, EventTrackComplete, EventTrackSkip:
		if it := subject(e); it != nil {
			return fmt.Sprintf("%s: %s - %s", k.verb, it.Track.Artist, it.Track.Title)
		}
	case EventVolumeChange:
		if e.Current != nil {
			return fmt.Sprintf("%s: %d%%", k.verb, e.Current.Volume)
		}
	case EventRepeatChange:
		if e.Current != nil {
			return fmt.Sprintf("%s: %s", k.verb, e.Current.Repeat)
		}
	}
	return k.verb
}

func eventEmoji(t EventType) string { return kindOf(t).emoji }

func eventTypeName(t EventType) string { return kindOf(t).name }
