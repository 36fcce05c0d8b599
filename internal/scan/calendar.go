package scan

import (
	"os"
	"strings"

	ics "github.com/arran4/golang-ical"
)

// EnumerateCalendars parses each .ics file and yields one item per event.
// Text is the summary, description and location joined; When is the event
// start date. Files or events that fail to parse are reported and skipped.
func EnumerateCalendars(paths []string, report ErrorReporter) []Item {
	var items []Item
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			report(path, "calendar", err.Error())
			continue
		}
		cal, err := ics.ParseCalendar(f)
		f.Close()
		if err != nil {
			report(path, "calendar", err.Error())
			continue
		}
		for _, ev := range cal.Events() {
			items = append(items, eventItem(path, ev))
		}
	}
	return items
}

func eventItem(path string, ev *ics.VEvent) Item {
	summary := propValue(ev, ics.ComponentPropertySummary)
	description := propValue(ev, ics.ComponentPropertyDescription)
	location := propValue(ev, ics.ComponentPropertyLocation)

	display := summary
	if display == "" {
		display = "(untitled event)"
	}

	var when, meta string
	if start, err := ev.GetStartAt(); err == nil {
		when = start.UTC().Format("2006-01-02")
		meta = "start " + start.UTC().Format("2006-01-02 15:04")
	}
	if location != "" {
		if meta != "" {
			meta += ", "
		}
		meta += "location " + location
	}

	text := strings.TrimSpace(strings.Join(nonEmpty(summary, description, location), "\n"))
	return Item{
		Source:  SourceCalendar,
		Path:    path,
		Display: display,
		Text:    text,
		Meta:    meta,
		When:    when,
	}
}

func propValue(ev *ics.VEvent, prop ics.ComponentProperty) string {
	p := ev.GetProperty(prop)
	if p == nil {
		return ""
	}
	return p.Value
}

func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
