// Package output provides formatters for command output.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/pushcenter"
	"github.com/agentstation/pushcenter/pkg/errors"
	"github.com/agentstation/pushcenter/pkg/events"
)

// Format types for output.
type Format string

const (
	// FormatJSON prints one compact JSON document per line.
	FormatJSON Format = "json"
	// FormatYAML prints one YAML document per event.
	FormatYAML Format = "yaml"
	// FormatText prints a one-line human summary per event.
	FormatText Format = "text"
)

// DetectFormat auto-detects format based on the terminal.
func DetectFormat(explicitFormat string) Format {
	if explicitFormat != "" {
		return Format(strings.ToLower(explicitFormat))
	}

	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatText
	}

	// Default to JSON for pipes/redirects
	return FormatJSON
}

// ParseFormat converts string to Format with validation.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(s))
	switch format {
	case FormatJSON, FormatYAML, FormatText:
		return format, nil
	default:
		return "", errors.NewValidationError("format", s, "must be one of: json, yaml, text")
	}
}

// EventPrinter is a listener that writes every event to w.
type EventPrinter struct {
	mu     sync.Mutex
	w      io.Writer
	format Format
	title  cases.Caser
	count  int
}

// NewEventPrinter creates a printer. Unknown formats print JSON.
func NewEventPrinter(w io.Writer, format Format) *EventPrinter {
	return &EventPrinter{
		w:      w,
		format: format,
		title:  cases.Title(language.English),
	}
}

// OnEvent implements events.Listener.
func (p *EventPrinter) OnEvent(e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	switch p.format {
	case FormatYAML:
		err = p.writeYAML(e)
	case FormatText:
		_, err = fmt.Fprintln(p.w, p.summary(e))
	default:
		_, err = fmt.Fprintln(p.w, e.String())
	}
	if err != nil {
		return err
	}
	p.count++
	return nil
}

// Count returns the number of events printed.
func (p *EventPrinter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

func (p *EventPrinter) writeYAML(e events.Event) error {
	payload := e.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	data, err := yaml.JSONToYAML(payload)
	if err != nil {
		return errors.NewProtocolError("convert event to yaml", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(data)
	if !bytes.HasSuffix(data, []byte("\n")) {
		buf.WriteByte('\n')
	}
	_, err = p.w.Write(buf.Bytes())
	return err
}

// summary renders e as e.g. "Create domain (2 entities)".
func (p *EventPrinter) summary(e events.Event) string {
	h, err := e.Header()
	if err != nil || h.Type == "" {
		return "Event " + e.String()
	}

	var parts []string
	parts = append(parts, p.title.String(strings.ToLower(h.Type)))
	if h.EntityType != "" {
		parts = append(parts, h.EntityType)
	}

	var body struct {
		Entities []json.RawMessage `json:"entities"`
	}
	if e.Decode(&body) == nil && body.Entities != nil {
		noun := "entities"
		if len(body.Entities) == 1 {
			noun = "entity"
		}
		parts = append(parts, "("+strconv.Itoa(len(body.Entities))+" "+noun+")")
	}
	return strings.Join(parts, " ")
}

// StatusTable writes a push center status as a two column table.
func StatusTable(w io.Writer, st pushcenter.Status) error {
	table := tablewriter.NewTable(w)
	table.Header("Field", "Value")

	rows := [][]string{
		{"State", st.State.String()},
		{"URL", st.URL},
		{"Cursor", st.Cursor.String()},
		{"Listeners", strconv.Itoa(st.Listeners)},
		{"Cycles", strconv.FormatUint(st.Cycles, 10)},
		{"Events", strconv.FormatUint(st.Events, 10)},
		{"Failures", strconv.FormatUint(st.Failures, 10)},
		{"Resets", strconv.FormatUint(st.Resets, 10)},
		{"Listener errors", strconv.FormatUint(st.ListenerErrors, 10)},
	}
	if !st.LastSuccess.IsZero() {
		rows = append(rows, []string{"Last success", st.LastSuccess.String()})
	}
	if st.LastError != "" {
		rows = append(rows, []string{"Last error", st.LastError})
	}

	for _, row := range rows {
		if err := table.Append(row[0], row[1]); err != nil {
			return err
		}
	}
	return table.Render()
}
