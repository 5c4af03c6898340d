package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// JSONFormatter renders an Entry as a single-line JSON object.
type JSONFormatter struct{}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	m := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		m[k] = v
	}
	m["level"] = entry.Level.String()
	m["msg"] = entry.Message
	m["ts"] = entry.Timestamp.Format(time.RFC3339Nano)
	if entry.Error != nil {
		m["error"] = entry.Error.Error()
	}
	if entry.Caller != "" {
		m["caller"] = entry.Caller
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// TextFormatter renders an Entry as one human-readable line.
type TextFormatter struct{}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	line := fmt.Sprintf("%s %-5s %s", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)
	for k, v := range entry.Fields {
		line += fmt.Sprintf(" %s=%v", k, v)
	}
	if entry.Error != nil {
		line += fmt.Sprintf(" error=%v", entry.Error)
	}
	return []byte(line + "\n"), nil
}

// ConsoleOutput writes formatted entries to an io.Writer, os.Stdout unless
// otherwise configured.
type ConsoleOutput struct {
	w io.Writer
}

// NewConsoleOutput builds a ConsoleOutput writing to os.Stdout.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{w: os.Stdout} }

// NewConsoleOutputTo builds a ConsoleOutput writing to an arbitrary writer,
// used by tests to capture output without touching stdout.
func NewConsoleOutputTo(w io.Writer) *ConsoleOutput { return &ConsoleOutput{w: w} }

// Write implements Output.
func (o *ConsoleOutput) Write(_ *Entry, formatted []byte) error {
	w := o.w
	if w == nil {
		w = os.Stdout
	}
	_, err := w.Write(formatted)
	return err
}

// Close implements Output.
func (o *ConsoleOutput) Close() error { return nil }

// NullOutput discards every entry; useful in tests that only care about
// return values, not log side effects.
type NullOutput struct{}

// Write implements Output.
func (NullOutput) Write(*Entry, []byte) error { return nil }

// Close implements Output.
func (NullOutput) Close() error { return nil }
