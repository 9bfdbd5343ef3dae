package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSection(w io.Writer, title string) {
	headerColor.Fprintln(w, title)
}

func printField(w io.Writer, label, value string) {
	labelColor.Fprintf(w, "  %-12s", label+":")
	fmt.Fprintln(w, value)
}

// indentJSON pretty prints a raw JSON document, returning it unchanged when it
// does not parse.
func indentJSON(raw string, prefix string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), prefix, "  "); err != nil {
		return prefix + raw
	}
	return prefix + buf.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return dimColor.Sprint("(not set)")
	}
	return t.Format(time.RFC3339)
}
