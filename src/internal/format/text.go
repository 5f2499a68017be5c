// FILE: logkeep/src/internal/format/text.go
package format

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"logkeep/src/internal/core"

	"github.com/lixenwraith/log"
)

const (
	defaultTimestampFormat = time.RFC3339
	defaultTemplate        = "[{{FmtTime .Timestamp}}] {{.Level}} {{.Logger}}{{if .Marker}} [{{.Marker}}]{{end}} - {{.Message}}{{if .Location}} ({{.Location}}){{end}}{{if .Cause}} caused by: {{.Cause}}{{end}}"
)

// Text produces human-readable log lines using templates.
type Text struct {
	opts     Options
	template *template.Template
	logger   *log.Logger
}

// NewText creates a new text formatter.
func NewText(opts Options, logger *log.Logger) (*Text, error) {
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = defaultTimestampFormat
	}
	if opts.Template == "" {
		opts.Template = defaultTemplate
	}

	f := &Text{
		opts:   opts,
		logger: logger,
	}

	// Create template with helper functions
	funcMap := template.FuncMap{
		"FmtTime": func(t time.Time) string {
			return t.Format(f.opts.TimestampFormat)
		},
		"ToUpper":   strings.ToUpper,
		"ToLower":   strings.ToLower,
		"TrimSpace": strings.TrimSpace,
	}

	tmpl, err := template.New("entry").Funcs(funcMap).Parse(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	f.template = tmpl
	return f, nil
}

// Format renders the log entry using the template.
func (f *Text) Format(entry core.LogEntry) ([]byte, error) {
	data := map[string]any{
		"Timestamp": entry.Time,
		"Level":     entry.Level.String(),
		"Logger":    entry.Logger,
		"Marker":    entry.Marker,
		"Message":   entry.Message,
		"Location":  entry.Location,
	}
	if entry.Cause != nil {
		data["Cause"] = entry.Cause.Error()
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		// Fallback: return a basic formatted message
		f.logger.Debug("msg", "Template execution failed, using fallback",
			"component", "text_formatter",
			"error", err)

		fallback := fmt.Sprintf("[%s] %s %s - %s\n",
			entry.Time.Format(f.opts.TimestampFormat),
			entry.Level.String(),
			entry.Logger,
			entry.Message)
		return []byte(fallback), nil
	}

	// Ensure newline at end
	result := buf.Bytes()
	if len(result) == 0 || result[len(result)-1] != '\n' {
		result = append(result, '\n')
	}

	return result, nil
}

// Name returns the formatter name.
func (f *Text) Name() string {
	return "text"
}
