package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/jobharvest/internal/model"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names a report rendering.
type Format string

const (
	// FormatText is the plain-text terminal rendering.
	FormatText Format = "text"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
	// FormatMarkdown is a Markdown document.
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatMarkdown}
}

// Writer renders a session summary.
type Writer interface {
	// Write outputs the summary and returns the number of bytes written.
	Write(summary *model.Summary) (int, error)
}

// New returns the Writer for format. The version is embedded in JSON
// and Markdown output.
func New(format Format, output io.Writer, version string) (Writer, error) {
	switch Format(strings.ToLower(string(format))) {
	case FormatText, "":
		return NewSimpleWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint(), WithVersion(version)), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output, version), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// MultiWriter writes to multiple Writers in order.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all Writers and stops on the first error.
func (m *MultiWriter) Write(summary *model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// channelOrder keeps channel sections stable across runs.
var channelOrder = []model.Channel{model.ChannelAPI, model.ChannelHTML}

func statusText(s *model.Summary) string {
	status := string(s.Outcome)
	switch s.Outcome {
	case model.OutcomeComplete:
		status = "Complete"
	case model.OutcomePartial:
		status = fmt.Sprintf("Partial (%d of %d)", s.RecordsSaved, s.Criteria.DesiredCount)
	case model.OutcomeNoData:
		status = "No data"
	case model.OutcomeUpstreamFailed:
		status = "Upstream failed"
	}
	if s.BudgetExceeded {
		status += ", time budget exceeded"
	}
	return status
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
