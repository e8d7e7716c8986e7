package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/jobharvest/internal/model"
)

// SimpleWriter outputs a human-readable text summary.
type SimpleWriter struct {
	baseWriter

	// verbose adds the search criteria to the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose adds the search criteria.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *SimpleWriter) Write(s *model.Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n                    HARVEST SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Run ID:          %s\n", s.RunID)
	fmt.Fprintf(&sb, "Started:         %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&sb, "Elapsed:         %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Status:          %s\n", statusText(s))
	fmt.Fprintf(&sb, "Pages processed: %d\n", s.PagesProcessed)
	fmt.Fprintf(&sb, "Records saved:   %d / %d\n", s.RecordsSaved, s.Criteria.DesiredCount)
	fmt.Fprintf(&sb, "Remote calls:    %d\n", s.RemoteCalls)
	fmt.Fprintf(&sb, "Errors:          %d\n", s.Errors)
	fmt.Fprintf(&sb, "Fallback:        %s\n", yesNo(s.Fallback))
	if s.ResidualPass {
		sb.WriteString("Residual pass:   yes\n")
	}
	if s.StartURLPasses > 0 {
		fmt.Fprintf(&sb, "Start URL passes: %d\n", s.StartURLPasses)
	}

	if len(s.Channels) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("-", 60))
		sb.WriteString("\nChannel   Pages  Records  Errors\n")
		for _, ch := range channelOrder {
			st, ok := s.Channels[ch]
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "%-8s  %5d  %7d  %6d\n", ch, st.Pages, st.Records, st.Errors)
		}
	}

	if w.verbose {
		c := s.Criteria
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("-", 60))
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Keyword:         %s\n", c.Keyword)
		fmt.Fprintf(&sb, "Places:          %s\n", strings.Join(c.PlaceIDs, ", "))
		fmt.Fprintf(&sb, "Contract types:  %s\n", strings.Join(c.ContractTypes, ", "))
		fmt.Fprintf(&sb, "Remote work:     %s\n", strings.Join(c.RemoteWork, ", "))
		fmt.Fprintf(&sb, "Max pages:       %d\n", c.MaxPages)
		fmt.Fprintf(&sb, "Details:         %s\n", yesNo(c.CollectDetails))
		if c.StartURL != "" {
			fmt.Fprintf(&sb, "Start URL:       %s\n", c.StartURL)
		}
	}
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}
