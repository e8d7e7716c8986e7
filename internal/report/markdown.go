package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/jobharvest/internal/model"
)

// MarkdownWriter outputs summaries as a Markdown document.
type MarkdownWriter struct {
	baseWriter
	version string
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, version string) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output), version: version}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(s *model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, s)
	w.writeAlert(md, s)
	w.writeChannels(md, s)
	w.writeCriteria(md, s)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *model.Summary) {
	md.H1("Harvest Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + s.RunID + "`"},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
			{"Status", statusText(s)},
			{"Pages Processed", strconv.Itoa(s.PagesProcessed)},
			{"Records Saved", strconv.Itoa(s.RecordsSaved) + " / " + strconv.Itoa(s.Criteria.DesiredCount)},
			{"Remote Calls", strconv.FormatInt(s.RemoteCalls, 10)},
			{"Errors", strconv.Itoa(s.Errors)},
			{"Fallback", yesNo(s.Fallback)},
			{"Residual Pass", yesNo(s.ResidualPass)},
			{"Start URL Passes", strconv.Itoa(s.StartURLPasses)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *model.Summary) {
	switch s.Outcome {
	case model.OutcomeComplete:
		md.Tip("All requested job postings were collected.")
	case model.OutcomePartial:
		md.Note(fmt.Sprintf("Collected %d of %d requested job postings.", s.RecordsSaved, s.Criteria.DesiredCount))
	case model.OutcomeNoData:
		md.Warningf("No job postings matched the search.")
	case model.OutcomeUpstreamFailed:
		md.Cautionf("The site failed on %d channel(s). No job postings were collected.", len(s.Channels))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeChannels(md *markdown.Markdown, s *model.Summary) {
	md.H2("Channels")
	md.PlainText("")

	if len(s.Channels) == 0 {
		md.PlainText("No channel produced any page.")
		md.PlainText("")
		return
	}

	var rows [][]string
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records per Channel"),
		piechart.WithShowData(true),
	)
	hasRecords := false
	for _, ch := range channelOrder {
		st, ok := s.Channels[ch]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			string(ch),
			strconv.Itoa(st.Pages),
			strconv.Itoa(st.Records),
			strconv.Itoa(st.Errors),
		})
		if st.Records > 0 {
			chart.LabelAndIntValue(string(ch), uint64(st.Records))
			hasRecords = true
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Channel", "Pages", "Records", "Errors"},
		Rows:   rows,
	})
	md.PlainText("")

	if hasRecords {
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeCriteria(md *markdown.Markdown, s *model.Summary) {
	c := s.Criteria
	items := []string{
		"Keyword: " + orDash(c.Keyword),
		"Places: " + orDash(strings.Join(c.PlaceIDs, ", ")),
		"Contract types: " + orDash(strings.Join(c.ContractTypes, ", ")),
		"Remote work: " + orDash(strings.Join(c.RemoteWork, ", ")),
		"Max pages: " + strconv.Itoa(c.MaxPages),
		"Details: " + yesNo(c.CollectDetails),
	}
	if c.StartURL != "" {
		items = append(items, "Start URL: "+c.StartURL)
	}
	md.H2("Search")
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	if w.version != "" {
		md.PlainTextf("*Report generated by jobharvest %s*", w.version)
		return
	}
	md.PlainText("*Report generated by jobharvest*")
}

// SessionRow is one line of the history table.
type SessionRow struct {
	RunID      string
	StartedAt  time.Time
	Outcome    model.Outcome
	Saved      int
	Desired    int
	Keyword    string
	FinishedAt time.Time
}

// WriteSessions renders rows as a Markdown table.
func WriteSessions(output io.Writer, rows []SessionRow) error {
	md := markdown.NewMarkdown(output)
	if len(rows) == 0 {
		md.PlainText("No harvest sessions recorded.")
		return md.Build()
	}

	table := make([][]string, len(rows))
	for i, r := range rows {
		outcome := string(r.Outcome)
		if r.FinishedAt.IsZero() {
			outcome = "unfinished"
		}
		table[i] = []string{
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			outcome,
			strconv.Itoa(r.Saved) + " / " + strconv.Itoa(r.Desired),
			truncateString(orDash(r.Keyword), 30),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Run ID", "Started", "Outcome", "Saved", "Keyword"},
		Rows:   table,
	})
	return md.Build()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
