// Package report renders harvest summaries.
//
// SimpleWriter prints a plain-text block for the terminal, JSONWriter
// writes machine-readable output and MarkdownWriter produces a document
// with tables and a per-channel chart. All of them implement Writer.
package report
