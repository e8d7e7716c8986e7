// Package store holds the append-only output sinks of a harvest.
//
// RecordStore is the default sink: a SQLite database in the XDG data
// directory that keeps every session with its records and summary, so
// that `jobharvest history` can list past runs. JSONLines writes one
// record per line to a file or stdout, and PostgresSink appends to a
// PostgreSQL table. MultiSink fans a record out to several sinks.
//
// Records are only ever inserted. A session never updates or deletes a
// record it already wrote.
package store
