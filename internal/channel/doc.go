// Package channel implements the two acquisition paths of the job board.
//
// Both APIStrategy and HTMLStrategy satisfy Strategy: they fetch one page
// of listings at a time and, on request, one detail record per listing.
// Raw upstream payloads never leave this package. JSON documents are read
// through ordered candidate field paths (FieldPaths) and HTML documents
// through ordered, named selector policies, so upstream schema drift is
// absorbed here.
package channel
