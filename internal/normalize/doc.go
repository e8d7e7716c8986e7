// Package normalize folds partial listing and detail records into a
// CanonicalRecord.
//
// Merge is pure: the same inputs always give the same record, and
// merging a canonical record re-expressed as a listing (AsListing) with
// no detail gives that record back.
package normalize
