// Package model defines the records that flow through a harvest session.
//
// A session starts from SearchCriteria. Channels produce ListingRecord
// values from search pages and, optionally, DetailRecord values from
// detail fetches. The normalizer folds both into a CanonicalRecord, the
// only type that reaches an output sink. Summary describes a finished
// session.
//
// The models live in their own package because channel, normalize,
// harvest, store and report all depend on them.
package model
