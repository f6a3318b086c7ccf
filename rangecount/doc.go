// Package rangecount counts the stored points that lie within a Euclidean
// radius of a center point.
//
// Counter answers the query without touching every record: it decomposes the
// search square into axis-aligned rectangles, asks the store for aggregate
// statistics of each one, and accepts or rejects whole rectangles whose
// nearest and farthest points are both on the same side of the radius. Only
// rectangles that straddle the circle are split further, on the mean of the
// contained coordinates along their longer side, until they are small enough
// to be scanned point by point.
//
// BruteForce scans every record and is used for cross-validation and when a
// caller explicitly asks for it.
//
// Both counters treat the store as a read-only oracle and hold no locks
// across a query. A count that runs concurrently with inserts, updates or
// deletes observes each mutation at whichever store call happens to follow
// it, so the result is not linearizable. The counters include a record that
// coincides with the center; excluding it is the caller's job.
package rangecount
