// Package core runs organization enrichment: it turns an uploaded table of
// organization names into a deduplicated table carrying EINs, reference
// financials and remote profile fields.
//
// The package is independent of any transport. The web server and the CLI
// both drive the same [Service].
//
// # Pipeline
//
// [Service.Enrich] runs these steps in order, blocking until all finish:
//
//  1. Parse the upload (CSV or XLSX). Problems are [ErrInput].
//  2. Infer the organization name column with the columns package.
//  3. Left-join against the shared reference dataset on normalized name.
//     An unavailable dataset fails the run when Options.ReferenceRequired is
//     set, otherwise the run continues with a warning.
//  4. If no EIN column exists at this point, add one filled with "N/A" and
//     warn.
//  5. Look up each distinct EIN remotely. Misses are absorbed and show up
//     as "N/A" enrichment fields.
//  6. Merge results by EIN, then deduplicate by EIN and by name.
//
// Completed runs are kept in memory for Options.RunTTL so their output can
// be downloaded. At most a fixed number of runs execute concurrently; see
// [RunLimiter].
//
// # Errors
//
// [MapError] converts any error returned here into a [UserMessage] with a
// support code. See error_messages.go for the code list.
package core
