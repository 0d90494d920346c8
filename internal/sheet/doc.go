// Package sheet implements the ingestion side of the record pipeline:
// cell normalization, header classification against an ordered field
// pattern table, and row-by-row record extraction with field-level
// provenance.
//
// Classification is a pure function of the header text. The extractor
// never aborts a sheet because of one bad row; per-row failures are
// collected into the extraction result instead.
package sheet
