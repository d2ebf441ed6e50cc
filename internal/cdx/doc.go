// Package cdx decodes paginated Wayback Machine CDX query results.
//
// A result page is a JSON array of string arrays:
//
//	[["urlkey","timestamp",...],   header, fixes the schema for every row
//	 ["com,twitter)/x","2016...",...],
//	 [],                           end of rows
//	 ["<resumption key>"]]         present only after the sentinel
//
// Two schemas exist: the 7-column short form and the 11-column extended form
// carrying WARC location fields. Rows are pulled one at a time through a
// RowReader so the decoder is independent of the JSON tokenizer. Any malformed
// row aborts the whole page; callers re-request a smaller page with the
// resumption key instead of recovering partial results.
package cdx
