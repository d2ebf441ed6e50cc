// Package snapshot implements the snapshot store: newline-delimited records,
// zstd-compressed at rest, each holding one captured document and the SHA-1
// digest that identifies it.
//
// A record looks like JSON but is defined by literal field order:
//
//	{"digest":"<D>",["expected_digest":"<D>",]["closing_whitespace":"\r\n",]
//	 ["timestamp":"<14 digits>",]["url":"<text>",]"content":<raw bytes>}
//
// The content bytes are copied verbatim in both directions. The digest is
// defined over exactly those bytes followed by the closing whitespace (or the
// default trailer "\r\r\n"), so records are scanned by hand and never passed
// through a general JSON encoder.
package snapshot
