// Package row encodes and decodes records of a flat, append-only store.
//
// # Record Format
//
// Each record is a single write of:
//
//	<tag>"<escaped body>"\n
//
// where tag is local time as 14 digits (YYYYMMDDHHmmSS) and the body is
// the caller's content with '"' and '\' each prefixed by '\'.
// Every other byte, including newlines, is stored as is.
// The null byte can't be stored.
//
// For example, content `a"b\c` written on 2021-09-09 04:49:00 becomes:
//
//	20210909044900"a\"b\\c"
//
// # Size Limit
//
// The escaped body is limited to maxLen-1 bytes. The tag and the opening
// quote ([Overhead]) don't count. Escaped bytes take 2 bytes of the budget.
//
// # Reading
//
// Since bodies can contain newlines, splitting on lines only works for
// content without them. [Scanner] reads records exactly, skips bytes left
// by interrupted writes up to the next tag and reports a truncated record
// at the end of the store.
package row
