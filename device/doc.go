// Package device decodes the output of specific instruments into records
// with named, unit-tagged fields.
//
// Each parser reads the text (or parsed XML) a source or transform left in
// a record and yields a new record holding only the decoded fields. Input
// that cannot be decoded is logged and dropped, so a noisy serial line does
// not end the stream.
package device
