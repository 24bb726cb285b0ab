// Package transform holds record stages: field tagging, filtering, tracing
// and parsing of JSON and XML payloads.
//
// Stages modify the records flowing through them in place; a record handed
// to a stage belongs to that stage until it is yielded downstream.
package transform
