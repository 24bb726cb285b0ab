// Package errors provides the structured error type used across pipecat.
//
// Stream termination is never an error: exhaustion and queue-pop timeouts
// are control signals. AppError covers the cases that are: invalid operator
// arguments, failing sources, and use of a closed stream.
package errors
