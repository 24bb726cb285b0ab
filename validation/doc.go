// Package validation checks pipecat settings before a pipeline is built.
//
// Struct tag validation (go-playground/validator) covers single fields;
// the collecting Validator covers rules that span several fields.
//
//	if err := validation.Validate(cfg); err != nil { ... }
//
//	v := validation.New()
//	v.Positive("limit.timeout", cfg.Timeout)
//	err := v.Err()
package validation
