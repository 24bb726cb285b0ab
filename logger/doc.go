// Package logger provides structured logging for pipecat using zerolog.
//
// Library packages never log through a hidden global: they receive a
// *Logger through their options and default to NewNop. Commands build a
// real logger from Config and hand it down.
//
// # Configuration
//
//	log:
//	  level: "debug"
//	  format: "console"
//
// # Usage
//
//	log := logger.New(&cfg, "pipecat").WithComponent("limit")
//	log.Debug("iteration stopped", logger.Fields("reason", "count"))
package logger
