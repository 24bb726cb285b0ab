// Package config loads pipecat settings.
//
// Values are layered, lowest first: built-in defaults, a YAML config file,
// a .env file, PIPECAT_* environment variables and finally command-line
// flags bound with WithFlags. Nested keys map to environment variables by
// replacing dots with underscores:
//
//	limit.timeout   -> PIPECAT_LIMIT_TIMEOUT
//	logging.level   -> PIPECAT_LOGGING_LEVEL
//
// Durations accept Go syntax ("1m30s") or a quantity ("3 minutes",
// "250 ms"). List values such as output.summary may be given as a
// comma-separated string.
//
// Usage:
//
//	cfg, err := config.LoadConfig(config.WithConfigFile("pipecat.yml"))
package config
