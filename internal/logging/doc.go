// Package logging provides a simple leveled logging interface for the
// media scanner.
//
// It supports the following log levels:
//   - MEMORY: Allocation and release traces for per-file scan state
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is read from the LOG_LEVEL environment variable on first use
// and can be set explicitly with SetLevel. Output can be redirected to a
// rotating file with Configure.
package logging
