// Package logger wraps zerolog with the small structured-logging surface the
// client packages use. Library components default to Nop and accept a
// *Logger through their options.
package logger
