// Package tracing provides lightweight spans for timing stress runs.
package tracing
