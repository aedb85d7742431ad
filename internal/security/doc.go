// Package security summarizes an engine configuration as a read-only posture
// report. It only reads values and never changes behavior.
package security
