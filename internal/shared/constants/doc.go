// Package constants centralizes defaults shared across the CLI and the checks.
//
// File permissions, evidence limits, crawl bounds and check thresholds live
// here so cmd/ and internal/ can reference them without import cycles.
package constants
