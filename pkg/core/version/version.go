// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     version
// Description: Central version management for all services
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package version

// Version constants for all sprechWERK services
const (
	// Platform version
	Platform = "1.0.0"

	// Service versions
	Wittgenstein = "1.0.0"
	Assistant    = "1.0.0"
)

// ServiceVersion returns the version for a given service name
func ServiceVersion(name string) string {
	switch name {
	case "wittgenstein":
		return Wittgenstein
	case "assistant":
		return Assistant
	default:
		return Platform
	}
}
