// ============================================================================
// sprechWERK (sWK) - Echtzeit-Sprachassistent
// ============================================================================
//
// Package:     main
// Description: sWK command line interface
// Author:      Mike Stoffels with Claude
// Created:     2026-08-26
// License:     MIT
// ============================================================================

package main

import (
	"os"

	"github.com/msto63/sprechwerk/cmd/swk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
