// Package main provides the ancpanel CLI.
//
// Usage:
//
//	ancpanel [flags] <command> [args]
//
// Commands:
//
//	anc            - ANC control (toggle, intensity, prolonged detection, status)
//	notifications  - List and clear backend notifications
//	session        - Processing sessions
//	audio          - One-shot audio processing, classification and emergency detection
//	stream         - Stream audio over the realtime connection
//	watch          - Live status panel
//	system         - Health check and current user
//	apikey         - Manage the stored API key
//	config         - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.ancpanel/
//	Use 'ancpanel config' commands to manage contexts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/haivivi/ancpanel/cmd/ancpanel/commands"
)

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
