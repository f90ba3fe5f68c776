// Command sxwatch-mcp exposes a running sxwatch-d over the Model Context
// Protocol on stdio, so MCP-capable assistants can query line status and
// feed health.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/nordlys-io/sxwatch/pkg/mcp"
)

func main() {
	apiURL := flag.String("api", "http://127.0.0.1:8091", "Base URL of the sxwatch-d API")
	flag.Parse()

	s := mcp.NewServer(*apiURL)
	if err := s.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server failed: %v\n", err)
		os.Exit(1)
	}
}
