// Command crpairs builds context/response training pairs from a dialogue
// corpus.
//
// Usage:
//
//	crpairs [flags] <command> [args]
//
// Commands:
//
//	generate - write labeled pairs for a corpus
//	scan     - index a corpus and report its size
//	schema   - print the job file JSON Schema
//	config   - manage contexts of job defaults
//	version  - print the version
//
// Configuration is stored in ~/.crpairs/crpairs/.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/crpairs/cmd/crpairs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
