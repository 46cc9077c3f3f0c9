package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "import":
		err = cmdImport(os.Stdout, os.Args[2:])
	case "migrate":
		err = cmdMigrate(os.Stdout)
	case "progress":
		err = cmdProgress(os.Stdout, os.Args[2:])
	case "languages":
		err = cmdLanguages(os.Stdout)
	case "mcp":
		err = cmdMCP(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("syllabus %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Syllabus - course progression and code grading

Usage:
  syllabus <command> [arguments]

Catalog Commands:
  import <pack.yaml>         Import or update a course pack
  migrate                    Apply storage migrations

Learner Commands:
  progress <user> <course>   Show a learner's progress through a course

Judge Commands:
  languages                  List supported languages and judge ids

Integration Commands:
  mcp [http-addr]            Start MCP server on stdio, or HTTP when an address is given

Other:
  help                       Show this help message
  version                    Show version information

Configuration is read from $SYLLABUS_CONFIG or ~/.syllabus/config.yaml,
then overridden by environment variables.

Examples:
  syllabus import packs/java-intro.yaml
  syllabus progress 3f1c9a52-7a0e-4c1b-9d8e-2f6b1a0c4d77 1
  syllabus mcp`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
