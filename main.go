package main

import (
	"fmt"
	"os"

	"github.com/okdaichi/overlayd/internal/cli"
	"github.com/okdaichi/overlayd/internal/version"
)

var (
	// overridable command handlers for easier unit-testing
	runNode       = cli.RunNode
	runController = cli.RunController
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes the command logic and returns an exit code (0 = success).
// Keeping this function small makes unit-testing straightforward.
func run(args []string) int {
	if len(args) < 1 {
		printUsage()
		return 1
	}

	cmd := args[0]
	cmdArgs := args[1:]

	if cmd == "version" {
		fmt.Println(version.Full())
		return 0
	}

	var err error
	switch cmd {
	case "node":
		err = runNode(cmdArgs)
	case "controller":
		err = runController(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: overlayd <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  node         Start an overlay routing node (dv, ls, or centralized-member)")
	fmt.Fprintln(os.Stderr, "  controller   Start the centralized routing controller")
	fmt.Fprintln(os.Stderr, "  version      Print version information")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Flags:")
	fmt.Fprintln(os.Stderr, "  -config string   path to config file")
	fmt.Fprintln(os.Stderr, "                   defaults: config.node.yaml (node), config.controller.yaml (controller)")
}
