package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// errUsage marks a command invoked with wrong arguments.
var errUsage = errors.New("usage")

const helpText = "Available commands: upload, export [file], show <file>, ping, help, exit"

// execIface is the command surface the dispatcher drives. App satisfies it;
// tests provide a stub.
type execIface interface {
	Upload(ctx context.Context) error
	Export(ctx context.Context, path string) error
	Show(ctx context.Context, path string) error
	Ping(ctx context.Context) error
}

// dispatch runs one command. quit reports that the user asked to leave.
func dispatch(ctx context.Context, a execIface, parts []string) (quit bool, err error) {
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "help":
		printlnFn(helpText)
		return false, nil

	case "upload":
		return false, a.Upload(ctx)

	case "export":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		return false, a.Export(ctx, path)

	case "show":
		if len(args) == 0 {
			printlnFn("Usage: show <file>")
			return false, errUsage
		}
		return false, a.Show(ctx, args[0])

	case "ping":
		return false, a.Ping(ctx)

	case "exit", "quit":
		printlnFn("Bye!")
		return true, nil

	default:
		printlnFn("Unknown command:", cmd)
		return false, errUsage
	}
}

// runREPL reads commands from scanner until EOF or exit. Command errors are
// reported and the loop goes on.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	printlnFn("deviceguard agent (type 'help' for commands)")
	for {
		printlnFn("dg> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		quit, err := dispatch(ctx, a, parts)
		if err != nil && !errors.Is(err, errUsage) {
			printlnFn("Error:", err)
		}
		if quit {
			return
		}
	}
}
