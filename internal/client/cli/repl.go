package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// errUsage makes the REPL print the usage line of the command.
var errUsage = errors.New("usage")

// command is one REPL verb. auth commands need a session; guest commands
// are only advertised while logged out.
type command struct {
	name  string
	args  string
	help  string
	auth  bool
	guest bool
	run   func(ctx context.Context, args []string) error
}

func (c command) usage() string {
	if c.args == "" {
		return c.name
	}
	return c.name + " " + c.args
}

// runREPL reads commands line by line and dispatches them. It returns on
// EOF, "exit"/"quit" or when ctx is done. Command errors go to report and
// never stop the loop. Commands prompting for input share reader.
func runREPL(ctx context.Context, cmds []command, loggedIn func() bool, prompt func() string,
	reader *bufio.Reader, out io.Writer, report func(cmd string, err error)) {

	byName := make(map[string]command, len(cmds))
	for _, c := range cmds {
		byName[c.name] = c
	}

	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(out, prompt())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		name, args := parts[0], parts[1:]

		switch name {
		case "help":
			printHelp(out, cmds, loggedIn())
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		}

		c, ok := byName[name]
		if !ok {
			fmt.Fprintln(out, "Unknown command:", name)
			continue
		}
		if c.auth && !loggedIn() {
			fmt.Fprintln(out, "Please log in first (try 'login').")
			continue
		}

		err = c.run(ctx, args)
		switch {
		case err == nil:
		case errors.Is(err, errUsage):
			fmt.Fprintln(out, "Usage:", c.usage())
		default:
			report(name, err)
		}
	}
}

func printHelp(out io.Writer, cmds []command, loggedIn bool) {
	fmt.Fprintln(out, "Available commands:")
	for _, c := range cmds {
		if (c.auth && !loggedIn) || (c.guest && loggedIn) {
			continue
		}
		fmt.Fprintf(out, "  %-28s %s\n", c.usage(), c.help)
	}
	fmt.Fprintf(out, "  %-28s %s\n", "help", "show this list")
	fmt.Fprintf(out, "  %-28s %s\n", "exit | quit", "leave the program")
}
