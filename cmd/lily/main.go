// Command lily is the reference front end for the interpreter (spec.md §6
// "CLI surface"): `lily [-h] [-t] [-s SOURCE | FILE]`, plus an additive
// `repl` mode grounded on the teacher's interactive loop (cmd/smog/main.go)
// and on ozanh-ugo's REPL usage of github.com/peterh/liner.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kristofer/lily/pkg/diag"
	"github.com/kristofer/lily/pkg/vm"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"
)

func main() {
	var (
		tagged = flag.BoolP("tagged", "t", false, "treat input as template text by default, switching to code only inside <?lily ... ?>")
		source = flag.BoolP("source", "s", false, "treat the positional argument as source text, not a file path")
		help   = flag.BoolP("help", "h", false, "show this help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	args := flag.Args()
	if len(args) > 0 && args[0] == "repl" {
		runREPL(args[1:])
		return
	}

	ip := vm.New(args, nil)
	defer ip.Close()

	var err error
	switch {
	case *source:
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "lily: -s requires source text")
			os.Exit(1)
		}
		err = ip.ParseString("<source>", args[0], *tagged)
	case len(args) > 0:
		err = ip.ParseFile(args[0], *tagged)
	default:
		runREPL(nil)
		return
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, formatTraceback(err))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: lily [-h] [-t] [-s SOURCE | FILE]")
	fmt.Println()
	fmt.Println("  -t, --tagged   treat input as template text by default (<?lily ... ?> enters code)")
	fmt.Println("  -s, --source   treat the positional argument as source text, not a path")
	fmt.Println("  -h, --help     show this help message")
	fmt.Println()
	fmt.Println("With no FILE and no -s, or with the positional argument \"repl\",")
	fmt.Println("starts an interactive session.")
}

// formatTraceback renders an error the way spec.md §6/§7 describe: parser
// and emitter failures as a single diagnostic line, VM failures as the full
// frame stack (vm.RuntimeError.Error already does the latter).
func formatTraceback(err error) string {
	if de, ok := err.(*diag.Error); ok {
		return de.Error()
	}
	return err.Error()
}

// runREPL is the additive interactive mode (not in spec.md's CLI table):
// a persistent Interp across lines, multi-line input keyed on a trailing
// "." the way the teacher's REPL does (cmd/smog/main.go's runREPL/evalREPL),
// using github.com/peterh/liner for line editing and history.
func runREPL(argv []string) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("lily REPL")
	fmt.Println("Type ':help' for help, ':quit' or ':exit' to leave")
	fmt.Println()

	ip := vm.New(argv, nil)
	defer ip.Close()

	var buf strings.Builder
	for {
		prompt := "lily> "
		if buf.Len() > 0 {
			prompt = "....> "
		}
		text, err := line.Prompt(prompt)
		if err != nil { // EOF (Ctrl-D) or Ctrl-C
			fmt.Println()
			return
		}

		if buf.Len() == 0 {
			switch strings.TrimSpace(text) {
			case ":quit", ":exit":
				return
			case ":help":
				printREPLHelp()
				continue
			case "":
				continue
			}
		}

		buf.WriteString(text)
		buf.WriteString("\n")

		accumulated := strings.TrimSpace(buf.String())
		if !strings.HasSuffix(accumulated, ".") {
			continue
		}
		line.AppendHistory(accumulated)

		src := strings.TrimSuffix(accumulated, ".")
		buf.Reset()
		// REPL lines are plain code, not template text (spec.md §4.2's
		// "parse_string... starts untagged"): templateMode stays false.
		if err := ip.ParseString("<repl>", src, false); err != nil {
			fmt.Println(formatTraceback(err))
		}
	}
}

func printREPLHelp() {
	fmt.Println("Enter one or more statements ending with '.' to evaluate them.")
	fmt.Println("Variables and classes declared in one entry are visible to later ones.")
	fmt.Println(":quit / :exit   leave the REPL")
	fmt.Println(":help           show this message")
}
