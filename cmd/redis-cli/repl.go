package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Read commands from stdin and print their replies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		out := cmd.OutOrStdout()
		timeout := viper.GetDuration("timeout")

		if in != os.Stdin || !liner.TerminalSupported() {
			return repl(cmd.Context(), newScannerPrompter(in, out), out, timeout)
		}

		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)
		line.SetCompleter(complete)

		return repl(cmd.Context(), &linerPrompter{line}, out, timeout)
	},
}

// prompter reads one line of input after showing a prompt. io.EOF ends the
// session.
type prompter interface {
	Prompt(prompt string) (string, error)
}

type linerPrompter struct {
	*liner.State
}

func (p *linerPrompter) Prompt(prompt string) (string, error) {
	line, err := p.State.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err == nil && strings.TrimSpace(line) != "" {
		p.AppendHistory(line)
	}
	return line, err
}

type scannerPrompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newScannerPrompter(in io.Reader, out io.Writer) *scannerPrompter {
	return &scannerPrompter{scanner: bufio.NewScanner(in), out: out}
}

func (p *scannerPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}

var completions = []string{
	"DEL", "ECHO", "EXISTS", "EXPIRE", "GET", "HGET", "HGETALL", "HSET",
	"INCR", "INCRBY", "MGET", "PING", "SELECT", "SET", "TTL",
	"help", "quit", "stats",
}

func complete(line string) []string {
	var out []string
	for _, c := range completions {
		if strings.HasPrefix(strings.ToUpper(c), strings.ToUpper(line)) {
			out = append(out, c+" ")
		}
	}
	sort.Strings(out)
	return out
}

func repl(ctx context.Context, in prompter, out io.Writer, timeout time.Duration) error {
	fmt.Fprintf(out, "Connected to %s. Type 'help' for help, 'quit' to exit.\n", client.Address())

	for {
		text, err := in.Prompt("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		args, err := splitArgs(text)
		if err != nil {
			fmt.Fprintf(out, "(error) %v\n", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch strings.ToLower(args[0]) {
		case "quit", "exit":
			return nil

		case "help":
			fmt.Fprintln(out, "Any command is sent as is, e.g. SET key \"a value\" EX 10")
			fmt.Fprintln(out, "  stats   - Show client and pool statistics")
			fmt.Fprintln(out, "  quit    - Exit")

		case "stats":
			printStats(out)

		default:
			cmdCtx, cancel := context.WithTimeout(ctx, timeout)
			start := time.Now()
			err := runRaw(cmdCtx, out, args)
			cancel()
			if err != nil {
				fmt.Fprintf(out, "(error) %v (took %v)\n", err, time.Since(start))
			}
		}
	}
}

// splitArgs splits a line on spaces. Double quotes group words and support
// the usual backslash escapes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inWord  bool
		quoted  bool
	)

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quoted && c == '\\' && i+1 < len(line):
			i++
			switch line[i] {
			case 'n':
				current.WriteByte('\n')
			case 'r':
				current.WriteByte('\r')
			case 't':
				current.WriteByte('\t')
			default:
				current.WriteByte(line[i])
			}
		case c == '"':
			quoted = !quoted
			inWord = true
		case !quoted && (c == ' ' || c == '\t'):
			if inWord {
				args = append(args, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteByte(c)
			inWord = true
		}
	}

	if quoted {
		return nil, fmt.Errorf("unbalanced quotes")
	}
	if inWord {
		args = append(args, current.String())
	}
	return args, nil
}

func printStats(out io.Writer) {
	stats := client.Stats()
	fmt.Fprintf(out, "Commands: %d (pipelines: %d)\n", stats.Commands, stats.Pipelines)
	fmt.Fprintf(out, "Gets: %d (hits: %d)\n", stats.Gets, stats.GetHits)
	fmt.Fprintf(out, "Server errors: %d\n", stats.ServerErrors)
	fmt.Fprintf(out, "Errors: %d\n", stats.Errors)

	pool := client.PoolStats()
	fmt.Fprintf(out, "Server %s:\n", pool.Addr)
	fmt.Fprintf(out, "  Total Connections: %d\n", pool.PoolStats.TotalConns)
	fmt.Fprintf(out, "  Idle Connections: %d\n", pool.PoolStats.IdleConns)
	fmt.Fprintf(out, "  Active Connections: %d\n", pool.PoolStats.ActiveConns)
	fmt.Fprintf(out, "  Created/Destroyed: %d/%d\n", pool.PoolStats.CreatedConns, pool.PoolStats.DestroyedConns)
	fmt.Fprintf(out, "  Circuit Breaker: %s\n", pool.CircuitBreakerState)
}
