// Package command implements the ":" command palette of the feed view.
package command

import (
	"fmt"
	"strings"
)

// Kind identifies a palette command.
type Kind int

const (
	Refresh Kind = iota + 1
	More
	Filter
	ReadAll
	Retry
	Quit
)

// Command is a parsed palette line.
type Command struct {
	Kind Kind
	// Arg is the filter name for Filter.
	Arg string
}

var aliases = map[string]Kind{
	"refresh":  Refresh,
	"r":        Refresh,
	"more":     More,
	"next":     More,
	"filter":   Filter,
	"f":        Filter,
	"read-all": ReadAll,
	"readall":  ReadAll,
	"retry":    Retry,
	"quit":     Quit,
	"q":        Quit,
}

// Names lists the canonical command names.
func Names() []string {
	return []string{"refresh", "more", "filter <all|unread|system|forum>", "read-all", "retry", "quit"}
}

// Parse turns a palette line into a Command.
func Parse(line string) (Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	kind, ok := aliases[fields[0]]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", fields[0])
	}

	switch kind {
	case Filter:
		if len(fields) != 2 {
			return Command{}, fmt.Errorf("usage: filter <all|unread|system|forum>")
		}
		return Command{Kind: kind, Arg: fields[1]}, nil
	default:
		if len(fields) > 1 {
			return Command{}, fmt.Errorf("%s takes no arguments", fields[0])
		}
		return Command{Kind: kind}, nil
	}
}
