// Package handler contains the log handlers the daemon can attach to the
// log socket, and the registry that builds them from configuration.
//
// Every handler is a func(logparse.Record). The zero record
// (Record.EndOfStream) is the end-of-stream notification: handlers own
// their teardown and must run it then, not before.
package handler

import (
	"fmt"
	"sort"

	"github.com/srcdstools/srcwatch/pkg/logparse"
)

// CommandRunner is the slice of the RCON client handlers may use to talk
// back to the game server.
type CommandRunner interface {
	ExecCommand(command string) (string, error)
}

// Options carries the free-form key/value options of one handler's config
// table.
type Options map[string]string

// Deps are the shared collaborators available to handler constructors.
type Deps struct {
	RCON CommandRunner
}

// Constructor builds a handler from its dependencies and options.
type Constructor func(deps Deps, opts Options) (func(logparse.Record), error)

var registry = map[string]Constructor{
	"filelog":  newFileLog,
	"headshot": newHeadshot,
	"archive":  newArchive,
	"wstail":   newWSTail,
}

// Build constructs the named handler. Handler selection happens here, at
// startup, from configuration; there is no runtime module loading.
func Build(name string, deps Deps, opts Options) (func(logparse.Record), error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown handler %q (available: %v)", name, Names())
	}

	h, err := ctor(deps, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build handler %q: %w", name, err)
	}
	return h, nil
}

// Names lists the registered handler names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
