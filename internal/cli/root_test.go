package cli

import (
	"io"
	"slices"
	"testing"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"boot", "resolve", "find", "fetch", "list", "remove", "class", "graph", "provider", "cache", "version"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing subcommand %q in %v", want, names)
		}
	}

	for _, flag := range []string{"verbose", "config", "set", "trace"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}
