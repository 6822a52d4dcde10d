package dispatch

import (
	"sort"
	"strings"
)

// CommandHandler binds a command name to its handler and help line.
type CommandHandler struct {
	Name string
	Help string
	Func Handler
}

// Registry maps command names to handlers. It is populated once at startup
// and treated as immutable afterwards; lookups are case-sensitive by exact
// name. Every registry carries a built-in help command unless an explicit
// one replaces it.
type Registry struct {
	commands map[string]CommandHandler
}

// NewRegistry builds a registry from the given commands plus the built-in
// help command.
func NewRegistry(cmds ...CommandHandler) *Registry {
	r := &Registry{commands: make(map[string]CommandHandler, len(cmds)+1)}

	r.commands["help"] = CommandHandler{
		Name: "help",
		Help: "Show this help.",
		Func: r.helpHandler,
	}

	for _, cmd := range cmds {
		if cmd.Name == "" || cmd.Func == nil {
			continue
		}
		r.commands[cmd.Name] = cmd
	}

	return r
}

// Lookup finds the handler registered under the exact name.
func (r *Registry) Lookup(name string) (CommandHandler, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns all registered command names in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HelpText renders the alphabetical command listing shown by /help.
func (r *Registry) HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:")

	for _, name := range r.Names() {
		cmd := r.commands[name]
		b.WriteString("\n/")
		b.WriteString(cmd.Name)
		if cmd.Help != "" {
			b.WriteString(" -- ")
			b.WriteString(cmd.Help)
		}
	}

	return b.String()
}

func (r *Registry) helpHandler(c *Context) (Outcome, error) {
	return Continue, c.Reply(r.HelpText())
}
