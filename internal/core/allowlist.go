// Package core implements allow-list validation, risk policy and the gatekeeper façade.
package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/gatekeeper/internal/policy"
)

// Segment is one piece of an argument template: either literal text or a parameter reference.
type Segment struct {
	// Literal is the text inserted verbatim when IsParam is false.
	Literal string
	// Param is the 0-based parameter index when IsParam is true.
	Param int
	// IsParam selects between the two variants.
	IsParam bool
}

// ArgTemplate is a single argv slot built from one or more segments.
type ArgTemplate []Segment

// Placeholders returns the parameter indexes referenced by the slot, in order.
func (a ArgTemplate) Placeholders() []int {
	var out []int
	for _, s := range a {
		if s.IsParam {
			out = append(out, s.Param)
		}
	}
	return out
}

// String renders the slot back into template syntax, escaping literal braces.
func (a ArgTemplate) String() string {
	var b strings.Builder
	for _, s := range a {
		if s.IsParam {
			b.WriteString("{" + strconv.Itoa(s.Param) + "}")
			continue
		}
		lit := strings.ReplaceAll(s.Literal, "{", "{{")
		b.WriteString(strings.ReplaceAll(lit, "}", "}}"))
	}
	return b.String()
}

// ParamValidator is a compiled positional parameter check.
type ParamValidator struct {
	Name    string
	Pattern string
	re      *regexp.Regexp
}

// Match reports whether value matches the pattern in full.
func (v ParamValidator) Match(value string) bool {
	return v.re.MatchString(value)
}

// CommandTemplate is the compiled, immutable form of an allow-list entry.
type CommandTemplate struct {
	ID          string
	Base        string
	Args        []ArgTemplate
	Params      []ParamValidator
	Description string
}

// Registry is the static allow-list. It is read-only once built.
type Registry struct {
	commands map[string]*CommandTemplate
}

// NewRegistry compiles an allow-list document. Every regex is anchored to the full value and
// every placeholder must reference a declared parameter.
func NewRegistry(doc policy.AllowListDocument) (*Registry, error) {
	reg := &Registry{commands: make(map[string]*CommandTemplate, len(doc.Commands))}

	for _, id := range doc.IDs() {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("allow-list: empty command id")
		}
		tmpl, err := compileCommand(id, doc.Commands[id])
		if err != nil {
			return nil, fmt.Errorf("allow-list %q: %w", id, err)
		}
		reg.commands[id] = tmpl
	}
	return reg, nil
}

func compileCommand(id string, def policy.CommandDefinition) (*CommandTemplate, error) {
	def, err := def.Normalize()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(def.Command) == "" {
		return nil, fmt.Errorf("command is required")
	}
	base, err := parseArgTemplate(def.Command)
	if err != nil {
		return nil, fmt.Errorf("command: %w", err)
	}
	if len(base.Placeholders()) > 0 {
		return nil, fmt.Errorf("command %q must not contain placeholders", def.Command)
	}

	tmpl := &CommandTemplate{
		ID:          id,
		Base:        def.Command,
		Description: def.Description,
	}

	for i, spec := range def.ParamSchema {
		if strings.TrimSpace(spec.Name) == "" {
			return nil, fmt.Errorf("param_schema[%d]: name is required", i)
		}
		re, err := regexp.Compile(`^(?:` + spec.Regex + `)$`)
		if err != nil {
			return nil, fmt.Errorf("param_schema[%d] %q: invalid regex: %w", i, spec.Name, err)
		}
		tmpl.Params = append(tmpl.Params, ParamValidator{Name: spec.Name, Pattern: spec.Regex, re: re})
	}

	for i, raw := range def.Args {
		arg, err := parseArgTemplate(raw)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		for _, idx := range arg.Placeholders() {
			if idx >= len(tmpl.Params) {
				return nil, fmt.Errorf("args[%d]: placeholder {%d} has no param_schema entry", i, idx)
			}
		}
		tmpl.Args = append(tmpl.Args, arg)
	}

	return tmpl, nil
}

// parseArgTemplate splits a template string into literal and {N} segments.
// "{{" and "}}" produce literal braces.
func parseArgTemplate(raw string) (ArgTemplate, error) {
	var (
		out ArgTemplate
		lit strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			out = append(out, Segment{Literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '{' && i+1 < len(raw) && raw[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(raw) && raw[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(raw[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated placeholder in %q", raw)
			}
			idx, err := strconv.Atoi(raw[i+1 : i+end])
			if err != nil || idx < 0 || raw[i+1] == '+' {
				return nil, fmt.Errorf("invalid placeholder %q in %q", raw[i:i+end+1], raw)
			}
			flush()
			out = append(out, Segment{Param: idx, IsParam: true})
			i += end
		case c == '}':
			return nil, fmt.Errorf("unbalanced '}' in %q", raw)
		default:
			lit.WriteByte(c)
		}
	}
	flush()

	if len(out) == 0 {
		// An empty argument is still a distinct argv slot.
		out = ArgTemplate{{Literal: ""}}
	}
	return out, nil
}

// Lookup returns the template registered for commandID.
func (r *Registry) Lookup(commandID string) (*CommandTemplate, bool) {
	tmpl, ok := r.commands[commandID]
	return tmpl, ok
}

// IDs returns the registered command ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.commands))
	for id := range r.commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	return len(r.commands)
}
