/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package promptbuilder

import (
	"fmt"
	"maps"
	"slices"
)

// stringLiteral only accepts untyped string constants from callers outside
// this package.
type stringLiteral string

// Prompt is a template with bindable placeholders.
type Prompt struct {
	template string
	bindings map[string]binding
}

// NewPrompt parses a template compiled into the binary.
func NewPrompt(template stringLiteral) (*Prompt, error) {
	return parse(string(template))
}

// Parse parses an operator-supplied template, such as one read from a
// configuration file. Values bound into it are still substituted in a
// single pass.
func Parse(template string) (*Prompt, error) {
	return parse(template)
}

func parse(template string) (*Prompt, error) {
	bindings := make(map[string]binding)
	if _, err := walkTemplate(template, func(name string) (string, error) {
		if _, exists := bindings[name]; !exists {
			bindings[name] = &unboundBinding{name: name}
		}
		return "", nil
	}); err != nil {
		return nil, err
	}
	return &Prompt{template: template, bindings: bindings}, nil
}

// Placeholders returns the sorted names of every placeholder in the template.
func (p *Prompt) Placeholders() []string {
	return slices.Sorted(maps.Keys(p.bindings))
}

// Has reports whether the template contains a placeholder named name.
func (p *Prompt) Has(name string) bool {
	_, ok := p.bindings[name]
	return ok
}

// BindStringLiteral binds a developer-controlled constant.
func (p *Prompt) BindStringLiteral(name string, value stringLiteral) (*Prompt, error) {
	return p.bind(name, &literalBinding{val: string(value)})
}

// BindJSON binds data marshaled as indented JSON.
func (p *Prompt) BindJSON(name string, data any) (*Prompt, error) {
	return p.bind(name, &jsonBinding{data: data})
}

// BindYAML binds data marshaled as YAML.
func (p *Prompt) BindYAML(name string, data any) (*Prompt, error) {
	return p.bind(name, &yamlBinding{data: data})
}

// BindList binds items as a "- " bulleted list, one per line.
func (p *Prompt) BindList(name string, items []string) (*Prompt, error) {
	return p.bind(name, &listBinding{items: slices.Clone(items)})
}

func (p *Prompt) bind(name string, b binding) (*Prompt, error) {
	if err := existsAndUnbound(p.bindings, name); err != nil {
		return nil, err
	}
	next := &Prompt{
		template: p.template,
		bindings: maps.Clone(p.bindings),
	}
	next.bindings[name] = b
	return next, nil
}

// Build renders the prompt, failing if any placeholder is unbound.
func (p *Prompt) Build() (string, error) {
	values := make(map[string]string, len(p.bindings))
	for name, b := range p.bindings {
		val, err := b.value()
		if err != nil {
			return "", err
		}
		values[name] = val
	}
	return walkTemplate(p.template, func(name string) (string, error) {
		if val, ok := values[name]; ok {
			return val, nil
		}
		return "", fmt.Errorf("internal error: binding %q not found", name)
	})
}
