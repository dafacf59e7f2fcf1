/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package promptbuilder builds system prompts from templates with named
{{placeholder}} slots.

Templates compiled into the binary are created with NewPrompt, which only
accepts string literals. Templates that operators supply at runtime (a
rubric file, for example) go through Parse. Either way the template is
tokenized once, and substitution is single-pass: a bound value that itself
contains "{{name}}" is written verbatim and never expanded.

Structured data is bound with BindJSON or BindYAML so the encoder, not the
caller, is responsible for formatting:

	p := promptbuilder.MustNewPrompt(`Codes:
	{{taxonomy}}

	Schema:
	{{schema}}`)

	p, err := p.BindYAML("taxonomy", rules)
	if err != nil {
		return err
	}
	p, err = p.BindJSON("schema", s)
	if err != nil {
		return err
	}
	text, err := p.Build()

Prompt values are immutable; every Bind method returns a new Prompt, so a
package-level template can be shared across goroutines.
*/
package promptbuilder
