// Package bazelargs normalizes a Bazel invocation into its canonical form:
// the command, the ordered options and the ordered targets.
package bazelargs

import (
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"

	bberrors "github.com/bazelbuild/bazel-bench/internal/errors"
)

// FlagPrefix marks a token as an option.
const FlagPrefix = "--"

// InvocationSpec is the canonical form of one Bazel command line. It is
// shared by every run of a unit and must not be modified after creation.
type InvocationSpec struct {
	Command string   `json:"command"`
	Options []string `json:"options"`
	Targets []string `json:"targets"`
}

// Args returns the options followed by the targets, as passed after the
// command name.
func (s InvocationSpec) Args() []string {
	args := make([]string, 0, len(s.Options)+len(s.Targets))
	args = append(args, s.Options...)
	return append(args, s.Targets...)
}

// Tokens returns the full canonical token list, command first.
func (s InvocationSpec) Tokens() []string {
	return append([]string{s.Command}, s.Args()...)
}

// String renders the invocation as a shell-safe command line.
func (s InvocationSpec) String() string {
	return shellquote.Join(s.Tokens()...)
}

// FromCanonical parses a token list that is already in canonical form. The
// first token is the command. Following tokens are options while they start
// with "--"; the first token that does not begins the targets, and every
// token after it is a target regardless of its form.
func FromCanonical(tokens []string) (InvocationSpec, error) {
	if len(tokens) == 0 || tokens[0] == "" {
		return InvocationSpec{}, bberrors.NewMalformedInvocation("command line", "no command token present")
	}

	spec := InvocationSpec{
		Command: tokens[0],
		Options: []string{},
		Targets: []string{},
	}
	rest := tokens[1:]
	for i, tok := range rest {
		if !strings.HasPrefix(tok, FlagPrefix) {
			spec.Targets = slices.Clone(rest[i:])
			break
		}
		spec.Options = append(spec.Options, tok)
	}
	return spec, nil
}

// FromCommandString splits a configured command string with shell quoting
// rules and parses the result with FromCanonical.
func FromCommandString(command string) (InvocationSpec, error) {
	tokens, err := shellquote.Split(command)
	if err != nil {
		return InvocationSpec{}, bberrors.NewMalformedInvocation("command line", err.Error())
	}
	return FromCanonical(tokens)
}
