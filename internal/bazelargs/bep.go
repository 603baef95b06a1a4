package bazelargs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	bberrors "github.com/bazelbuild/bazel-bench/internal/errors"
)

const (
	canonicalLabel = "canonical"
	commandSection = "command"
	residualLabel  = "residual"

	bepSource = "build event log"
)

// BuildEventFlag returns the flag that makes Bazel export its build event
// protocol as newline delimited JSON to path. Callers must append it as the
// last option: FromBuildEvents drops the last explicit option.
func BuildEventFlag(path string) string {
	return "--build_event_json_file=" + path
}

type chunkList struct {
	Chunk []string `json:"chunk"`
}

type commandLineSection struct {
	SectionLabel string     `json:"sectionLabel"`
	ChunkList    *chunkList `json:"chunkList,omitempty"`
}

type structuredCommandLine struct {
	CommandLineLabel string               `json:"commandLineLabel"`
	Sections         []commandLineSection `json:"sections"`
}

type optionsParsed struct {
	ExplicitCmdLine []string `json:"explicitCmdLine"`
}

type buildEvent struct {
	StructuredCommandLine *structuredCommandLine `json:"structuredCommandLine,omitempty"`
	OptionsParsed         *optionsParsed         `json:"optionsParsed,omitempty"`
}

// FromBuildEventFile reads a build event JSON file written by Bazel and
// returns the canonical invocation it describes.
func FromBuildEventFile(path string) (InvocationSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return InvocationSpec{}, fmt.Errorf("failed to open build event file: %w", err)
	}
	defer f.Close()
	return FromBuildEvents(f)
}

// FromBuildEvents decodes a stream of build events. The command and targets
// come from the canonical structured command line; the options come from the
// explicit command line of the options parsed event, without its last entry
// (the injected build event export flag).
func FromBuildEvents(r io.Reader) (InvocationSpec, error) {
	var (
		canonical *structuredCommandLine
		options   *optionsParsed
	)

	dec := json.NewDecoder(r)
	for {
		var ev buildEvent
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return InvocationSpec{}, fmt.Errorf("failed to decode build event: %w", err)
		}
		if canonical == nil && ev.StructuredCommandLine != nil &&
			ev.StructuredCommandLine.CommandLineLabel == canonicalLabel {
			canonical = ev.StructuredCommandLine
		}
		if options == nil && ev.OptionsParsed != nil {
			options = ev.OptionsParsed
		}
	}

	if canonical == nil {
		return InvocationSpec{}, bberrors.NewMalformedInvocation(bepSource, "no canonical structured command line event")
	}
	if options == nil {
		return InvocationSpec{}, bberrors.NewMalformedInvocation(bepSource, "no options parsed event")
	}
	if len(options.ExplicitCmdLine) == 0 {
		return InvocationSpec{}, bberrors.NewMalformedInvocation(bepSource, "explicit command line is empty")
	}

	spec := InvocationSpec{
		Options: slices.Clone(options.ExplicitCmdLine[:len(options.ExplicitCmdLine)-1]),
		Targets: []string{},
	}

	foundCommand := false
	for _, section := range canonical.Sections {
		switch section.SectionLabel {
		case commandSection:
			if section.ChunkList == nil || len(section.ChunkList.Chunk) != 1 {
				return InvocationSpec{}, bberrors.NewMalformedInvocation(bepSource, "command section must hold exactly one chunk")
			}
			spec.Command = section.ChunkList.Chunk[0]
			foundCommand = true
		case residualLabel:
			if section.ChunkList != nil {
				spec.Targets = slices.Clone(section.ChunkList.Chunk)
			}
		}
	}
	if !foundCommand || spec.Command == "" {
		return InvocationSpec{}, bberrors.NewMalformedInvocation(bepSource, "no command section")
	}
	return spec, nil
}
