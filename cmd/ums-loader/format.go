package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	// we cannot use "maps" yet, as it needs go1.23
	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"
)

// OutputFormat contains the valid output formats for command results
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = ""
	OutputFormatText    OutputFormat = "text"
	OutputFormatJSON    OutputFormat = "json"
	OutputFormatYAML    OutputFormat = "yaml"
)

// textWriter is implemented by every value a command prints.
type textWriter interface {
	writeText(w io.Writer) error
}

// ResultFormatter writes a command result to the given io.Writer
type ResultFormatter interface {
	Output(w io.Writer, res textWriter) error
}

var supportedFormatters = map[string]ResultFormatter{
	string(OutputFormatDefault): &textFormatter{},
	string(OutputFormatText):    &textFormatter{},
	string(OutputFormatJSON):    &jsonFormatter{},
	string(OutputFormatYAML):    &yamlFormatter{},
}

// SupportedOutputFormats returns a list of supported output formats
func SupportedOutputFormats() []string {
	var keys []string
	for _, k := range maps.Keys(supportedFormatters) {
		if k != string(OutputFormatDefault) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func addFormatFlag(cmd *cobra.Command) {
	cmd.Flags().String("format", "", fmt.Sprintf("Output in a specific format (%s)", strings.Join(SupportedOutputFormats(), ",")))
}

// NewResultFormatter returns the formatter for the given format.
func NewResultFormatter(format OutputFormat) (ResultFormatter, error) {
	rf, ok := supportedFormatters[string(format)]
	if !ok {
		return nil, fmt.Errorf("unsupported formatter %q", format)
	}
	return rf, nil
}

type textFormatter struct{}

func (*textFormatter) Output(w io.Writer, res textWriter) error {
	return res.writeText(w)
}

type jsonFormatter struct{}

func (*jsonFormatter) Output(w io.Writer, res textWriter) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

type yamlFormatter struct{}

func (*yamlFormatter) Output(w io.Writer, res textWriter) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return enc.Close()
}
