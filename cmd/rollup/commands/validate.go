package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/streamcore/rollup/internal/graph"
)

// exitCodeValidationFailure is the exit code for a document that fails schema validation.
const exitCodeValidationFailure = 2

// NewValidateCommand creates the validate subcommand.
func NewValidateCommand() *cobra.Command {
	var nocolor bool

	cmd := &cobra.Command{
		Use:   "validate <document.json|->",
		Short: "Validate a dataflow-graph JSON document against the embedded schema",
		Long: `Validate a dataflow-graph JSON document against the schema internal/graph
builds a circuit.Graph from.

Examples:
  rollup validate graph.json
  rollup validate - < graph.json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0], nocolor)
		},
	}

	cmd.Flags().BoolVar(&nocolor, "no-color", false, "disable colored output")

	return cmd
}

func runValidate(inputPath string, nocolor bool) error {
	if nocolor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	raw, label, err := readDocument(inputPath)
	if err != nil {
		return err
	}

	validateErr := graph.Validate(raw)
	if validateErr == nil {
		color.New(color.FgGreen).Fprintf(os.Stdout, "valid (%s)\n", label)

		return nil
	}

	var schemaErr *graph.ValidationError
	if errors.As(validateErr, &schemaErr) {
		color.New(color.FgRed).Fprintf(os.Stdout, "invalid (%s)\n", label)

		for _, msg := range schemaErr.Errors {
			color.New(color.FgYellow).Fprintf(os.Stdout, "  - %s\n", msg)
		}

		os.Exit(exitCodeValidationFailure)

		return nil
	}

	return fmt.Errorf("schema validation: %w", validateErr)
}

func readDocument(path string) (raw []byte, label string, err error) {
	var r io.Reader

	if path == "-" {
		r, label = os.Stdin, "stdin"
	} else {
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, "", fmt.Errorf("open %s: %w", path, openErr)
		}
		defer f.Close()

		r, label = f, path
	}

	raw, err = io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", label, err)
	}

	return raw, label, nil
}
