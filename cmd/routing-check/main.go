// Command routing-check loads a routing file into a scratch registry and
// reports validation errors and structural warnings.
//
// The file may be JSON or YAML, holding either a list of operations or an
// object with an "operations" list. Exit status is 0 when the routing loads
// cleanly, 1 when it is rejected (or has warnings under -strict) and 2 on
// usage or read errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"routingcore/internal/core"
	"routingcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	path   string
	from   string
	strict bool
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("routing-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.path, "file", "", "path to a JSON or YAML routing file")
	fs.StringVar(&opts.from, "from", "", "print the processing sequence starting at this operation code")
	fs.BoolVar(&opts.strict, "strict", false, "treat structural warnings as failures")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.path == "" && fs.NArg() > 0 {
		opts.path = fs.Arg(0)
	}
	if opts.path == "" {
		_, _ = fmt.Fprintln(stderr, "routing-check: a routing file is required")
		fs.Usage()
		return 2
	}
	ops, err := loadOperations(opts.path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "routing-check: %v\n", err)
		return 2
	}
	return check(context.Background(), ops, opts, stdout, stderr)
}

func check(ctx context.Context, ops []domain.Operation, opts options, stdout, stderr io.Writer) int {
	svc := core.NewInMemoryService(nil)
	if _, _, err := svc.PutAll(ctx, ops); err != nil {
		var verr domain.ValidationError
		if errors.As(err, &verr) {
			_, _ = fmt.Fprintf(stderr, "Routing rejected: %s\n", verr.Error())
		} else {
			_, _ = fmt.Fprintf(stderr, "Routing rejected: %v\n", err)
		}
		return 1
	}
	warnings := svc.Validate(ctx)
	for _, w := range warnings {
		_, _ = fmt.Fprintf(stdout, "warning: %s\n", w.String())
	}
	if opts.from != "" {
		seq := svc.SequenceFrom(ctx, opts.from)
		if len(seq.Operations) == 0 {
			_, _ = fmt.Fprintf(stdout, "no sequence: %s is not an active operation\n", opts.from)
		}
		for i, op := range seq.Operations {
			_, _ = fmt.Fprintf(stdout, "%d. %s %s\n", i+1, op.OperationCode, op.OperationName)
		}
	}
	if opts.strict && len(warnings) > 0 {
		_, _ = fmt.Fprintf(stderr, "Routing check failed: %d structural warning(s).\n", len(warnings))
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "Routing check passed: %d operation(s), %d warning(s).\n", len(ops), len(warnings))
	return 0
}

// loadOperations parses the file as YAML, which also accepts JSON, and
// re-encodes it as JSON so the operation field names match the API.
func loadOperations(path string) ([]domain.Operation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file: %w", err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse routing file: %w", err)
	}
	if wrapped, ok := doc.(map[string]any); ok {
		list, found := wrapped["operations"]
		if !found {
			return nil, errors.New(`parse routing file: expected a list or an "operations" key`)
		}
		doc = list
	}
	if _, ok := doc.([]any); !ok {
		return nil, errors.New("parse routing file: operations must be a list")
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalise routing file: %w", err)
	}
	var ops []domain.Operation
	if err := json.Unmarshal(encoded, &ops); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	return ops, nil
}
