package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/picsou-app/picsou/exchange"
)

type ExportCmd struct {
	SearchCmd

	Output string `help:"File to write (defaults to stdout)." short:"o" type:"path"`
	Format string `help:"Output format: csv, xml or json (defaults to the output file extension, else csv)."`
}

func (cmd *ExportCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := globals.runContext("export")
	defer report(ctx.Stderr)

	format, err := resolveFormat(cmd.Format, cmd.Output)
	if err != nil {
		return err
	}

	s, err := globals.openSession(runCtx)
	if err != nil {
		return err
	}
	defer s.Close()

	filter, err := cmd.filter(s.Database())
	if err != nil {
		return err
	}

	var out io.Writer = ctx.Stdout
	if cmd.Output != "" {
		f, err := os.Create(cmd.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	n, err := s.Export(runCtx, filter, format, out)
	if err != nil {
		return err
	}

	if cmd.Output != "" {
		printSuccess(ctx.Stderr, fmt.Sprintf("%d operation(s) written to %s", n, nameStyle.Render(cmd.Output)))
	}
	return nil
}

// resolveFormat picks the exchange format from an explicit flag or a file
// extension, falling back to CSV.
func resolveFormat(flag, path string) (exchange.Format, error) {
	if flag != "" {
		return exchange.ParseFormat(flag)
	}
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" && path != "-" {
		if format, err := exchange.ParseFormat(ext); err == nil {
			return format, nil
		}
	}
	return exchange.CSV, nil
}
