package highlight

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/cxref/pkg/frontend"
	pipeline "github.com/walteh/cxref/pkg/highlight"
	"github.com/walteh/cxref/pkg/kb"
	"github.com/walteh/cxref/pkg/output"
	"gitlab.com/tozd/go/errors"
)

type Handler struct {
	format          string
	kbPath          string
	frontendPath    string
	compiler        string
	buildDir        string
	skipPunctuation bool
	skipExport      bool
}

func NewHighlightCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "highlight <file> [-- <compiler args>]",
		Short: "classify one source file into a cross-referenced token stream",
		Args:  cobra.MinimumNArgs(1),
	}

	cmd.Flags().StringVar(&me.format, "format", "json", "output format: json, html, html-embed")
	cmd.Flags().StringVar(&me.kbPath, "kb", "", "knowledge base cache file for documentation references")
	cmd.Flags().StringVar(&me.frontendPath, "frontend", "", "frontend binary (defaults to cxref-frontend on PATH)")
	cmd.Flags().StringVar(&me.compiler, "compiler", "", "compiler driver for the AST export (defaults to clang++)")
	cmd.Flags().StringVar(&me.buildDir, "build-dir", "", "directory holding compile_commands.json")
	cmd.Flags().BoolVar(&me.skipPunctuation, "skip-punctuation", false, "drop operator and punctuation tokens")
	cmd.Flags().BoolVar(&me.skipExport, "skip-export", false, "skip the AST export pass")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context(), args[0], args[1:])
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context, filename string, compilerArgs []string) error {
	opts := pipeline.Options{
		Args:            compilerArgs,
		SkipPunctuation: me.skipPunctuation,
		SkipExport:      me.skipExport,
	}

	if me.kbPath != "" {
		base, err := kb.Load(afero.NewOsFs(), me.kbPath)
		if err != nil {
			return errors.Errorf("loading knowledge base: %w", err)
		}
		opts.KB = base
	}

	fe := &frontend.Tool{
		Path:     me.frontendPath,
		Compiler: me.compiler,
		BuildDir: me.buildDir,
	}

	f, err := pipeline.Run(ctx, fe, filename, opts)
	if err != nil {
		return err
	}

	switch me.format {
	case "json":
		return output.WriteJSON(os.Stdout, f)
	case "html":
		return output.WriteHTML(os.Stdout, f)
	case "html-embed":
		return output.WriteHTMLEmbed(os.Stdout, f)
	default:
		return errors.Errorf("unknown output format %q", me.format)
	}
}
