package build_kb

import (
	"context"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/walteh/cxref/pkg/cppref"
	"github.com/walteh/cxref/pkg/frontend"
	pipeline "github.com/walteh/cxref/pkg/highlight"
	"github.com/walteh/cxref/pkg/kb"
	"github.com/walteh/cxref/pkg/token"
	"gitlab.com/tozd/go/errors"
)

type Handler struct {
	workdir      string
	out          string
	archiveURL   string
	version      int
	jobs         int
	chooserPath  string
	frontendPath string
	compiler     string
	force        bool
}

func NewBuildKBCommand() *cobra.Command {
	me := &Handler{}

	cmd := &cobra.Command{
		Use:   "build-kb",
		Short: "build the documentation knowledge base from a corpus snapshot",
	}

	cmd.Flags().StringVar(&me.workdir, "workdir", "cxref-kb", "working directory for the corpus and probe units")
	cmd.Flags().StringVar(&me.out, "out", "cxref-kb/kb.json", "knowledge base cache file to write")
	cmd.Flags().StringVar(&me.archiveURL, "archive-url", "", "corpus archive to download (defaults to a pinned snapshot)")
	cmd.Flags().IntVar(&me.version, "cxx-version", 23, "language version declarations are filtered against")
	cmd.Flags().IntVar(&me.jobs, "jobs", 0, "concurrent probe compilations (defaults to CPU count)")
	cmd.Flags().StringVar(&me.chooserPath, "chooser-config", "", "YAML override file for template-argument choices")
	cmd.Flags().StringVar(&me.frontendPath, "frontend", "", "frontend binary (defaults to cxref-frontend on PATH)")
	cmd.Flags().StringVar(&me.compiler, "compiler", "", "compiler driver for the AST export (defaults to clang++)")
	cmd.Flags().BoolVar(&me.force, "force", false, "rebuild even when the cache file exists")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return me.Run(cmd.Context())
	}

	return cmd
}

func (me *Handler) Run(ctx context.Context) error {
	fs := afero.NewOsFs()

	if me.force {
		if err := fs.Remove(me.out); err != nil && !os.IsNotExist(err) {
			return errors.Errorf("removing %s: %w", me.out, err)
		}
	}

	chooser := cppref.DefaultChooser()
	if me.chooserPath != "" {
		cfg, err := cppref.LoadChooserConfig(fs, me.chooserPath)
		if err != nil {
			return err
		}
		chooser = cfg.Chooser(chooser)
	}

	fe := &frontend.Tool{Path: me.frontendPath, Compiler: me.compiler}
	run := func(ctx context.Context, filename string) (*token.File, error) {
		return pipeline.Run(ctx, fe, filename, pipeline.Options{SkipExport: true})
	}

	builder := cppref.NewBuilder(cppref.Options{
		Workdir:    me.workdir,
		ArchiveURL: me.archiveURL,
		Version:    me.version,
		Jobs:       me.jobs,
		Chooser:    chooser,
		FS:         fs,
		Run:        run,
	})

	_, err := kb.LoadOrBuild(ctx, fs, me.out, builder.Build)
	return err
}
