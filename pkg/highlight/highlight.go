/*
Package highlight runs the full classification pipeline for one source
file: parse, merge, member resolution, refinement, and knowledge-base
annotation.
*/
package highlight

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/cxref/pkg/astdump"
	"github.com/walteh/cxref/pkg/frontend"
	"github.com/walteh/cxref/pkg/kb"
	"github.com/walteh/cxref/pkg/merge"
	"github.com/walteh/cxref/pkg/token"
	"gitlab.com/tozd/go/errors"
)

// Options configures one pipeline run.
type Options struct {
	// Args are the compiler arguments the file is parsed with.
	Args []string

	// KB, when set, annotates linked tokens with documentation
	// references.
	KB *kb.KnowledgeBase

	// SkipPunctuation drops operator and punctuation tokens from the
	// output stream.
	SkipPunctuation bool

	// SkipExport disables the AST export pass; member references then
	// keep the links the merge produced.
	SkipExport bool
}

// Run classifies filename into a token stream. Parse errors above
// warning severity are fatal; a failing AST export is not, since the
// parse already succeeded and the export only refines member links.
func Run(ctx context.Context, fe frontend.Frontend, filename string, opts Options) (*token.File, error) {
	logger := zerolog.Ctx(ctx)

	tu, err := fe.Parse(ctx, filename, opts.Args)
	if err != nil {
		return nil, err
	}
	if diags := tu.Errors(); len(diags) > 0 {
		return nil, errors.Errorf("parsing %s: %s", filename, diags[0].Message)
	}

	f := merge.File(ctx, tu)

	if !opts.SkipExport {
		data, err := fe.ExportAST(ctx, filename, opts.Args)
		if err != nil {
			logger.Warn().Err(err).Str("file", filename).Msg("ast export failed, member references unresolved")
		} else {
			root, err := astdump.Parse(data)
			if err != nil {
				logger.Warn().Err(err).Str("file", filename).Msg("ast export unparseable, member references unresolved")
			} else {
				astdump.ResolveMembers(ctx, root, f)
			}
		}
	}

	if err := merge.SplitIncludes(f); err != nil {
		return nil, err
	}
	merge.DecomposeStrings(f)

	if opts.KB != nil {
		opts.KB.Annotate(f)
	}

	if opts.SkipPunctuation {
		f.Tokens = dropPunctuation(f.Tokens)
	}

	return f, nil
}

func dropPunctuation(tokens []*token.Token) []*token.Token {
	out := tokens[:0]
	for _, t := range tokens {
		if t.Type == token.Operator || t.Type == token.Punctuation {
			continue
		}
		out = append(out, t)
	}
	return out
}
