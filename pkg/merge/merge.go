/*
Package merge reconciles the frontend's two views of a file, the flat
lexical token list and the nested semantic node tree, into one
classified token sequence.

	Lexemes:   [int] [main] [(] [)] [{] [}]
	Tree:      TranslationUnit
	              └── FunctionDecl "main"
	                     └── ParmDecl ...

The walk attributes every lexeme to the most specific semantic node it
falls under; lexemes between a node's children belong to the node
itself, which is how punctuation and operators pick up a classification
context even though the tree has no nodes for them.
*/
package merge

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/walteh/cxref/pkg/frontend"
	"github.com/walteh/cxref/pkg/token"
)

// entry pairs a lexeme with the semantic node that claimed it.
type entry struct {
	lex  frontend.Lexeme
	node *frontend.Node
}

type merger struct {
	file    string
	lexemes []frontend.Lexeme
	entries map[int]entry
}

// File merges and classifies one translation unit into a token file.
// The result satisfies the token stream invariants (ordering, tiling);
// refinement passes and knowledge-base annotation come afterwards.
func File(ctx context.Context, tu *frontend.TranslationUnit) *token.File {
	m := &merger{
		file:    tu.Filename,
		lexemes: tu.Lexemes,
		entries: make(map[int]entry),
	}

	// Seed every lexeme with the root as its context so that tokens no
	// node encloses still get classified.
	for _, lex := range tu.Lexemes {
		m.entries[lex.Offset] = entry{lex: lex, node: tu.Root}
	}

	m.visit(tu.Root)

	out := m.emit(tu)

	zerolog.Ctx(ctx).Debug().
		Str("file", tu.Filename).
		Int("lexemes", len(tu.Lexemes)).
		Int("tokens", len(out.Tokens)).
		Msg("merged token stream")

	return out
}

// set claims a lexeme for a node. Offsets claimed by a macro
// instantiation are never overwritten; tokens inside the expansion stay
// suppressed.
func (m *merger) set(node *frontend.Node, lex frontend.Lexeme) {
	if prev, ok := m.entries[lex.Offset]; ok {
		if prev.node.Kind == frontend.KindMacroInstantiation {
			return
		}
	}
	m.entries[lex.Offset] = entry{lex: lex, node: node}
}

// lexemesIn returns the lexemes whose start offsets fall inside the
// extent. The lexeme list is offset-ordered, so a binary search bounds
// the slice.
func (m *merger) lexemesIn(ext frontend.Extent) []frontend.Lexeme {
	lo := sort.Search(len(m.lexemes), func(i int) bool {
		return m.lexemes[i].Offset >= ext.Start
	})
	hi := sort.Search(len(m.lexemes), func(i int) bool {
		return m.lexemes[i].Offset >= ext.End
	})
	return m.lexemes[lo:hi]
}

func (m *merger) visit(node *frontend.Node) {
	// Nodes from other files are discarded before classification.
	if node.File != m.file {
		return
	}

	// An inclusion directive becomes a single token covering the whole
	// directive; the refinement pass splits it again. The seeded entries
	// for the lexemes inside the directive would overlap it and are
	// dropped.
	if node.Kind == frontend.KindInclusionDirective {
		for _, lex := range m.lexemesIn(node.Extent) {
			delete(m.entries, lex.Offset)
		}
		m.set(node, frontend.Lexeme{
			Offset: node.Extent.Start,
			Length: node.Extent.End - node.Extent.Start,
			Kind:   frontend.LexPunctuation,
		})
		return
	}

	tokens := m.lexemesIn(node.Extent)

	// Macro instantiations cover the entire call including arguments;
	// only the macro name is marked.
	if node.Kind == frontend.KindMacroInstantiation && len(tokens) > 1 {
		tokens = tokens[:1]
	}

	idx := 0
	offset := node.Extent.Start

	for _, child := range node.Children {
		childStart := child.Extent.Start

		for offset < childStart && idx < len(tokens) {
			tok := tokens[idx]
			if tok.Offset < offset {
				idx++
				continue
			}
			m.set(node, tok)
			offset = tok.End()
			idx++
		}

		m.visit(child)

		offset = child.Extent.End
	}

	for _, tok := range tokens[idx:] {
		if tok.Offset < offset {
			continue
		}
		m.set(node, tok)
		offset = tok.End()
	}
}

// emit classifies every claimed lexeme and attaches cross-reference
// links for out-of-file definitions.
func (m *merger) emit(tu *frontend.TranslationUnit) *token.File {
	tokens := token.NewMap()

	for _, e := range m.entries {
		def := e.node.Definition
		if def == nil {
			def = e.node
		}

		t := &token.Token{
			Offset: e.lex.Offset,
			Length: e.lex.Length,
			Type:   Classify(e.lex.Kind, e.node.Kind, def.Kind),
		}

		if e.lex.Kind != frontend.LexPunctuation || e.node.Kind == frontend.KindInclusionDirective {
			t.Link = linkTo(m.file, def)
		}

		tokens.Set(t)
	}

	return &token.File{
		Filename: tu.Filename,
		Code:     tu.Code,
		Tokens:   tokens.Tokens(),
	}
}

// linkTo builds the cross-reference for a definition that lives in a
// different file than the one being processed. Same-file definitions
// produce no link.
func linkTo(file string, def *frontend.Node) *token.Link {
	if def == nil || def.Loc.File == "" || def.Loc.File == file {
		return nil
	}

	return &token.Link{
		File:           def.Loc.File,
		Line:           def.Loc.Line,
		Column:         def.Loc.Column,
		Name:           def.Spelling,
		QualifiedName:  QualifiedName(def),
		ParameterTypes: def.ParameterTypes,
	}
}
