/*
Package astdump resolves member references from the compiler's
serialized full-tree export.

The export is the second, independently-produced semantic view of a
compilation. Its nodes are correlated with the primary view only
through a numeric declaration id paired with a mangled name; there is
no other shared key. Location records in the export are sparse: a node
without its own file or line inherits the most recently seen values in
traversal order. That inheritance is an artifact of the format's
compactness and is replicated here exactly; inventing a "cleaner"
semantics would misattribute references.
*/
package astdump

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/walteh/cxref/pkg/token"
	"gitlab.com/tozd/go/errors"
)

// Node is one node of the JSON AST export. Ids are "0x..." strings;
// loc/range fields are omitted wherever the producer considered them
// redundant.
type Node struct {
	ID                   string  `json:"id,omitempty"`
	Kind                 string  `json:"kind,omitempty"`
	Name                 string  `json:"name,omitempty"`
	MangledName          string  `json:"mangledName,omitempty"`
	Loc                  *Loc    `json:"loc,omitempty"`
	Range                *Range  `json:"range,omitempty"`
	ReferencedMemberDecl string  `json:"referencedMemberDecl,omitempty"`
	Inner                []*Node `json:"inner,omitempty"`
}

// Loc is a (possibly partial) source location. Pointer fields
// distinguish "absent" from zero.
type Loc struct {
	File   string `json:"file,omitempty"`
	Line   *int   `json:"line,omitempty"`
	Col    int    `json:"col,omitempty"`
	Offset *int   `json:"offset,omitempty"`
}

// Range is a begin/end location pair.
type Range struct {
	Begin Loc `json:"begin"`
	End   Loc `json:"end"`
}

// Parse decodes a serialized export.
func Parse(data []byte) (*Node, error) {
	var root Node
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, errors.Errorf("unmarshaling ast export: %w", err)
	}
	return &root, nil
}

// cursor is the mutable traversal state. Nodes lacking explicit
// location records inherit whatever an ancestor or preceding sibling
// left here.
type cursor struct {
	file       string
	line       int
	isMainFile bool
}

// declaration is an export node captured together with the traversal
// state at the moment it was seen.
type declaration struct {
	node  *Node
	state cursor
}

type resolver struct {
	mainFile string
	tokens   map[int]*token.Token
	ids      map[uint64]declaration

	resolved int
	skipped  int
}

// ResolveMembers walks the export and attaches links for member
// accesses that the primary semantic walk could not resolve. Lookups
// that fail (unknown declaration id, no token at the member's end
// offset) are skipped silently; this stage is best-effort.
func ResolveMembers(ctx context.Context, root *Node, f *token.File) {
	r := &resolver{
		mainFile: f.Filename,
		tokens:   make(map[int]*token.Token, len(f.Tokens)),
		ids:      make(map[uint64]declaration),
	}
	for _, t := range f.Tokens {
		r.tokens[t.Offset] = t
	}

	state := cursor{}
	r.traverse(root, &state)

	zerolog.Ctx(ctx).Debug().
		Str("file", f.Filename).
		Int("declarations", len(r.ids)).
		Int("resolved", r.resolved).
		Int("skipped", r.skipped).
		Msg("member reference resolution")
}

func (r *resolver) advance(loc *Loc, state *cursor) {
	if loc.File != "" {
		state.file = loc.File

		abs, err := filepath.Abs(loc.File)
		if err != nil {
			abs = loc.File
		}
		mainAbs, err := filepath.Abs(r.mainFile)
		if err != nil {
			mainAbs = r.mainFile
		}
		state.isMainFile = abs == mainAbs
	}
	if loc.Line != nil {
		state.line = *loc.Line
	}
}

func (r *resolver) traverse(node *Node, state *cursor) {
	if node.Loc != nil {
		r.advance(node.Loc, state)
	}
	if node.Range != nil {
		r.advance(&node.Range.Begin, state)
	}

	// Nodes outside the main file only feed the identity map.
	if state.isMainFile {
		r.visit(node, state)
	}

	if node.ID != "" && node.MangledName != "" {
		if id, err := strconv.ParseUint(node.ID, 0, 64); err == nil {
			r.ids[id] = declaration{node: node, state: *state}
		}
	}

	for _, child := range node.Inner {
		r.traverse(child, state)
	}
}

func (r *resolver) visit(node *Node, state *cursor) {
	if node.Kind != "MemberExpr" || node.ReferencedMemberDecl == "" {
		return
	}

	member, err := strconv.ParseUint(node.ReferencedMemberDecl, 0, 64)
	if err != nil {
		r.skipped++
		return
	}

	ref, ok := r.ids[member]
	if !ok {
		r.skipped++
		return
	}

	// The export's end offset points at the start of the member name
	// token; it must line up with a merged token boundary.
	if node.Range == nil || node.Range.End.Offset == nil {
		r.skipped++
		return
	}
	tok, ok := r.tokens[*node.Range.End.Offset]
	if !ok {
		r.skipped++
		return
	}

	file := ref.state.file
	if abs, err := filepath.Abs(file); err == nil {
		file = abs
	}

	column := 0
	if ref.node.Range != nil {
		column = ref.node.Range.Begin.Col
	}

	tok.Link = &token.Link{
		File:          file,
		Line:          ref.state.line,
		Column:        column,
		Name:          ref.node.Name,
		QualifiedName: ref.node.Name,
	}
	r.resolved++
}
