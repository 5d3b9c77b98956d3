/*
Package frontend defines the contract with the external compiler
frontend.

The pipeline consumes three independently-produced views of one file:

	Lexemes        flat, offset-ordered lexical tokens
	Node tree      nested semantic nodes with byte extents
	AST export     serialized full-tree dump (see pkg/astdump)

The first two arrive together in a TranslationUnit. The export is
fetched separately and only used to resolve member references.
*/
package frontend

import "context"

// LexKind is the lexical kind of a raw token, before any semantic
// classification.
type LexKind int

const (
	LexComment LexKind = iota + 1
	LexKeyword
	LexIdentifier
	LexStringLiteral
	LexNumberLiteral
	LexOtherLiteral
	LexPunctuation
)

// NodeKind is the structural kind of a semantic node. Only the kinds
// the classifier distinguishes are enumerated; everything else is
// KindOther.
type NodeKind int

const (
	KindOther NodeKind = iota
	KindTranslationUnit
	KindNamespace
	KindStructDecl
	KindClassDecl
	KindClassTemplate
	KindVarDecl
	KindParmDecl
	KindFunctionDecl
	KindTypedefDecl
	KindMacroInstantiation
	KindInclusionDirective
)

// Extent is a half-open byte range [Start, End) into the source buffer.
type Extent struct {
	Start int
	End   int
}

// Location is a file position as reported by the frontend. Line and
// Column are one-based.
type Location struct {
	File   string
	Line   int
	Column int
}

// Lexeme is one raw lexical token.
type Lexeme struct {
	Offset int
	Length int
	Kind   LexKind
}

func (l Lexeme) End() int {
	return l.Offset + l.Length
}

// Node is a semantic node of the parsed program.
//
// Definition points at the resolved definition node when the frontend
// could resolve one; it may live in a different file. For inclusion
// directives the definition stands for the included file itself: its
// Loc.File is the resolved path and its Spelling is the literal
// "<file>". SemanticParent links the chain of enclosing scopes used to
// derive qualified names. ParameterTypes is set on callable
// declarations only.
type Node struct {
	Kind   NodeKind
	Extent Extent

	// File is the file containing the node's extent. Nodes from other
	// files are discarded before classification.
	File string

	// Loc is the declaration location (for definition nodes).
	Loc Location

	// Spelling is the bare name; DisplayName includes the signature
	// where the frontend provides one.
	Spelling    string
	DisplayName string

	Children       []*Node
	Definition     *Node
	SemanticParent *Node

	ParameterTypes []string
}

// DiagnosticSeverity mirrors the frontend's diagnostic levels.
type DiagnosticSeverity int

const (
	SeverityIgnored DiagnosticSeverity = iota
	SeverityNote
	SeverityWarning
	SeverityError
	SeverityFatal
)

// Diagnostic is one frontend diagnostic. Anything above warning aborts
// processing of the file.
type Diagnostic struct {
	Severity DiagnosticSeverity
	File     string
	Line     int
	Message  string
}

// TranslationUnit is the frontend's view of one parsed file.
type TranslationUnit struct {
	Filename    string
	Code        []byte
	Lexemes     []Lexeme
	Root        *Node
	Diagnostics []Diagnostic
}

// Errors returns the diagnostics above warning severity.
func (tu *TranslationUnit) Errors() []Diagnostic {
	var out []Diagnostic
	for _, d := range tu.Diagnostics {
		if d.Severity > SeverityWarning {
			out = append(out, d)
		}
	}
	return out
}

// Frontend parses C++ files on behalf of the pipeline. Implementations
// wrap the external compiler tooling; the pipeline never constructs
// compiler command lines itself.
type Frontend interface {
	// Parse returns the lexical and semantic views of one file.
	Parse(ctx context.Context, filename string, args []string) (*TranslationUnit, error)

	// ExportAST returns the serialized full-tree export for the same
	// compilation, as raw JSON.
	ExportAST(ctx context.Context, filename string, args []string) ([]byte, error)
}
