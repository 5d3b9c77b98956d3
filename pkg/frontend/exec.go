package frontend

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// Tool is a Frontend backed by two subprocesses: the dedicated frontend
// binary for the lexical/semantic views and the plain compiler driver
// for the full-tree AST export.
type Tool struct {
	// Path is the frontend binary. Defaults to "cxref-frontend" on PATH.
	Path string

	// Compiler is the compiler driver used for the AST export.
	// Defaults to "clang++".
	Compiler string

	// BuildDir holds compile_commands.json, passed through as -p.
	BuildDir string
}

func (t *Tool) path() string {
	if t.Path != "" {
		return t.Path
	}
	return "cxref-frontend"
}

func (t *Tool) compiler() string {
	if t.Compiler != "" {
		return t.Compiler
	}
	return "clang++"
}

// Parse implements Frontend by invoking the frontend binary and
// decoding its JSON output.
func (t *Tool) Parse(ctx context.Context, filename string, args []string) (*TranslationUnit, error) {
	cmdArgs := []string{"--json-out"}
	if t.BuildDir != "" {
		cmdArgs = append(cmdArgs, "-p", t.BuildDir)
	}
	cmdArgs = append(cmdArgs, filename)
	cmdArgs = append(cmdArgs, args...)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.path(), cmdArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, errors.Errorf("frontend failed on %s: %w: %s", filename, err, stderr.String())
	}

	tu, err := DecodeTranslationUnit(stdout.Bytes())
	if err != nil {
		return nil, errors.Errorf("decoding frontend output for %s: %w", filename, err)
	}

	code, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Errorf("reading source %s: %w", filename, err)
	}
	tu.Code = code

	return tu, nil
}

// ExportAST implements Frontend by asking the compiler driver for a
// JSON AST dump of the same compilation.
func (t *Tool) ExportAST(ctx context.Context, filename string, args []string) ([]byte, error) {
	cmdArgs := []string{"-fsyntax-only", "-Xclang", "-ast-dump=json"}
	cmdArgs = append(cmdArgs, args...)
	cmdArgs = append(cmdArgs, filename)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.compiler(), cmdArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// The dump is usable even when the compile emitted diagnostics;
		// the parse step is the authority on fatal errors.
		zerolog.Ctx(ctx).Debug().Err(err).Str("file", filename).Msg("ast export exited non-zero")
	}
	if stdout.Len() == 0 {
		return nil, errors.Errorf("ast export produced no output for %s: %s", filename, stderr.String())
	}

	return stdout.Bytes(), nil
}

// Wire types for the frontend binary's JSON output. Nodes arrive as a
// flat array with index references so that definition and parent links
// survive serialization.

type wireUnit struct {
	File        string           `json:"file"`
	Lexemes     []wireLexeme     `json:"lexemes"`
	Nodes       []wireNode       `json:"nodes"`
	Root        int              `json:"root"`
	Diagnostics []wireDiagnostic `json:"diagnostics"`
}

type wireLexeme struct {
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	Kind   string `json:"kind"`
}

type wireNode struct {
	Kind           string   `json:"kind"`
	Start          int      `json:"start"`
	End            int      `json:"end"`
	File           string   `json:"file"`
	Line           int      `json:"line"`
	Column         int      `json:"column"`
	Spelling       string   `json:"spelling"`
	DisplayName    string   `json:"display_name"`
	Children       []int    `json:"children"`
	Definition     *int     `json:"definition"`
	Parent         *int     `json:"parent"`
	ParameterTypes []string `json:"parameter_types"`
}

type wireDiagnostic struct {
	Severity string `json:"severity"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

var lexKinds = map[string]LexKind{
	"comment":        LexComment,
	"keyword":        LexKeyword,
	"identifier":     LexIdentifier,
	"string_literal": LexStringLiteral,
	"number_literal": LexNumberLiteral,
	"other_literal":  LexOtherLiteral,
	"punctuation":    LexPunctuation,
}

var nodeKinds = map[string]NodeKind{
	"translation_unit":    KindTranslationUnit,
	"namespace":           KindNamespace,
	"struct_decl":         KindStructDecl,
	"class_decl":          KindClassDecl,
	"class_template":      KindClassTemplate,
	"var_decl":            KindVarDecl,
	"parm_decl":           KindParmDecl,
	"function_decl":       KindFunctionDecl,
	"typedef_decl":        KindTypedefDecl,
	"macro_instantiation": KindMacroInstantiation,
	"inclusion_directive": KindInclusionDirective,
}

var severities = map[string]DiagnosticSeverity{
	"ignored": SeverityIgnored,
	"note":    SeverityNote,
	"warning": SeverityWarning,
	"error":   SeverityError,
	"fatal":   SeverityFatal,
}

// DecodeTranslationUnit rebuilds a TranslationUnit from the frontend
// binary's wire format.
func DecodeTranslationUnit(data []byte) (*TranslationUnit, error) {
	var wire wireUnit
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Errorf("unmarshaling translation unit: %w", err)
	}

	nodes := make([]*Node, len(wire.Nodes))
	for i := range wire.Nodes {
		w := &wire.Nodes[i]
		nodes[i] = &Node{
			Kind:           nodeKinds[w.Kind],
			Extent:         Extent{Start: w.Start, End: w.End},
			File:           w.File,
			Loc:            Location{File: w.File, Line: w.Line, Column: w.Column},
			Spelling:       w.Spelling,
			DisplayName:    w.DisplayName,
			ParameterTypes: w.ParameterTypes,
		}
	}
	for i := range wire.Nodes {
		w := &wire.Nodes[i]
		for _, c := range w.Children {
			if c < 0 || c >= len(nodes) {
				return nil, errors.Errorf("node %d references child %d out of range", i, c)
			}
			nodes[i].Children = append(nodes[i].Children, nodes[c])
		}
		if w.Definition != nil && *w.Definition >= 0 && *w.Definition < len(nodes) {
			nodes[i].Definition = nodes[*w.Definition]
		}
		if w.Parent != nil && *w.Parent >= 0 && *w.Parent < len(nodes) {
			nodes[i].SemanticParent = nodes[*w.Parent]
		}
	}

	if wire.Root < 0 || wire.Root >= len(nodes) {
		return nil, errors.Errorf("root index %d out of range", wire.Root)
	}

	tu := &TranslationUnit{
		Filename: wire.File,
		Root:     nodes[wire.Root],
	}
	for _, l := range wire.Lexemes {
		tu.Lexemes = append(tu.Lexemes, Lexeme{Offset: l.Offset, Length: l.Length, Kind: lexKinds[l.Kind]})
	}
	for _, d := range wire.Diagnostics {
		tu.Diagnostics = append(tu.Diagnostics, Diagnostic{
			Severity: severities[d.Severity],
			File:     d.File,
			Line:     d.Line,
			Message:  d.Message,
		})
	}

	return tu, nil
}
