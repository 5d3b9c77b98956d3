package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/cxref/pkg/token"
)

func singleTokenFile(code string, typ token.Type, link *token.Link) *token.File {
	return &token.File{
		Filename: "test.cpp",
		Code:     []byte(code),
		Tokens: []*token.Token{
			{Offset: 0, Length: len(code), Type: typ, Link: link},
		},
	}
}

func TestSplitIncludes(t *testing.T) {
	link := &token.Link{File: "/usr/include/c++/vector", Name: token.HeaderMarker}
	f := singleTokenFile("#include <vector>", token.Preprocessor, link)

	require.NoError(t, SplitIncludes(f))
	require.Len(t, f.Tokens, 2)

	stmt, file := f.Tokens[0], f.Tokens[1]
	assert.Equal(t, "#include", f.Text(stmt))
	assert.Equal(t, token.Preprocessor, stmt.Type)
	assert.Nil(t, stmt.Link)

	assert.Equal(t, "<vector>", f.Text(file))
	assert.Equal(t, token.PreprocessorFile, file.Type)
	assert.Same(t, link, file.Link)

	require.NoError(t, f.Validate())
}

func TestSplitIncludes_QuotedAndSpaced(t *testing.T) {
	f := singleTokenFile(`#  include "mylib.h"`, token.Preprocessor, nil)

	require.NoError(t, SplitIncludes(f))
	require.Len(t, f.Tokens, 2)
	assert.Equal(t, "#  include", f.Text(f.Tokens[0]))
	assert.Equal(t, `"mylib.h"`, f.Text(f.Tokens[1]))
}

func TestSplitIncludes_MacroNamePassedThrough(t *testing.T) {
	// Macro instantiation names are preprocessor tokens too; they do not
	// start with '#' and survive unchanged.
	f := singleTokenFile("MAX", token.Preprocessor, nil)

	require.NoError(t, SplitIncludes(f))
	require.Len(t, f.Tokens, 1)
	assert.Equal(t, token.Preprocessor, f.Tokens[0].Type)
}

func TestSplitIncludes_MalformedDirectiveFatal(t *testing.T) {
	f := singleTokenFile("#include", token.Preprocessor, nil)
	assert.Error(t, SplitIncludes(f))
}

func TestSplitIncludes_Idempotent(t *testing.T) {
	f := singleTokenFile("#include <vector>", token.Preprocessor, nil)

	require.NoError(t, SplitIncludes(f))
	require.NoError(t, SplitIncludes(f))

	require.Len(t, f.Tokens, 2)
	assert.Equal(t, "#include", f.Text(f.Tokens[0]))
	assert.Equal(t, token.Preprocessor, f.Tokens[0].Type)
	assert.Equal(t, "<vector>", f.Text(f.Tokens[1]))
	assert.Equal(t, token.PreprocessorFile, f.Tokens[1].Type)
	require.NoError(t, f.Validate())
}

func TestDecomposeStrings_Escapes(t *testing.T) {
	f := singleTokenFile(`"newline: \n"`, token.StringLiteral, nil)

	DecomposeStrings(f)

	require.Len(t, f.Tokens, 3)
	assert.Equal(t, `"newline: `, f.Text(f.Tokens[0]))
	assert.Equal(t, token.StringLiteral, f.Tokens[0].Type)
	assert.Equal(t, `\n`, f.Text(f.Tokens[1]))
	assert.Equal(t, token.StringLiteralEscape, f.Tokens[1].Type)
	assert.Equal(t, `"`, f.Text(f.Tokens[2]))
	assert.Equal(t, token.StringLiteral, f.Tokens[2].Type)

	require.NoError(t, f.Validate())
}

func TestDecomposeStrings_EscapeClasses(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		escape string
	}{
		{name: "octal", code: `"\101"`, escape: `\101`},
		{name: "hex", code: `"\x41"`, escape: `\x41`},
		{name: "unicode short", code: `"\u0041"`, escape: `\u0041`},
		{name: "unicode long", code: `"\U00000041"`, escape: `\U00000041`},
		{name: "named", code: `"\N{LATIN SMALL LETTER A}"`, escape: `\N{LATIN SMALL LETTER A}`},
		{name: "braced hex", code: `"\x{41}"`, escape: `\x{41}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := singleTokenFile(tt.code, token.StringLiteral, nil)
			DecomposeStrings(f)

			var got string
			for _, tok := range f.Tokens {
				if tok.Type == token.StringLiteralEscape {
					got = f.Text(tok)
				}
			}
			assert.Equal(t, tt.escape, got)
		})
	}
}

func TestDecomposeStrings_Interpolation(t *testing.T) {
	f := singleTokenFile(`"{} {a}"`, token.StringLiteral, nil)

	DecomposeStrings(f)

	var parts []string
	var types []token.Type
	for _, tok := range f.Tokens {
		parts = append(parts, f.Text(tok))
		types = append(types, tok.Type)
	}

	assert.Equal(t, []string{`"`, `{}`, ` `, `{a}`, `"`}, parts)
	assert.Equal(t, []token.Type{
		token.StringLiteral,
		token.StringLiteralInterpolation,
		token.StringLiteral,
		token.StringLiteralInterpolation,
		token.StringLiteral,
	}, types)
}

func TestDecomposeStrings_DoubledBraceEscapesOpening(t *testing.T) {
	// "{{" escapes the opening brace, so the first '{' starts no
	// fragment; the run opened by the second brace still does.
	f := singleTokenFile(`"{{literal}}"`, token.StringLiteral, nil)

	DecomposeStrings(f)

	var parts []string
	var types []token.Type
	for _, tok := range f.Tokens {
		parts = append(parts, f.Text(tok))
		types = append(types, tok.Type)
	}

	assert.Equal(t, []string{`"{`, `{literal}`, `}"`}, parts)
	assert.Equal(t, []token.Type{
		token.StringLiteral,
		token.StringLiteralInterpolation,
		token.StringLiteral,
	}, types)
}

func TestDecomposeStrings_RawStringUntouched(t *testing.T) {
	f := singleTokenFile(`R"(\n{a})"`, token.StringLiteral, nil)

	DecomposeStrings(f)

	require.Len(t, f.Tokens, 1)
	assert.Equal(t, token.StringLiteral, f.Tokens[0].Type)
}

func TestDecomposeStrings_CharLiteralUntouched(t *testing.T) {
	f := singleTokenFile(`'\n'`, token.OtherLiteral, nil)

	DecomposeStrings(f)

	require.Len(t, f.Tokens, 1)
}

func TestDecomposeStrings_PlainStringKeepsLink(t *testing.T) {
	link := &token.Link{File: "other.h", Name: "s"}
	f := singleTokenFile(`"plain"`, token.StringLiteral, link)

	DecomposeStrings(f)

	require.Len(t, f.Tokens, 1)
	assert.Same(t, link, f.Tokens[0].Link)
}

func TestDecomposeStrings_Idempotent(t *testing.T) {
	f := singleTokenFile(`"a: \t {b}"`, token.StringLiteral, nil)

	DecomposeStrings(f)
	first := len(f.Tokens)
	DecomposeStrings(f)

	assert.Equal(t, first, len(f.Tokens))
	require.NoError(t, f.Validate())
}
