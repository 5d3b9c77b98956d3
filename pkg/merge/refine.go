package merge

import (
	"bytes"
	"regexp"

	"github.com/walteh/cxref/pkg/token"
	"gitlab.com/tozd/go/errors"
)

var (
	includeRegex   = regexp.MustCompile(`^(#\s*include)\s*([<"].*[">])`)
	directiveRegex = regexp.MustCompile(`^#\s*include$`)
)

// SplitIncludes replaces every token spanning an inclusion directive
// with a directive token and a file-spec token. The frontend guarantees
// the directive text is well formed; a mismatch means the merge
// assumptions are broken and is an error, not recoverable input.
//
// The pass is idempotent: a directive token already followed by its
// file-spec token was split on a previous run and is passed through. A
// bare directive with no file-spec token after it is still an error.
func SplitIncludes(f *token.File) error {
	out := make([]*token.Token, 0, len(f.Tokens))

	for i, tok := range f.Tokens {
		if tok.Type != token.Preprocessor {
			out = append(out, tok)
			continue
		}

		text := f.Code[tok.Offset:tok.End()]
		if len(text) == 0 || text[0] != '#' {
			// Macro instantiation names are preprocessor tokens too.
			out = append(out, tok)
			continue
		}

		m := includeRegex.FindSubmatchIndex(text)
		if m == nil {
			if directiveRegex.Match(text) && i+1 < len(f.Tokens) && f.Tokens[i+1].Type == token.PreprocessorFile {
				out = append(out, tok)
				continue
			}
			return errors.Errorf("could not parse include statement %q", text)
		}

		out = append(out,
			&token.Token{
				Offset: tok.Offset + m[2],
				Length: m[3] - m[2],
				Type:   token.Preprocessor,
			},
			&token.Token{
				Offset: tok.Offset + m[4],
				Length: m[5] - m[4],
				Type:   token.PreprocessorFile,
				Link:   tok.Link,
			},
		)
	}

	f.Tokens = out
	return nil
}

// Escape classes: named, octal, hex, unicode short/long/named. Same
// classes the preprocessor accepts in non-raw literals.
var escapeRegex = regexp.MustCompile(`\\(['"?\\abfnrtv]|[0-7]{3}|o\{[0-7]+\}|x[0-9a-fA-F]+|x\{[0-9a-fA-F]+\}|u[0-9a-fA-F]{4}|u\{[0-9a-fA-F]+\}|U[0-9a-fA-F]{8}|N\{[^}]+\})`)

// Interpolation fragments are "{...}" runs whose opening brace is not
// doubled. "{{" is the literal escape for '{' in std::format strings.
var interpolationRegex = regexp.MustCompile(`\{\}|\{[^{].*?\}`)

// DecomposeStrings splits string literal tokens into literal text,
// escape-sequence, and interpolation sub-tokens covering the same byte
// range with no gaps. Raw strings (prefix containing 'R') and literals
// without a quote are left alone. Each sub-pass is idempotent.
func DecomposeStrings(f *token.File) {
	f.Tokens = splitLiterals(f, f.Tokens, escapeRegex, token.StringLiteralEscape)
	f.Tokens = splitLiterals(f, f.Tokens, interpolationRegex, token.StringLiteralInterpolation)
}

func splitLiterals(f *token.File, tokens []*token.Token, re *regexp.Regexp, sub token.Type) []*token.Token {
	out := make([]*token.Token, 0, len(tokens))

	for _, tok := range tokens {
		if tok.Type != token.StringLiteral {
			out = append(out, tok)
			continue
		}

		text := f.Code[tok.Offset:tok.End()]

		quote := bytes.IndexByte(text, '"')
		if quote < 0 {
			out = append(out, tok)
			continue
		}
		if bytes.ContainsRune(text[:quote], 'R') {
			out = append(out, tok)
			continue
		}

		matches := re.FindAllIndex(text, -1)
		if len(matches) == 0 {
			out = append(out, tok)
			continue
		}

		insert := func(begin, end int, typ token.Type) {
			out = append(out, &token.Token{
				Offset: tok.Offset + begin,
				Length: end - begin,
				Type:   typ,
			})
		}

		pos := 0
		for _, m := range matches {
			if m[0] > pos {
				insert(pos, m[0], token.StringLiteral)
			}
			insert(m[0], m[1], sub)
			pos = m[1]
		}
		if pos < len(text) {
			insert(pos, len(text), token.StringLiteral)
		}
	}

	return out
}
