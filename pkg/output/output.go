/*
Package output serializes classified token streams: the JSON record
list, and HTML with one span per token whose class follows the Pygments
short-name convention.
*/
package output

import (
	"encoding/json"
	"fmt"
	"html"
	"io"

	"github.com/walteh/cxref/pkg/token"
	"gitlab.com/tozd/go/errors"
)

// cssClasses maps token types to Pygments short names, so the output
// drops into existing highlighter stylesheets unchanged.
var cssClasses = map[token.Type]string{
	token.Keyword:                    "k",
	token.Name:                       "n",
	token.StringLiteral:              "s",
	token.StringLiteralEscape:        "se",
	token.StringLiteralInterpolation: "si",
	token.NumberLiteral:              "m",
	token.OtherLiteral:               "l",
	token.Operator:                   "o",
	token.Punctuation:                "p",
	token.Comment:                    "c",
	token.Preprocessor:               "cp",
	token.PreprocessorFile:           "cpf",
	token.Variable:                   "nv",
}

// DocBaseURL prefixes documentation references in rendered links.
const DocBaseURL = "https://en.cppreference.com/w/"

// WriteJSON writes the token record list.
func WriteJSON(w io.Writer, f *token.File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.Tokens); err != nil {
		return errors.Errorf("encoding token stream: %w", err)
	}
	return nil
}

// WriteHTMLEmbed writes the token stream as a <pre> block suitable for
// embedding. Linked tokens become anchors: documentation references
// point at the documentation site, source references at the declaring
// file and line.
func WriteHTMLEmbed(w io.Writer, f *token.File) error {
	if _, err := io.WriteString(w, `<pre class="m-code">`); err != nil {
		return errors.Errorf("writing html: %w", err)
	}

	for _, frag := range f.Fragments() {
		if frag.Token == nil {
			if _, err := io.WriteString(w, html.EscapeString(frag.Text)); err != nil {
				return errors.Errorf("writing html: %w", err)
			}
			continue
		}

		if err := writeSpan(w, frag); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, "</pre>"); err != nil {
		return errors.Errorf("writing html: %w", err)
	}
	return nil
}

func writeSpan(w io.Writer, frag token.Fragment) error {
	t := frag.Token

	if css, ok := cssClasses[t.Type]; ok {
		if _, err := fmt.Fprintf(w, `<span class="%s">`, css); err != nil {
			return errors.Errorf("writing html: %w", err)
		}
		defer io.WriteString(w, "</span>")
	}

	if t.Link != nil {
		href := linkHref(t.Link)
		if _, err := fmt.Fprintf(w, `<a href="%s">`, html.EscapeString(href)); err != nil {
			return errors.Errorf("writing html: %w", err)
		}
		defer io.WriteString(w, "</a>")
	}

	if _, err := io.WriteString(w, html.EscapeString(frag.Text)); err != nil {
		return errors.Errorf("writing html: %w", err)
	}
	return nil
}

func linkHref(l *token.Link) string {
	if l.DocRef != "" {
		return DocBaseURL + l.DocRef
	}
	if l.Line != 0 {
		return fmt.Sprintf("%s#L%d", l.File, l.Line)
	}
	return l.File
}

const htmlHeader = `<!doctype html>
<html>
    <head>
        <meta charset="UTF-8" />
        <link rel="stylesheet" href="https://fonts.googleapis.com/css?family=Source+Sans+Pro:400,400i,600,600i%7CSource+Code+Pro:400,400i,600&amp;subset=latin-ext" />
        <link rel="stylesheet" href="https://static.magnum.graphics/m-dark.compiled.css" />
        <link rel="stylesheet" href="https://static.magnum.graphics/m-dark.documentation.compiled.css" />
        <style>
            .m-code a {
                color: inherit;
                text-decoration: none;
            }
            .m-code a:hover {
                text-decoration: underline;
            }
        </style>
    </head>
    <body>
`

// WriteHTML writes a standalone page around the embedded block.
func WriteHTML(w io.Writer, f *token.File) error {
	if _, err := io.WriteString(w, htmlHeader); err != nil {
		return errors.Errorf("writing html: %w", err)
	}
	if err := WriteHTMLEmbed(w, f); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\n    </body>\n</html>\n"); err != nil {
		return errors.Errorf("writing html: %w", err)
	}
	return nil
}
