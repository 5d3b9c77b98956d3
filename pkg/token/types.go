/*
Package token defines the classified token stream produced by the
highlighting pipeline.

	Source bytes              Token stream
	------------              ------------
	#include <x>       ->     preprocessor / preprocessor_file
	int main()         ->     keyword name punctuation ...
	"hi\n"             ->     string_literal + string_literal_escape

Every token is a byte range into the original source buffer. Across one
file the tokens are ordered, non-overlapping, and every gap between them
is whitespace.
*/
package token

import (
	"encoding/json"

	"gitlab.com/tozd/go/errors"
)

// Type is the lexical category of a token. The string form is the wire
// name used in JSON output.
type Type int

const (
	Whitespace Type = iota
	Keyword
	Name
	StringLiteral
	StringLiteralEscape
	StringLiteralInterpolation
	NumberLiteral
	OtherLiteral
	Operator
	Punctuation
	Comment
	Preprocessor
	PreprocessorFile
	Variable
	Other
)

var typeNames = map[Type]string{
	Whitespace:                 "whitespace",
	Keyword:                    "keyword",
	Name:                       "name",
	StringLiteral:              "string_literal",
	StringLiteralEscape:        "string_literal_escape",
	StringLiteralInterpolation: "string_literal_interpolation",
	NumberLiteral:              "number_literal",
	OtherLiteral:               "other_literal",
	Operator:                   "operator",
	Punctuation:                "punctuation",
	Comment:                    "comment",
	Preprocessor:               "preprocessor",
	PreprocessorFile:           "preprocessor_file",
	Variable:                   "variable",
	Other:                      "other",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "unknown"
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Type) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for typ, n := range typeNames {
		if n == name {
			*t = typ
			return nil
		}
	}
	return errors.Errorf("unknown token type %q", name)
}

// HeaderMarker is the Link.Name used for inclusion targets. A link whose
// name is the marker points at a header file, not a declaration.
const HeaderMarker = "<file>"

// Link is a cross-reference from a token to a declaration in another
// file.
//
// ParameterTypes is only set for callable entities and is what
// distinguishes one overload from another. DocRef is filled in by the
// knowledge-base matcher; its absence is normal.
type Link struct {
	File           string   `json:"file"`
	Line           int      `json:"line"`
	Column         int      `json:"column"`
	Name           string   `json:"name"`
	QualifiedName  string   `json:"qualified_name"`
	ParameterTypes []string `json:"parameter_types,omitempty"`
	DocRef         string   `json:"doc_ref,omitempty"`
}

// IsHeader reports whether the link points at an included header file.
func (l *Link) IsHeader() bool {
	return l.Name == HeaderMarker
}

// Token is a classified byte range of the source buffer.
type Token struct {
	Offset int   `json:"offset"`
	Length int   `json:"length"`
	Type   Type  `json:"type"`
	Link   *Link `json:"link,omitempty"`
}

// End returns the byte offset one past the token.
func (t *Token) End() int {
	return t.Offset + t.Length
}
