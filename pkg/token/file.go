package token

import (
	"unicode"

	"gitlab.com/tozd/go/errors"
)

// File is one source file together with its classified token stream.
type File struct {
	Filename string   `json:"file"`
	Code     []byte   `json:"-"`
	Tokens   []*Token `json:"tokens"`
}

// Fragment is a run of source text paired with the token covering it.
// Gap fragments (whitespace between tokens) carry a nil token.
type Fragment struct {
	Text  string
	Token *Token
}

// Text returns the source bytes covered by the token.
func (f *File) Text(t *Token) string {
	return string(f.Code[t.Offset:t.End()])
}

// TokenAt returns the token starting at the given byte offset, or nil.
func (f *File) TokenAt(offset int) *Token {
	for _, t := range f.Tokens {
		if t.Offset == offset {
			return t
		}
		if t.Offset > offset {
			break
		}
	}
	return nil
}

// Fragments iterates the tokenized code in source order, yielding each
// token's text and, between tokens, the gap text with a nil token.
//
//	for _, frag := range file.Fragments() {
//	    if frag.Token == nil {
//	        continue // whitespace
//	    }
//	    ...
//	}
func (f *File) Fragments() []Fragment {
	frags := make([]Fragment, 0, len(f.Tokens)*2)

	offset := 0
	for _, t := range f.Tokens {
		if t.Offset > offset {
			frags = append(frags, Fragment{Text: string(f.Code[offset:t.Offset])})
		}
		frags = append(frags, Fragment{Text: f.Text(t), Token: t})
		offset = t.End()
	}
	if offset < len(f.Code) {
		frags = append(frags, Fragment{Text: string(f.Code[offset:])})
	}

	return frags
}

// Validate checks the token stream invariants: tokens are ordered by
// offset, pairwise non-overlapping, within the source buffer, and every
// gap between them is pure whitespace.
func (f *File) Validate() error {
	offset := 0
	for _, t := range f.Tokens {
		if t.Length < 0 || t.Offset < 0 || t.End() > len(f.Code) {
			return errors.Errorf("token %d+%d outside source buffer of %d bytes", t.Offset, t.Length, len(f.Code))
		}
		if t.Offset < offset {
			return errors.Errorf("token at offset %d overlaps previous token ending at %d", t.Offset, offset)
		}
		if err := checkWhitespace(f.Code[offset:t.Offset]); err != nil {
			return errors.Errorf("gap before offset %d: %w", t.Offset, err)
		}
		offset = t.End()
	}
	if err := checkWhitespace(f.Code[offset:]); err != nil {
		return errors.Errorf("trailing gap after offset %d: %w", offset, err)
	}
	return nil
}

func checkWhitespace(gap []byte) error {
	for _, b := range gap {
		if !unicode.IsSpace(rune(b)) {
			return errors.Errorf("non-whitespace byte %q in token gap", b)
		}
	}
	return nil
}
