package token

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_JSONRoundTrip(t *testing.T) {
	tok := &Token{
		Offset: 4,
		Length: 3,
		Type:   Variable,
		Link: &Link{
			File:          "/usr/include/foo.h",
			Line:          12,
			Column:        5,
			Name:          "foo",
			QualifiedName: "ns::foo",
		},
	}

	data, err := json.Marshal(tok)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"variable"`)

	var got Token
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, tok.Type, got.Type)
	assert.Equal(t, tok.Link.QualifiedName, got.Link.QualifiedName)
}

func TestType_UnmarshalUnknown(t *testing.T) {
	var typ Type
	err := typ.UnmarshalJSON([]byte(`"no_such_type"`))
	assert.Error(t, err)
}

func TestLink_IsHeader(t *testing.T) {
	assert.True(t, (&Link{Name: HeaderMarker, File: "/usr/include/vector"}).IsHeader())
	assert.False(t, (&Link{Name: "vector", File: "/usr/include/vector"}).IsHeader())
}

func testFile() *File {
	//          0123456789012345
	code := []byte("int x = 42;\n")
	return &File{
		Filename: "test.cpp",
		Code:     code,
		Tokens: []*Token{
			{Offset: 0, Length: 3, Type: Keyword},
			{Offset: 4, Length: 1, Type: Variable},
			{Offset: 6, Length: 1, Type: Operator},
			{Offset: 8, Length: 2, Type: NumberLiteral},
			{Offset: 10, Length: 1, Type: Punctuation},
		},
	}
}

func TestFile_Fragments(t *testing.T) {
	f := testFile()

	frags := f.Fragments()

	var texts []string
	for _, frag := range frags {
		texts = append(texts, frag.Text)
	}
	assert.Equal(t, []string{"int", " ", "x", " ", "=", " ", "42", ";", "\n"}, texts)

	// Gap fragments carry no token.
	assert.Nil(t, frags[1].Token)
	assert.NotNil(t, frags[0].Token)
	assert.Equal(t, Keyword, frags[0].Token.Type)
}

func TestFile_TokenAt(t *testing.T) {
	f := testFile()

	tok := f.TokenAt(8)
	require.NotNil(t, tok)
	assert.Equal(t, NumberLiteral, tok.Type)

	assert.Nil(t, f.TokenAt(7))
	assert.Nil(t, f.TokenAt(100))
}

func TestFile_Validate(t *testing.T) {
	require.NoError(t, testFile().Validate())

	t.Run("overlap", func(t *testing.T) {
		f := testFile()
		f.Tokens[1].Offset = 2
		assert.Error(t, f.Validate())
	})

	t.Run("out of bounds", func(t *testing.T) {
		f := testFile()
		f.Tokens[4].Length = 50
		assert.Error(t, f.Validate())
	})

	t.Run("non-whitespace gap", func(t *testing.T) {
		f := testFile()
		f.Tokens = append(f.Tokens[:2], f.Tokens[3:]...)
		assert.Error(t, f.Validate())
	})
}

func TestMap_OrderedTokens(t *testing.T) {
	m := NewMap()
	m.Set(&Token{Offset: 10, Length: 1})
	m.Set(&Token{Offset: 0, Length: 1})
	m.Set(&Token{Offset: 5, Length: 1})

	toks := m.Tokens()
	require.Len(t, toks, 3)
	assert.Equal(t, 0, toks[0].Offset)
	assert.Equal(t, 5, toks[1].Offset)
	assert.Equal(t, 10, toks[2].Offset)

	// Re-setting the same offset replaces, not appends.
	m.Set(&Token{Offset: 5, Length: 2})
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 2, m.Get(5).Length)
}
