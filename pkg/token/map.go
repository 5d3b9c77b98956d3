package token

import "sort"

// Map is an offset-keyed token map with at most one live token per start
// offset. It is the mutable working representation used while merging;
// File is the finished, ordered result.
type Map struct {
	byOffset map[int]*Token
}

func NewMap() *Map {
	return &Map{byOffset: make(map[int]*Token)}
}

// Get returns the token starting at offset, or nil.
func (m *Map) Get(offset int) *Token {
	return m.byOffset[offset]
}

// Set stores the token under its start offset, replacing any previous
// token there.
func (m *Map) Set(t *Token) {
	m.byOffset[t.Offset] = t
}

func (m *Map) Len() int {
	return len(m.byOffset)
}

// Tokens returns all tokens ordered by offset.
func (m *Map) Tokens() []*Token {
	offsets := make([]int, 0, len(m.byOffset))
	for o := range m.byOffset {
		offsets = append(offsets, o)
	}
	sort.Ints(offsets)

	tokens := make([]*Token, 0, len(offsets))
	for _, o := range offsets {
		tokens = append(tokens, m.byOffset[o])
	}
	return tokens
}
