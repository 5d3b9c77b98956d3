package kb

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/cxref/pkg/token"
	"gitlab.com/tozd/go/errors"
)

func testBase() *KnowledgeBase {
	base := New()
	base.Symbols["std::vector"] = "cpp/container/vector"
	base.Symbols["a::x"] = "page/x"
	base.Overloads["a::f"] = []Overload{
		{ParameterTypes: []string{"int"}, DocRef: "page/f-int"},
		{ParameterTypes: []string{"int", "char"}, DocRef: "page/f-int-char"},
		{ParameterTypes: []string{"int"}, DocRef: "page/f-int-dup"},
	}
	base.Headers["/usr/include/c++/vector"] = "cpp/header/vector"
	return base
}

func TestResolve_Symbols(t *testing.T) {
	base := testBase()

	ref, ok := base.Resolve(&token.Link{Name: "x", QualifiedName: "a::x"})
	require.True(t, ok)
	assert.Equal(t, "page/x", ref)

	_, ok = base.Resolve(&token.Link{Name: "y", QualifiedName: "a::y"})
	assert.False(t, ok)
}

func TestResolve_Overloads(t *testing.T) {
	base := testBase()

	tests := []struct {
		name   string
		link   *token.Link
		want   string
		wantOK bool
	}{
		{
			name:   "exact single parameter",
			link:   &token.Link{QualifiedName: "a::f", ParameterTypes: []string{"int"}},
			want:   "page/f-int",
			wantOK: true,
		},
		{
			name:   "exact two parameters",
			link:   &token.Link{QualifiedName: "a::f", ParameterTypes: []string{"int", "char"}},
			want:   "page/f-int-char",
			wantOK: true,
		},
		{
			name:   "order matters",
			link:   &token.Link{QualifiedName: "a::f", ParameterTypes: []string{"char", "int"}},
			wantOK: false,
		},
		{
			name:   "no partial match",
			link:   &token.Link{QualifiedName: "a::f", ParameterTypes: []string{"int", "char", "bool"}},
			wantOK: false,
		},
		{
			name:   "nil parameter types never match overloads",
			link:   &token.Link{QualifiedName: "a::f"},
			wantOK: false,
		},
		{
			name:   "empty parameter list is a real signature",
			link:   &token.Link{QualifiedName: "a::f", ParameterTypes: []string{}},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := base.Resolve(tt.link)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, ref)
			}
		})
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	base := testBase()

	ref, ok := base.Resolve(&token.Link{QualifiedName: "a::f", ParameterTypes: []string{"int"}})
	require.True(t, ok)
	assert.Equal(t, "page/f-int", ref)
}

func TestResolve_Headers(t *testing.T) {
	base := testBase()

	ref, ok := base.Resolve(&token.Link{
		Name: token.HeaderMarker,
		File: "/usr/include/c++/vector",
	})
	require.True(t, ok)
	assert.Equal(t, "cpp/header/vector", ref)

	// Header links never fall through to the symbol tables.
	_, ok = base.Resolve(&token.Link{Name: token.HeaderMarker, File: "/nowhere"})
	assert.False(t, ok)
}

func TestAnnotate(t *testing.T) {
	base := testBase()

	f := &token.File{
		Filename: "main.cpp",
		Tokens: []*token.Token{
			{Offset: 0, Length: 1, Type: token.Name, Link: &token.Link{QualifiedName: "a::x"}},
			{Offset: 2, Length: 1, Type: token.Name, Link: &token.Link{QualifiedName: "a::unknown"}},
			{Offset: 4, Length: 1, Type: token.Punctuation},
		},
	}

	base.Annotate(f)

	assert.Equal(t, "page/x", f.Tokens[0].Link.DocRef)
	assert.Empty(t, f.Tokens[1].Link.DocRef)
	assert.Nil(t, f.Tokens[2].Link)
}

func TestLoadSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := testBase()

	require.NoError(t, base.Save(fs, "kb.json"))

	got, err := Load(fs, "kb.json")
	require.NoError(t, err)
	assert.Equal(t, base.Symbols, got.Symbols)
	assert.Equal(t, base.Overloads, got.Overloads)
	assert.Equal(t, base.Headers, got.Headers)

	// The temp file does not survive a successful save.
	exists, err := afero.Exists(fs, "kb.json.tmp")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLoad_Absent(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, "kb.json")
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestLoad_Corrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "kb.json", []byte("{broken"), 0o644))

	_, err := Load(fs, "kb.json")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotBuilt)
}

func TestLoadOrBuild(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	builds := 0
	build := func(ctx context.Context) (*KnowledgeBase, error) {
		builds++
		return testBase(), nil
	}

	got, err := LoadOrBuild(ctx, fs, "kb.json", build)
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
	assert.Equal(t, "page/x", got.Symbols["a::x"])

	// Second call hits the persisted cache.
	_, err = LoadOrBuild(ctx, fs, "kb.json", build)
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
}

func TestLoadOrBuild_CorruptCacheFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "kb.json", []byte("{broken"), 0o644))

	_, err := LoadOrBuild(context.Background(), fs, "kb.json", func(ctx context.Context) (*KnowledgeBase, error) {
		t.Fatal("build must not run for a corrupt cache")
		return nil, nil
	})
	assert.Error(t, err)
}

func TestLoadOrBuild_BuildError(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := LoadOrBuild(context.Background(), fs, "kb.json", func(ctx context.Context) (*KnowledgeBase, error) {
		return nil, errors.New("corpus unavailable")
	})
	require.Error(t, err)

	// No cache file is left behind on failure.
	exists, _ := afero.Exists(fs, "kb.json")
	assert.False(t, exists)
}
