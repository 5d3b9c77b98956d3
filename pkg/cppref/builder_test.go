package cppref

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/cxref/pkg/token"
)

func TestHarvestLinks(t *testing.T) {
	code := "// PAGE: cpp/x/f\n/* -> */ f();\n// PAGE: cpp/x/g\n/* -> */ g();\n/* -> */ h();\n"

	f := &token.File{
		Filename: "probe.cpp",
		Code:     []byte(code),
		Tokens: []*token.Token{
			{Offset: 0, Length: 16, Type: token.Comment},
			{Offset: 17, Length: 8, Type: token.Comment},
			{Offset: 26, Length: 1, Type: token.Name, Link: &token.Link{
				QualifiedName:  "a::f",
				ParameterTypes: []string{"int"},
			}},
			{Offset: 27, Length: 1, Type: token.Punctuation},
			{Offset: 28, Length: 1, Type: token.Punctuation},
			{Offset: 29, Length: 1, Type: token.Punctuation},
			{Offset: 31, Length: 16, Type: token.Comment},
			{Offset: 48, Length: 8, Type: token.Comment},
			{Offset: 57, Length: 1, Type: token.Name, Link: &token.Link{
				QualifiedName: "a::g",
			}},
			{Offset: 58, Length: 1, Type: token.Punctuation},
			{Offset: 62, Length: 8, Type: token.Comment},
			// The third call's name token carries no link: the compiler
			// could not resolve it, so nothing is harvested for it.
			{Offset: 71, Length: 1, Type: token.Name},
		},
	}

	got := harvestLinks(f)

	require.Len(t, got, 2)
	assert.Equal(t, "a::f", got[0].Link.QualifiedName)
	assert.Equal(t, "cpp/x/f", got[0].Page)
	assert.Equal(t, []string{"int"}, got[0].Link.ParameterTypes)
	assert.Equal(t, "a::g", got[1].Link.QualifiedName)
	assert.Equal(t, "cpp/x/g", got[1].Page)
}

func TestHarvestLinks_PageMarkerDisarms(t *testing.T) {
	// A new PAGE marker between an armed call and its name token means
	// the call never resolved; the next link belongs to the new page.
	code := "/* -> */\n// PAGE: cpp/x/f\nf();\n"

	f := &token.File{
		Filename: "probe.cpp",
		Code:     []byte(code),
		Tokens: []*token.Token{
			{Offset: 0, Length: 8, Type: token.Comment},
			{Offset: 9, Length: 16, Type: token.Comment},
			{Offset: 26, Length: 1, Type: token.Name, Link: &token.Link{QualifiedName: "a::f"}},
		},
	}

	assert.Empty(t, harvestLinks(f))
}

// fakeRunner tokenizes the synthesized units just enough for the
// harvest: include lines yield linked file-spec tokens, marker comments
// yield comment tokens, and each armed call yields a linked name token.
type fakeRunner struct {
	// resolve maps a called name to the link its probe call resolves to.
	resolve map[string]*token.Link

	// probed collects every compiled unit's source.
	probed []string
}

func (r *fakeRunner) run(_ context.Context, fs afero.Fs, filename string) (*token.File, error) {
	code, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, err
	}
	r.probed = append(r.probed, string(code))

	f := &token.File{Filename: filename, Code: code}

	offset := 0
	for _, line := range strings.SplitAfter(string(code), "\n") {
		text := strings.TrimSuffix(line, "\n")
		trimmed := strings.TrimSpace(text)
		start := offset + strings.Index(line, trimmed)

		switch {
		case strings.HasPrefix(trimmed, "#include <"):
			spec := trimmed[len("#include "):]
			f.Tokens = append(f.Tokens, &token.Token{
				Offset: start + len("#include "),
				Length: len(spec),
				Type:   token.PreprocessorFile,
				Link: &token.Link{
					File: "/usr/include/fake/" + strings.Trim(spec, "<>"),
					Name: token.HeaderMarker,
				},
			})
		case strings.HasPrefix(trimmed, "// PAGE: "):
			f.Tokens = append(f.Tokens, &token.Token{
				Offset: start, Length: len(trimmed), Type: token.Comment,
			})
		case strings.Contains(trimmed, "/* -> */"):
			markerAt := start + strings.Index(trimmed, "/* -> */")
			f.Tokens = append(f.Tokens, &token.Token{
				Offset: markerAt, Length: len("/* -> */"), Type: token.Comment,
			})

			name := strings.TrimSpace(trimmed[strings.Index(trimmed, "/* -> */")+len("/* -> */"):])
			for i, c := range name {
				if c == '(' || c == '<' {
					name = name[:i]
					break
				}
			}
			f.Tokens = append(f.Tokens, &token.Token{
				Offset: offset + strings.LastIndex(line, name),
				Length: len(name),
				Type:   token.Name,
				Link:   r.resolve[name],
			})
		}

		offset += len(line)
	}

	return f, nil
}

func corpusFixture(t *testing.T, fs afero.Fs) {
	t.Helper()

	base := "work/cppreference"
	ref := base + "/reference/en.cppreference.com/w"

	files := map[string]string{
		base + "/Makefile": "all:\n",
		base + "/index-functions-cpp.xml": `<?xml version="1.0"?>
<index>
  <function name="std::swap" link="cpp/algorithm/swap"/>
  <class name="std::mini" link="cpp/mini">
    <overload name="poke" link="poke"/>
    <overload name="peek" link="peek"/>
  </class>
  <class name="std::experimental::junk" link="cpp/experimental/junk"/>
</index>`,
		ref + "/cpp/headers.html": `<html><body>
<div class="t-dsc-member-div"><a href="header/mini.html">&lt;mini&gt;</a></div>
</body></html>`,
		ref + "/cpp/mini.html": `<html><body><div id="mw-content-text">
<table><tr class="t-dsc-header"><td><code>&lt;mini&gt;</code></td></tr></table>
<table><tr class="t-dcl"><td>class mini;</td></tr></table>
</div></body></html>`,
		ref + "/cpp/mini/poke.html": `<html><body><div id="mw-content-text">
<table><tr class="t-dcl"><td>void poke( int n )</td></tr></table>
</div></body></html>`,
		ref + "/cpp/mini/peek.html": `<html><body><div id="mw-content-text">
<table><tr class="t-dcl"><td>void peek()</td></tr></table>
</div></body></html>`,
	}

	for path, content := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}
}

func TestBuilder_Build(t *testing.T) {
	fs := afero.NewMemMapFs()
	corpusFixture(t, fs)

	runner := &fakeRunner{
		resolve: map[string]*token.Link{
			"poke": {
				QualifiedName:  "std::mini::poke",
				ParameterTypes: []string{"int"},
			},
			"peek": {
				QualifiedName:  "std::mini::peek",
				ParameterTypes: []string{},
			},
		},
	}

	b := NewBuilder(Options{
		Workdir: "work",
		Jobs:    1,
		FS:      fs,
		Run: func(ctx context.Context, filename string) (*token.File, error) {
			return runner.run(ctx, fs, filename)
		},
	})

	base, err := b.Build(context.Background())
	require.NoError(t, err)

	// Headers mapped through the compiled include unit.
	assert.Equal(t, "cpp/header/mini", base.Headers["/usr/include/fake/mini"])

	// Index symbols carried over, experimental entries included.
	assert.Equal(t, "cpp/algorithm/swap", base.Symbols["std::swap"])
	assert.Equal(t, "cpp/mini", base.Symbols["std::mini"])
	assert.Equal(t, "cpp/experimental/junk", base.Symbols["std::experimental::junk"])

	// The harvested overload points at its declaration's page anchor.
	overloads := base.Overloads["std::mini::poke"]
	require.Len(t, overloads, 1)
	assert.Equal(t, []string{"int"}, overloads[0].ParameterTypes)
	assert.True(t, strings.HasPrefix(overloads[0].DocRef, "cpp/mini/poke#:~:text="))

	// The zero-parameter harvest is an overload entry too, not a
	// symbol: a symbol entry would shadow sibling overloads on other
	// pages.
	peeks := base.Overloads["std::mini::peek"]
	require.Len(t, peeks, 1)
	assert.Empty(t, peeks[0].ParameterTypes)
	assert.True(t, strings.HasPrefix(peeks[0].DocRef, "cpp/mini/peek#:~:text="))
	_, inSymbols := base.Symbols["std::mini::peek"]
	assert.False(t, inSymbols)

	// Experimental classes are never probed.
	for _, src := range runner.probed {
		assert.NotContains(t, src, "experimental")
	}
}

func TestSynthesize_SkipsNonClassEntities(t *testing.T) {
	fs := afero.NewMemMapFs()
	ref := "corpus/ref"

	pages := map[string]string{
		ref + "/cpp/nodecl.html": `<html><body><div id="mw-content-text">
<table><tr class="t-dsc-header"><td><code>&lt;nodecl&gt;</code></td></tr></table>
</div></body></html>`,
		ref + "/cpp/alias.html": `<html><body><div id="mw-content-text">
<table><tr class="t-dsc-header"><td><code>&lt;string&gt;</code></td></tr></table>
<table><tr class="t-dcl"><td>using string = std::basic_string&lt;char&gt;;</td></tr></table>
</div></body></html>`,
	}
	for path, content := range pages {
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	}

	b := NewBuilder(Options{FS: fs})
	corpus := &Corpus{ReferenceBase: ref}

	_, err := b.synthesize(corpus, &indexClass{Name: "std::nodecl", Link: "cpp/nodecl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no declaration")

	_, err = b.synthesize(corpus, &indexClass{Name: "std::string", Link: "cpp/alias"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a class declaration")
}

func TestBuilder_Resolvable(t *testing.T) {
	fs := afero.NewMemMapFs()
	corpusFixture(t, fs)

	runner := &fakeRunner{
		resolve: map[string]*token.Link{
			"poke": {QualifiedName: "std::mini::poke", ParameterTypes: []string{"int"}},
			"peek": {QualifiedName: "std::mini::peek", ParameterTypes: []string{}},
		},
	}

	b := NewBuilder(Options{
		Workdir: "work",
		Jobs:    1,
		FS:      fs,
		Run: func(ctx context.Context, filename string) (*token.File, error) {
			return runner.run(ctx, fs, filename)
		},
	})

	base, err := b.Build(context.Background())
	require.NoError(t, err)

	ref, ok := base.Resolve(&token.Link{
		QualifiedName:  "std::mini::poke",
		ParameterTypes: []string{"int"},
	})
	require.True(t, ok)
	assert.Contains(t, ref, "cpp/mini/poke")

	ref, ok = base.Resolve(&token.Link{
		QualifiedName:  "std::mini::peek",
		ParameterTypes: []string{},
	})
	require.True(t, ok)
	assert.Contains(t, ref, "cpp/mini/peek")

	ref, ok = base.Resolve(&token.Link{Name: token.HeaderMarker, File: "/usr/include/fake/mini"})
	require.True(t, ok)
	assert.Equal(t, "cpp/header/mini", ref)
}
