/*
Package kb is the persisted knowledge base mapping standard-library
declarations to documentation locations, and the matcher that resolves
token links against it.

The cache file is the system's only durable state. It is built once per
documentation-corpus version (pkg/cppref), then reloaded read-only.
Invalidation is manual: delete the file and rebuild. An absent cache
means "not yet built"; a present-but-unreadable cache is an error, never
silently rebuilt.
*/
package kb

import (
	"context"
	"encoding/json"
	"os"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/cxref/pkg/token"
	"gitlab.com/tozd/go/errors"
)

// ErrNotBuilt is returned by Load when no cache file exists yet.
var ErrNotBuilt = errors.New("knowledge base not built")

// Overload is one documented overload of a qualified name.
type Overload struct {
	ParameterTypes []string `json:"parameter_types"`
	DocRef         string   `json:"doc_ref"`
}

// KnowledgeBase holds the three lookup tables. Symbols covers
// non-overloaded entities, Overloads callable entities keyed by
// qualified name, Headers header files keyed by absolute path.
type KnowledgeBase struct {
	Symbols   map[string]string     `json:"symbols"`
	Overloads map[string][]Overload `json:"overloads"`
	Headers   map[string]string     `json:"headers"`
}

func New() *KnowledgeBase {
	return &KnowledgeBase{
		Symbols:   make(map[string]string),
		Overloads: make(map[string][]Overload),
		Headers:   make(map[string]string),
	}
}

// Load reads a cache file. A missing file is ErrNotBuilt; anything else
// that fails is a real error: a corrupt cache must not masquerade as
// an empty one.
func Load(fs afero.Fs, path string) (*KnowledgeBase, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotBuilt
		}
		return nil, errors.Errorf("reading knowledge base %s: %w", path, err)
	}

	var kb KnowledgeBase
	if err := json.Unmarshal(data, &kb); err != nil {
		return nil, errors.Errorf("knowledge base %s is corrupt: %w", path, err)
	}

	return &kb, nil
}

// Save writes the cache file atomically: the temp file is renamed into
// place only once the whole base is serialized, so readers never see a
// partial build.
func (kb *KnowledgeBase) Save(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(kb, "", "  ")
	if err != nil {
		return errors.Errorf("marshaling knowledge base: %w", err)
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return errors.Errorf("writing %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return errors.Errorf("renaming %s into place: %w", tmp, err)
	}

	return nil
}

// LoadOrBuild loads the cache, invoking build on a missing cache and
// persisting its result. Corrupt caches still fail.
func LoadOrBuild(ctx context.Context, fs afero.Fs, path string, build func(ctx context.Context) (*KnowledgeBase, error)) (*KnowledgeBase, error) {
	kb, err := Load(fs, path)
	if err == nil {
		return kb, nil
	}
	if !errors.Is(err, ErrNotBuilt) {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("path", path).Msg("knowledge base absent, building")

	kb, err = build(ctx)
	if err != nil {
		return nil, errors.Errorf("building knowledge base: %w", err)
	}
	if err := kb.Save(fs, path); err != nil {
		return nil, err
	}

	return kb, nil
}

// Resolve looks up the documentation reference for a link. Inclusion
// targets resolve through the header table by absolute file path;
// everything else tries the exact symbol table first, then an exact,
// ordered parameter-type match over the overload set. First match
// wins, no partial matching. Not found is a normal result.
func (kb *KnowledgeBase) Resolve(l *token.Link) (string, bool) {
	if l.IsHeader() {
		ref, ok := kb.Headers[l.File]
		return ref, ok
	}

	if ref, ok := kb.Symbols[l.QualifiedName]; ok {
		return ref, true
	}

	if l.ParameterTypes != nil {
		for _, o := range kb.Overloads[l.QualifiedName] {
			if slices.Equal(o.ParameterTypes, l.ParameterTypes) {
				return o.DocRef, true
			}
		}
	}

	return "", false
}

// Annotate resolves every linked token of the file in place. Tokens
// without a match keep an empty doc ref.
func (kb *KnowledgeBase) Annotate(f *token.File) {
	for _, t := range f.Tokens {
		if t.Link == nil {
			continue
		}
		if ref, ok := kb.Resolve(t.Link); ok {
			t.Link.DocRef = ref
		}
	}
}
