package cppref

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/walteh/cxref/pkg/kb"
	"github.com/walteh/cxref/pkg/token"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// Runner turns one C++ source file into its classified token stream.
// The builder feeds it the synthesized probe units and harvests the
// cross-reference links the compiler resolved.
type Runner func(ctx context.Context, filename string) (*token.File, error)

// Options configures a knowledge-base build.
type Options struct {
	// Workdir holds the downloaded archive, the extracted corpus and
	// the generated probe units.
	Workdir string

	// ArchiveURL overrides the corpus snapshot to download.
	ArchiveURL string

	// Version is the language version declarations are filtered
	// against, e.g. 23 for C++23.
	Version int

	// Jobs bounds concurrent probe compilations. Defaults to the CPU
	// count.
	Jobs int

	// Chooser overrides the template-argument heuristic.
	Chooser ArgumentChooser

	FS  afero.Fs
	Run Runner
}

// Builder produces a knowledge base from a documentation corpus by
// compiling synthetic probe programs against the local toolchain.
type Builder struct {
	workdir    string
	archiveURL string
	version    int
	jobs       int
	choose     ArgumentChooser
	fs         afero.Fs
	run        Runner
}

func NewBuilder(opts Options) *Builder {
	b := &Builder{
		workdir:    opts.Workdir,
		archiveURL: opts.ArchiveURL,
		version:    opts.Version,
		jobs:       opts.Jobs,
		choose:     opts.Chooser,
		fs:         opts.FS,
		run:        opts.Run,
	}
	if b.archiveURL == "" {
		b.archiveURL = DefaultArchiveURL
	}
	if b.version == 0 {
		b.version = 23
	}
	if b.jobs <= 0 {
		b.jobs = runtime.NumCPU()
	}
	if b.choose == nil {
		b.choose = DefaultChooser()
	}
	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}
	return b
}

// harvested is one cross-reference link recovered from a compiled
// probe, paired with the documentation page it probes.
type harvested struct {
	Link token.Link
	Page string
}

// classResult is the outcome of probing one class.
type classResult struct {
	Link      string
	Harvested []harvested
	Failures  int
	Err       error
}

// Build acquires the corpus, probes every indexed class and assembles
// the knowledge base. Individual classes are allowed to fail (the
// standard library is too irregular for every synthesized probe to
// compile) but corpus acquisition and index parsing are not.
func (b *Builder) Build(ctx context.Context) (*kb.KnowledgeBase, error) {
	logger := zerolog.Ctx(ctx)

	corpus, err := b.acquire(ctx)
	if err != nil {
		return nil, err
	}

	f, err := b.fs.Open(corpus.IndexPath)
	if err != nil {
		return nil, errors.Errorf("opening symbol index: %w", err)
	}
	ix, err := ParseIndex(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	base := kb.New()
	base.Symbols = ix.Symbols(ctx)

	if err := b.buildHeaders(ctx, corpus, base); err != nil {
		return nil, err
	}

	results, err := b.probeClasses(ctx, corpus, ix)
	if err != nil {
		return nil, err
	}

	var failed error
	totalFailures := 0
	for _, res := range results {
		if res.Err != nil {
			failed = multierror.Append(failed, errors.Errorf("%s: %w", res.Link, res.Err))
		}
		totalFailures += res.Failures

		// Every harvest is an overload entry, zero-parameter ones
		// included: putting those into the symbol table would let the
		// symbol short-circuit shadow a sibling overload on another
		// page.
		for _, h := range res.Harvested {
			base.Overloads[h.Link.QualifiedName] = append(base.Overloads[h.Link.QualifiedName], kb.Overload{
				ParameterTypes: h.Link.ParameterTypes,
				DocRef:         h.Page,
			})
		}
	}

	b.report(ctx, results)

	if failed != nil {
		logger.Warn().Err(failed).Msg("some classes could not be probed")
	}
	logger.Info().
		Int("symbols", len(base.Symbols)).
		Int("overload_sets", len(base.Overloads)).
		Int("headers", len(base.Headers)).
		Int("failures", totalFailures).
		Msg("knowledge base assembled")

	return base, nil
}

// buildHeaders maps header files to their documentation pages. The
// overview page yields include spellings; a compiled unit including
// every one of them reveals the absolute path each spelling resolves
// to on this toolchain.
func (b *Builder) buildHeaders(ctx context.Context, corpus *Corpus, base *kb.KnowledgeBase) error {
	page, err := corpus.Page(b.fs, "cpp/headers")
	if err != nil {
		return errors.Errorf("opening header overview: %w", err)
	}
	doc, err := parsePage(page)
	page.Close()
	if err != nil {
		return err
	}

	spellings := scrapeHeaders(doc)
	if len(spellings) == 0 {
		return errors.New("header overview page yielded no headers")
	}

	names := make([]string, 0, len(spellings))
	for name := range spellings {
		names = append(names, name)
	}
	sort.Strings(names)

	var unit strings.Builder
	for _, name := range names {
		unit.WriteString("#include " + name + "\n")
	}

	filename := filepath.Join(b.workdir, "headers-"+uuid.New().String()+".cpp")
	if err := afero.WriteFile(b.fs, filename, []byte(unit.String()), 0o644); err != nil {
		return errors.Errorf("writing header unit: %w", err)
	}
	defer b.fs.Remove(filename)

	stream, err := b.run(ctx, filename)
	if err != nil {
		return errors.Errorf("compiling header unit: %w", err)
	}

	for _, frag := range stream.Fragments() {
		if frag.Token == nil || frag.Token.Type != token.PreprocessorFile || frag.Token.Link == nil {
			continue
		}
		if ref, ok := spellings[frag.Text]; ok {
			base.Headers[frag.Token.Link.File] = ref
		}
	}

	return nil
}

// probeClasses synthesizes, compiles and harvests one probe unit per
// indexed class, bounded by the job limit.
func (b *Builder) probeClasses(ctx context.Context, corpus *Corpus, ix *Index) ([]classResult, error) {
	logger := zerolog.Ctx(ctx)

	probeDir := filepath.Join(b.workdir, "probes")
	if err := b.fs.MkdirAll(probeDir, 0o755); err != nil {
		return nil, errors.Errorf("creating %s: %w", probeDir, err)
	}

	var mu sync.Mutex
	var results []classResult

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.jobs)

	for _, cls := range ix.Classes {
		// Experimental library facilities have no stable headers to
		// probe against.
		if strings.Contains(cls.Link, "experimental/") {
			continue
		}

		cls := cls
		g.Go(func() error {
			res := b.probeClass(gctx, corpus, probeDir, &cls)
			if res.Err != nil {
				logger.Debug().Str("class", cls.Name).Err(res.Err).Msg("probe failed")
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (b *Builder) probeClass(ctx context.Context, corpus *Corpus, probeDir string, cls *indexClass) classResult {
	res := classResult{Link: cls.Link}

	probe, err := b.synthesize(corpus, cls)
	if err != nil {
		res.Err = err
		return res
	}

	filename := filepath.Join(probeDir, uuid.New().String()+".cpp")
	if err := afero.WriteFile(b.fs, filename, []byte(probe.Source), 0o644); err != nil {
		res.Err = errors.Errorf("writing probe: %w", err)
		return res
	}

	stream, err := b.run(ctx, filename)
	if err != nil {
		res.Err = errors.Errorf("compiling probe: %w", err)
		res.Failures = probe.Declarations
		return res
	}

	res.Harvested = harvestLinks(stream)
	res.Failures = probe.Declarations - len(res.Harvested)
	return res
}

// synthesize scrapes a class's documentation pages and renders its
// probe unit.
func (b *Builder) synthesize(corpus *Corpus, cls *indexClass) (*classProbe, error) {
	classPage, err := corpus.Page(b.fs, cls.Link)
	if err != nil {
		return nil, errors.Errorf("opening class page: %w", err)
	}
	classDoc, err := parsePage(classPage)
	classPage.Close()
	if err != nil {
		return nil, err
	}

	header := classHeader(classDoc)
	if header == "" {
		return nil, errors.New("class page names no header")
	}
	classDecl := classDeclaration(classDoc)
	if classDecl == "" {
		return nil, errors.New("class page has no declaration table")
	}
	if !strings.Contains(classDecl, "class") && !strings.Contains(classDecl, "struct") {
		// Index "class" entries also cover typedefs and aliases; those
		// cannot anchor a member probe.
		return nil, errors.Errorf("not a class declaration: %q", classDecl)
	}

	var decls []DeclarationRecord
	for _, pageLink := range cls.overloadPages() {
		p, err := corpus.Page(b.fs, pageLink)
		if err != nil {
			// Index entries occasionally point at pages the snapshot
			// does not carry.
			continue
		}
		doc, err := parsePage(p)
		p.Close()
		if err != nil {
			return nil, err
		}
		decls = append(decls, declarations(doc, pageLink, b.version)...)
	}

	return buildProbe(cls.Name, cls.Link, classDecl, header, decls, b.choose)
}

const (
	pageMarker = "// PAGE: "
	callMarker = "/* -> */"
)

// harvestLinks scans a compiled probe's token stream for the marker
// comments and pairs each armed call's resolved link with the page
// named by the preceding marker. A call whose next token carries no
// link did not resolve and simply is not harvested.
func harvestLinks(f *token.File) []harvested {
	var out []harvested

	page := ""
	armed := false

	for _, frag := range f.Fragments() {
		if frag.Token == nil {
			continue
		}

		if frag.Token.Type == token.Comment {
			if strings.HasPrefix(frag.Text, pageMarker) {
				page = strings.TrimSpace(strings.TrimPrefix(frag.Text, pageMarker))
				armed = false
			} else if frag.Text == callMarker {
				armed = true
			}
			continue
		}

		if !armed {
			continue
		}
		armed = false

		if frag.Token.Link == nil || page == "" {
			continue
		}
		out = append(out, harvested{Link: *frag.Token.Link, Page: page})
	}

	return out
}

// report logs the per-class failure tally, worst offenders first, so a
// chooser regression shows up at the top of the build log.
func (b *Builder) report(ctx context.Context, results []classResult) {
	logger := zerolog.Ctx(ctx)

	sorted := make([]classResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Failures != sorted[j].Failures {
			return sorted[i].Failures > sorted[j].Failures
		}
		return sorted[i].Link < sorted[j].Link
	})

	for _, res := range sorted {
		if res.Failures == 0 && res.Err == nil {
			continue
		}
		logger.Info().
			Str("class", res.Link).
			Int("failures", res.Failures).
			Int("harvested", len(res.Harvested)).
			Msg("probe shortfall")
	}
}
