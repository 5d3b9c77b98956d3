package cppref

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// The corpus ships an XML symbol index; entries carry a display name,
// a documentation page link, and occasionally an alias to another
// entry instead of a page of their own.

type indexEntry struct {
	Name  string `xml:"name,attr"`
	Link  string `xml:"link,attr"`
	Alias string `xml:"alias,attr"`
}

type indexOverload struct {
	Name string `xml:"name,attr"`
	Link string `xml:"link,attr"`
}

type indexClass struct {
	Name        string          `xml:"name,attr"`
	Link        string          `xml:"link,attr"`
	Typedefs    []indexEntry    `xml:"typedef"`
	Consts      []indexEntry    `xml:"const"`
	Functions   []indexEntry    `xml:"function"`
	Constructor *indexEntry     `xml:"constructor"`
	Destructor  *indexEntry     `xml:"destructor"`
	Overloads   []indexOverload `xml:"overload"`
}

// Index is the parsed symbol index.
type Index struct {
	XMLName   xml.Name     `xml:"index"`
	Typedefs  []indexEntry `xml:"typedef"`
	Consts    []indexEntry `xml:"const"`
	Functions []indexEntry `xml:"function"`
	Classes   []indexClass `xml:"class"`
}

// ParseIndex decodes the corpus symbol index.
func ParseIndex(r io.Reader) (*Index, error) {
	var ix Index
	if err := xml.NewDecoder(r).Decode(&ix); err != nil {
		return nil, errors.Errorf("parsing symbol index: %w", err)
	}
	return &ix, nil
}

func localName(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == ':' {
			return qualified[i+1:]
		}
	}
	return qualified
}

// memberLink resolves a member entry's page. Members without an
// explicit link live under the class page; "." means the class page
// itself.
func memberLink(classLink, memberName, explicit string) string {
	link := explicit
	if link == "" {
		link = classLink + "/" + memberName
	}
	if link == "." {
		return classLink
	}
	return link
}

// Symbols flattens the index into the non-overloaded symbol table:
// global entries, class members, constructors and destructors, with
// alias entries resolved against their targets.
func (ix *Index) Symbols(ctx context.Context) map[string]string {
	logger := zerolog.Ctx(ctx)

	symbols := make(map[string]string)
	aliases := make(map[string]string)

	addGlobal := func(entries []indexEntry) {
		for _, e := range entries {
			switch {
			case e.Link != "":
				symbols[e.Name] = e.Link
			case e.Alias != "":
				aliases[e.Name] = e.Alias
			default:
				logger.Warn().Str("name", e.Name).Msg("index entry has no link")
			}
		}
	}
	addGlobal(ix.Typedefs)
	addGlobal(ix.Consts)
	addGlobal(ix.Functions)

	for _, cls := range ix.Classes {
		local := localName(cls.Name)
		symbols[cls.Name] = cls.Link

		addMembers := func(entries []indexEntry) {
			for _, e := range entries {
				symbols[cls.Name+"::"+e.Name] = memberLink(cls.Link, e.Name, e.Link)
			}
		}
		addMembers(cls.Typedefs)
		addMembers(cls.Consts)
		addMembers(cls.Functions)

		if cls.Constructor != nil {
			symbols[cls.Name+"::"+local] = memberLink(cls.Link, local, cls.Constructor.Link)
		}
		if cls.Destructor != nil {
			symbols[cls.Name+"::~"+local] = memberLink(cls.Link, local, cls.Destructor.Link)
		}
	}

	for name, target := range aliases {
		if link, ok := symbols[target]; ok {
			symbols[name] = link
		} else {
			logger.Warn().Str("name", name).Str("target", target).Msg("alias target missing from index")
		}
	}

	return symbols
}

// overloadPages collects the documentation pages holding a class's
// member and free-function declarations: the class page itself plus
// any linked overload pages.
func (cls *indexClass) overloadPages() []string {
	seen := map[string]bool{}
	var pages []string

	add := func(page string) {
		if !seen[page] {
			seen[page] = true
			pages = append(pages, page)
		}
	}

	for _, o := range cls.Overloads {
		link := o.Link
		if link == "" {
			link = o.Name
		}
		if link == "." {
			add(cls.Link)
		} else {
			add(cls.Link + "/" + link)
		}
	}

	return pages
}
