package cppref

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/net/html"
)

// Page scraping over the corpus HTML. The markup is MediaWiki output
// with stable CSS classes: declaration rows are tagged "t-dcl" and
// carry "t-since-cxx<N>"/"t-until-cxx<N>" classes bounding the
// language versions a declaration exists in.

// declRow is one declaration row of a documentation page, possibly
// holding several semicolon-separated declarations.
type declRow struct {
	Text  string
	Since int
	Until int
}

// DeclarationRecord is one scraped declaration ready for probing:
// normalized declaration text, the page documenting it, and the text
// fragment anchoring the declaration on that page.
type DeclarationRecord struct {
	Decl     string
	Page     string
	Fragment string
}

func parsePage(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Errorf("parsing page html: %w", err)
	}
	return doc, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

// findAll collects, in document order, every element below n for which
// match returns true.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	all := findAll(n, match)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}

func elementByID(n *html.Node, id string) *html.Node {
	return findFirst(n, func(n *html.Node) bool {
		return attr(n, "id") == id
	})
}

func firstCell(row *html.Node) *html.Node {
	return findFirst(row, func(n *html.Node) bool {
		return isElement(n, "td")
	})
}

// classHeader returns the owning header named in the class page's
// declaration summary table, e.g. "<vector>".
func classHeader(doc *html.Node) string {
	header := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "tr") && hasClass(n, "t-dsc-header")
	})
	if header == nil {
		return ""
	}
	code := findFirst(header, func(n *html.Node) bool {
		return isElement(n, "code")
	})
	if code == nil {
		return ""
	}
	return strings.TrimSpace(textContent(code))
}

// classDeclaration returns the normalized text of the class's own
// declaration row, or "" when the page has none.
func classDeclaration(doc *html.Node) string {
	row := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "tr") && hasClass(n, "t-dcl")
	})
	if row == nil {
		return ""
	}
	cell := firstCell(row)
	if cell == nil {
		return ""
	}
	return normalizeSpace(textContent(cell))
}

var sinceClassRe = regexp.MustCompile(`^t-since-cxx(\d+)$`)
var untilClassRe = regexp.MustCompile(`^t-until-cxx(\d+)$`)

// declRows returns the declaration rows of a documentation page with
// their version bounds. Rows outside the main content area are
// ignored.
func declRows(doc *html.Node) []declRow {
	content := elementByID(doc, "mw-content-text")
	if content == nil {
		return nil
	}

	var rows []declRow
	for _, row := range findAll(content, func(n *html.Node) bool {
		return isElement(n, "tr") && hasClass(n, "t-dcl")
	}) {
		cell := firstCell(row)
		if cell == nil {
			continue
		}

		r := declRow{Text: textContent(cell), Since: 1, Until: 99}
		for _, cls := range strings.Fields(attr(row, "class")) {
			if m := sinceClassRe.FindStringSubmatch(cls); m != nil {
				r.Since, _ = strconv.Atoi(m[1])
			} else if m := untilClassRe.FindStringSubmatch(cls); m != nil {
				r.Until, _ = strconv.Atoi(m[1])
			}
		}
		rows = append(rows, r)
	}

	return rows
}

// declarations splits the in-range rows of a page into individual
// declaration records. The anchor fragment is the last line of the
// verbatim declaration: text fragment directives cannot cross block
// tags, so only the final line is addressable.
func declarations(doc *html.Node, page string, version int) []DeclarationRecord {
	var out []DeclarationRecord

	for _, row := range declRows(doc) {
		if row.Since > version || row.Until <= version {
			continue
		}

		for _, verbatim := range strings.Split(row.Text, ";") {
			decl := normalizeSpace(verbatim)
			if decl == "" {
				continue
			}

			fragment := verbatim
			if idx := strings.LastIndex(verbatim, "\n"); idx >= 0 {
				fragment = verbatim[idx+1:]
			}

			out = append(out, DeclarationRecord{
				Decl:     decl,
				Page:     page,
				Fragment: strings.TrimSpace(fragment),
			})
		}
	}

	return out
}

var headerLinkRe = regexp.MustCompile(`header/(.*)\.html`)

// scrapeHeaders reads the header overview page and maps include
// spellings ("<vector>") to their documentation pages.
func scrapeHeaders(doc *html.Node) map[string]string {
	headers := make(map[string]string)

	for _, div := range findAll(doc, func(n *html.Node) bool {
		return isElement(n, "div") && hasClass(n, "t-dsc-member-div")
	}) {
		for _, a := range findAll(div, func(n *html.Node) bool {
			return isElement(n, "a")
		}) {
			m := headerLinkRe.FindStringSubmatch(attr(a, "href"))
			if m == nil {
				continue
			}
			headers["<"+m[1]+">"] = "cpp/header/" + m[1]
		}
	}

	return headers
}
