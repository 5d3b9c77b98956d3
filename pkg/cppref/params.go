package cppref

import (
	"regexp"
	"strings"
)

// Declaration-text parsing. The corpus documents declarations as plain
// C++ text; these helpers pull apart just enough of it to synthesize a
// call site. They assume well-formed C++ and lean on bracket counting
// instead of a real parser.

var (
	signatureRegex = regexp.MustCompile(`^[^(]* ([^ (]+)\s*\((.*)`)
	templateRegex  = regexp.MustCompile(`^template\s*<(.*)`)
	typeParamRegex = regexp.MustCompile(`^(class|typename|std::\w+<\w+>)\s*(\.\.\.)?\s*(.*)`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// normalizeSpace collapses all whitespace runs to single spaces.
func normalizeSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// splitSignature splits a declaration into the declared name and the
// text following the opening parenthesis. ok is false for anything
// that does not look like a function declaration.
func splitSignature(decl string) (name, rest string, ok bool) {
	m := signatureRegex.FindStringSubmatch(decl)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// splitSignatureRest extracts the parameter list (up to the matching
// close paren) from the rest of a signature. Parentheses are counted,
// which is sound for well-formed C++.
//
//	splitSignatureRest(`int a, char b) const;`)
//	  -> "int a, char b", " const;"
func splitSignatureRest(rest string) (params, after string) {
	level := 1
	for idx, c := range rest {
		switch c {
		case '(':
			level++
		case ')':
			level--
			if level == 0 {
				return rest[:idx], rest[idx+1:]
			}
		}
	}
	return rest, ""
}

// lexParams splits a template parameter list on top-level commas,
// stopping at the closing angle bracket.
//
//	lexParams("class T, std::some_concept<x> b> void f()")
//	  -> ["class T", "std::some_concept<x> b"], " void f()"
func lexParams(params string) ([]string, string) {
	var ret []string
	var current strings.Builder
	level := 1
	end := len(params)

	for idx, c := range params {
		if level == 1 {
			if c == '>' {
				if current.Len() > 0 {
					ret = append(ret, current.String())
				}
				end = idx + 1
				goto done
			}
			if c == ',' {
				if current.Len() > 0 {
					ret = append(ret, current.String())
				}
				current.Reset()
			} else {
				current.WriteRune(c)
			}
		} else {
			current.WriteRune(c)
		}

		switch c {
		case '<':
			level++
		case '>':
			level--
		}
	}

done:
	out := make([]string, 0, len(ret))
	for _, p := range ret {
		out = append(out, strings.TrimSpace(p))
	}
	return out, params[end:]
}

// templateParams returns the parameter list of a template declaration,
// or nil when the declaration is not a template.
//
//	templateParams("template<class T, int c> func(T a, T b);")
//	  -> ["class T", "int c"]
func templateParams(decl string) []string {
	m := templateRegex.FindStringSubmatch(decl)
	if m == nil {
		return nil
	}
	params, _ := lexParams(m[1])
	return params
}

// forwardTemplateParams builds a template argument list forwarding
// every parameter of a parsed parameter list by name.
//
//	forwardTemplateParams(["class T", "int c"]) -> "<T, c>"
func forwardTemplateParams(params []string) string {
	ret := make([]string, 0, len(params))
	for _, p := range params {
		if idx := strings.Index(p, "="); idx >= 0 {
			p = strings.TrimSpace(p[:idx])
		}

		name := p
		if idx := strings.LastIndex(p, " "); idx >= 0 {
			name = p[idx+1:]
		}

		if strings.Contains(p, "...") {
			ret = append(ret, name+"...")
		} else {
			ret = append(ret, name)
		}
	}
	return "<" + strings.Join(ret, ", ") + ">"
}
