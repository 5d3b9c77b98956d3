package cppref

import (
	"net/url"
	"strconv"
	"strings"
	"text/template"

	"gitlab.com/tozd/go/errors"
)

// Probe synthesis. For every scraped declaration we emit a guarded
// call site whose argument expressions are derived from the declared
// parameter list through the Signature introspection helper, so the
// compiler, not this package, performs the real overload and
// template resolution. The marker comments let the harvest step pair
// each resolved call with its documentation page.

const probeSkeleton = `
#define static_assert(...)

#include {{ .Header }}
#include <utility>
#include <tuple>

#pragma GCC diagnostic ignored "-Wreturn-type"
#pragma GCC diagnostic ignored "-Wunused-local-typedef"

template<typename T>
typename std::add_rvalue_reference<T>::type my_declval() noexcept
{
}

template<typename Sig>
struct Signature;

template<typename R, typename ...Args>
struct Signature<R(*)(Args...)>
{
    using ArgTuple = std::tuple<Args...>;
    static constexpr std::size_t ArgCount = sizeof...(Args);

    template<std::size_t N>
    using ArgType = decltype(std::get<N>(my_declval<ArgTuple>()));

    template<std::size_t N>
    static ArgType<N> arg() noexcept
    {}
};

struct MyPred {
    bool operator()(auto) { return true; }
};

{{ range .Namespaces }}namespace {{ . }} { {{ end }}
{{- range .Typedefs }}
{{ . }}
{{- end }}
using MyType = {{ .ClassType }};
{{ range .Calls }}
    // PAGE: {{ .PageRef }}
    // {{ .Decl }}
    {{ if .HasCall }}{{ .TemplateDecl }}
    struct Call{{ .Num }} {
        {{ .LocalTypedef }}
        static void signature({{ .Params }});
        void call()
        {
            using Sig = Signature<decltype(&signature)>;
            []<auto... Is>(const std::index_sequence<Is...>&){
                static_cast<void>(/* -> */ {{ .Name }}{{ .Forward }}(Sig::template arg<Is>()...));
            }(std::make_index_sequence<Sig::ArgCount>());
        }
    };{{ .ExplicitInst }}{{ end }}
{{ end }}
{{ range .Namespaces }}} {{ end }}
`

var probeTemplate = template.Must(template.New("probe").Parse(probeSkeleton))

type probeCall struct {
	Num          int
	PageRef      string
	Decl         string
	HasCall      bool
	TemplateDecl string
	LocalTypedef string
	Params       string
	Name         string
	Forward      string
	ExplicitInst string
}

type probeData struct {
	Header     string
	Namespaces []string
	Typedefs   []string
	ClassType  string
	Calls      []probeCall
}

// classProbe is one synthetic compilation unit covering every scraped
// declaration of one class.
type classProbe struct {
	Link   string
	Source string
	// Declarations counts the PAGE markers emitted; the harvest
	// shortfall against this number is the failure count.
	Declarations int
}

// buildProbe synthesizes the compilation unit for one class.
func buildProbe(className, classLink, classDecl, header string, decls []DeclarationRecord, choose ArgumentChooser) (*classProbe, error) {
	parts := strings.Split(className, "::")
	namespaces := parts[:len(parts)-1]
	local := parts[len(parts)-1]

	classType := className
	var typedefs []string
	bound := map[string]bool{}
	if params := templateParams(classDecl); params != nil {
		args, defs, set := templateArgs(params, map[string]bool{}, "", choose)
		classType += args
		typedefs = defs
		bound = set
	}

	data := probeData{
		Header:     header,
		Namespaces: namespaces,
		Typedefs:   typedefs,
		ClassType:  classType,
	}

	num := 0
	for _, rec := range decls {
		if strings.Contains(rec.Decl, "= delete") {
			continue
		}
		// Not a function.
		if !strings.Contains(rec.Decl, "(") {
			continue
		}

		num++
		call := probeCall{
			Num:     num,
			PageRef: rec.Page + "#:~:text=" + url.PathEscape(rec.Fragment),
			Decl:    rec.Decl,
		}

		declParams := templateParams(rec.Decl)
		var declArgs string
		if declParams != nil {
			declArgs, _, _ = templateArgs(declParams, bound, rec.Decl, choose)
			call.TemplateDecl = "template <" + strings.Join(declParams, ", ") + ">"
			call.Forward = forwardTemplateParams(declParams)
		}

		name, rest, ok := splitSignature(rec.Decl)
		if ok {
			params, _ := splitSignatureRest(rest)

			// Operators rarely need explicit template arguments, and
			// the corpus deviates from the shipped library headers for
			// several of them.
			if strings.HasPrefix(name, "operator") {
				call.Forward = ""
			}

			if strings.Contains(rec.Decl, "friend ") {
				// A friend function is declared inside the class body
				// and may name the class without arguments; a local
				// alias emulates that in the standalone unit.
				call.LocalTypedef = "using " + local + " = MyType;"
			}

			call.HasCall = true
			call.Params = params
			call.Name = name

			if call.TemplateDecl != "" {
				call.ExplicitInst = "\n    template struct Call" + strconv.Itoa(num) + declArgs + ";"
			}
		}

		data.Calls = append(data.Calls, call)
	}

	if len(data.Calls) == 0 {
		return nil, errors.New("no callable declarations")
	}

	var out strings.Builder
	if err := probeTemplate.Execute(&out, data); err != nil {
		return nil, errors.Errorf("rendering probe for %s: %w", className, err)
	}

	return &classProbe{
		Link:         classLink,
		Source:       out.String(),
		Declarations: len(data.Calls),
	}, nil
}
