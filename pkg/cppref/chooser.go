package cppref

import (
	"strings"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// ArgumentChooser picks a concrete type for a named template parameter
// so that the synthesized probe instantiates. It is a deliberately
// lossy, name-keyed heuristic tuned against one corpus snapshot; the
// surrounding declaration text and the set of already-bound parameter
// names are available for the handful of context-sensitive cases.
type ArgumentChooser func(name, decl string, bound map[string]bool) string

// DefaultChooser returns the built-in heuristic table.
func DefaultChooser() ArgumentChooser {
	return func(name, decl string, bound map[string]bool) string {
		switch name {
		case "InputIt":
			return "iterator"
		case "P":
			return "value_type"
		case "C2":
			return "key_compare"
		case "CharT":
			return "char"
		case "Ostream":
			return "std::basic_ostream<char>"
		case "Istream":
			return "std::basic_istream<char>"
		case "Alloc":
			if bound["Allocator"] {
				return "Allocator"
			}
			return "int"
		case "Pred":
			return "MyPred"
		case "U", "T2", "U2":
			return "char"
		case "Traits":
			return "std::char_traits<char>"
		case "Clock", "C":
			return "std::chrono::high_resolution_clock"
		case "ToDuration", "Duration":
			return "std::chrono::seconds"
		case "P1", "P2":
			return "std::ratio<1>"
		case "D1", "D2":
			if bound["Deleter"] {
				return "Deleter"
			}
			return "std::chrono::seconds"
		case "UIntType":
			return "unsigned int"
		case "NonComplex":
			return "double"
		case "T":
			if strings.Contains(decl, "std::complex") {
				return "double"
			}
			if strings.Contains(decl, "Istream") && strings.Contains(decl, "T&& value") {
				return "int&"
			}
			return "int"
		}

		if strings.Contains(name, "Period") {
			return "std::ratio<1>"
		}

		return "int"
	}
}

// ChooserConfig is the YAML override file for the argument chooser.
// Names listed under "types" take precedence over the built-in table.
type ChooserConfig struct {
	Types map[string]string `yaml:"types"`
}

// LoadChooserConfig reads a chooser override file.
func LoadChooserConfig(fs afero.Fs, path string) (*ChooserConfig, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading chooser config %s: %w", path, err)
	}

	var cfg ChooserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Errorf("parsing chooser config %s: %w", path, err)
	}

	return &cfg, nil
}

// Chooser overlays the config on a fallback chooser.
func (c *ChooserConfig) Chooser(fallback ArgumentChooser) ArgumentChooser {
	return func(name, decl string, bound map[string]bool) string {
		if typ, ok := c.Types[name]; ok {
			return typ
		}
		return fallback(name, decl, bound)
	}
}

// templateArgs generates concrete template arguments for a parameter
// list. Parameters carrying a default are left defaulted (no argument
// emitted) but still get a local using alias. Returns the argument
// list, the aliases, and the set of parameter names bound here.
func templateArgs(params []string, exclude map[string]bool, decl string, choose ArgumentChooser) (string, []string, map[string]bool) {
	var args []string
	var typedefs []string
	boundHere := make(map[string]bool)

	for _, p := range params {
		isDefault := false
		typ := ""
		if idx := strings.Index(p, "="); idx >= 0 {
			isDefault = true
			typ = strings.TrimSpace(p[idx+1:])
			p = strings.TrimSpace(p[:idx])
		}

		m := typeParamRegex.FindStringSubmatch(p)
		if m != nil {
			name := m[3]

			if !isDefault {
				typ = choose(name, decl, exclude)
				args = append(args, typ)
			}

			if !exclude[name] {
				typedefs = append(typedefs, "using "+name+" = "+typ+";")
				boundHere[name] = true
			}
			continue
		}

		// Non-type parameter: any small constant keeps the class
		// instantiable, except stream widths which must be positive.
		if strings.Contains(decl, "basic_istream") {
			args = append(args, "1")
		} else {
			args = append(args, "0")
		}
	}

	return "<" + strings.Join(args, ",") + ">", typedefs, boundHere
}
