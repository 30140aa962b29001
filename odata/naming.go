package odata

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/letmevibethatforyou/odatax"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// PathSeparator joins the segments of a nested field path.
const PathSeparator = "/"

// FieldNameResolver maps source field paths to the names visible in the index.
// Implementations must be safe for concurrent use.
type FieldNameResolver interface {
	// ResolveFieldName renders path with segments joined by PathSeparator,
	// prefixed with a separator when leadingSeparator is set and path is not empty.
	ResolveFieldName(path odatax.FieldPath, leadingSeparator bool) string
}

// Convention renames a single source field.
type Convention func(field string) string

// CamelCase lowercases the leading run of capitals: "DateTime" becomes
// "dateTime" and "URLValue" becomes "urlValue".
func CamelCase(field string) string {
	runes := []rune(field)
	if len(runes) == 0 || !unicode.IsUpper(runes[0]) {
		return field
	}
	for i := range runes {
		if i == 1 && !unicode.IsUpper(runes[i]) {
			break
		}
		if i > 0 && i+1 < len(runes) && !unicode.IsUpper(runes[i+1]) {
			if unicode.IsSpace(runes[i+1]) {
				runes[i] = unicode.ToLower(runes[i])
			}
			break
		}
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

// PascalCase uppercases the first letter.
func PascalCase(field string) string {
	return cases.Title(language.Und, cases.NoLower).String(field)
}

// LowerCase lowercases the whole name.
func LowerCase(field string) string {
	return cases.Lower(language.Und).String(field)
}

// Verbatim keeps the source name.
func Verbatim(field string) string {
	return field
}

// ConventionByName returns the convention called name: camel, pascal, lower or verbatim.
// An empty name selects camel.
func ConventionByName(name string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "camel":
		return CamelCase, nil
	case "pascal":
		return PascalCase, nil
	case "lower":
		return LowerCase, nil
	case "verbatim":
		return Verbatim, nil
	default:
		return nil, errors.Wrapf(odatax.ErrInvalidOption, "unknown naming convention %q", name)
	}
}

// Naming resolves field names with a convention and explicit per-field overrides.
// An override key is either a dotted source path ("Complex.JsonProperty") or a
// bare field name ("JsonProperty"); the dotted path wins. Override values are
// used verbatim.
//
// A Naming is immutable and safe for concurrent use.
type Naming struct {
	convention Convention
	overrides  map[string]string
}

// DefaultNaming applies CamelCase without overrides.
var DefaultNaming = NewNaming(CamelCase, nil)

// NewNaming creates a resolver. A nil convention selects CamelCase.
// overrides is copied.
func NewNaming(convention Convention, overrides map[string]string) *Naming {
	if convention == nil {
		convention = CamelCase
	}
	copied := make(map[string]string, len(overrides))
	for k, v := range overrides {
		copied[k] = v
	}
	return &Naming{convention: convention, overrides: copied}
}

// ResolveFieldName implements FieldNameResolver.
func (n *Naming) ResolveFieldName(path odatax.FieldPath, leadingSeparator bool) string {
	if len(path) == 0 {
		return ""
	}
	names := make([]string, len(path))
	for i := range path {
		names[i] = n.segment(path[:i+1])
	}
	joined := strings.Join(names, PathSeparator)
	if leadingSeparator {
		return PathSeparator + joined
	}
	return joined
}

// segment resolves the last field of path.
func (n *Naming) segment(path odatax.FieldPath) string {
	if name, ok := n.overrides[path.String()]; ok {
		return name
	}
	field := path[len(path)-1]
	if name, ok := n.overrides[field]; ok {
		return name
	}
	return n.convention(field)
}

// NamingConfig is the serialized form of a Naming.
type NamingConfig struct {
	// Convention is camel, pascal, lower or verbatim.
	Convention string `yaml:"convention" json:"convention"`
	// Overrides maps source fields or dotted source paths to index names.
	Overrides map[string]string `yaml:"overrides" json:"overrides"`
}

// Naming builds the resolver described by c.
func (c NamingConfig) Naming() (*Naming, error) {
	convention, err := ConventionByName(c.Convention)
	if err != nil {
		return nil, err
	}
	for field, name := range c.Overrides {
		if strings.TrimSpace(field) == "" || strings.TrimSpace(name) == "" {
			return nil, errors.Wrapf(odatax.ErrInvalidOption, "naming override %q: %q must be non-empty", field, name)
		}
	}
	return NewNaming(convention, c.Overrides), nil
}

// ParseNamingConfig decodes a YAML (or JSON) naming configuration.
func ParseNamingConfig(data []byte) (*Naming, error) {
	var cfg NamingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse naming config")
	}
	return cfg.Naming()
}
