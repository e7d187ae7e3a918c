package medner

import (
	"os"

	"gopkg.in/yaml.v3"

	logging "github.com/clinlex/medfuse/internal/infrastructure/monitoring/logging"
	apperrors "github.com/clinlex/medfuse/pkg/errors"
)

// ---------------------------------------------------------------------------
// Resource types
// ---------------------------------------------------------------------------

// PatternRule is the resource form of one regex rule.
type PatternRule struct {
	Label      EntityKind `json:"label" yaml:"label"`
	Expr       string     `json:"expr" yaml:"expr"`
	Confidence float64    `json:"confidence" yaml:"confidence"`
}

// DictionaryEntry is the resource form of one vocabulary term.
type DictionaryEntry struct {
	Term  string     `json:"term" yaml:"term"`
	Label EntityKind `json:"label" yaml:"label"`
}

// RootFamily is the resource form of one morphological family: the
// derivational forms of a clinical root, all sharing a label.
type RootFamily struct {
	Root  string     `json:"root" yaml:"root"`
	Label EntityKind `json:"label" yaml:"label"`
	Forms []string   `json:"forms" yaml:"forms"`
}

// BoostCategory is the resource form of one contextual boost category.
type BoostCategory struct {
	Name     string   `json:"name" yaml:"name"`
	Boost    float64  `json:"boost" yaml:"boost"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Resources bundles all lexical resources for one engine instance.
type Resources struct {
	Patterns        []PatternRule
	Dictionary      []DictionaryEntry
	Families        []RootFamily
	BoostCategories []BoostCategory
}

// DefaultResources returns the embedded Italian clinical resources.
func DefaultResources() *Resources {
	return &Resources{
		Patterns:        builtinPatternRules(),
		Dictionary:      builtinDictionaryEntries(),
		Families:        builtinFamilies(),
		BoostCategories: builtinBoostCategories(),
	}
}

// ---------------------------------------------------------------------------
// YAML loading
// ---------------------------------------------------------------------------

// ResourcePaths points at optional YAML overrides. An empty path keeps the
// embedded resources for that section.
type ResourcePaths struct {
	PatternsFile   string `json:"patterns_file" yaml:"patterns_file"`
	DictionaryFile string `json:"dictionary_file" yaml:"dictionary_file"`
	FamiliesFile   string `json:"families_file" yaml:"families_file"`
	BoostFile      string `json:"boost_file" yaml:"boost_file"`
}

// LoadResources resolves paths into a resource bundle, starting from the
// embedded defaults and replacing each section a file is given for. A file
// that cannot be read or parsed is fatal; individually malformed entries
// inside a well-formed file are handled later by the matcher constructors,
// which skip and log them.
func LoadResources(paths ResourcePaths, logger logging.Logger) (*Resources, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	res := DefaultResources()

	if paths.PatternsFile != "" {
		var doc struct {
			Patterns []PatternRule `yaml:"patterns"`
		}
		if err := readYAMLFile(paths.PatternsFile, &doc); err != nil {
			return nil, err
		}
		if len(doc.Patterns) == 0 {
			return nil, apperrors.New(apperrors.ErrCodeLexiconEmpty, "pattern file contains no rules").WithDetail(paths.PatternsFile)
		}
		res.Patterns = doc.Patterns
		logger.Info("pattern rules loaded",
			logging.String("file", paths.PatternsFile),
			logging.Int("rules", len(doc.Patterns)))
	}

	if paths.DictionaryFile != "" {
		var doc struct {
			Terms []DictionaryEntry `yaml:"terms"`
		}
		if err := readYAMLFile(paths.DictionaryFile, &doc); err != nil {
			return nil, err
		}
		if len(doc.Terms) == 0 {
			return nil, apperrors.New(apperrors.ErrCodeLexiconEmpty, "dictionary file contains no terms").WithDetail(paths.DictionaryFile)
		}
		res.Dictionary = doc.Terms
		logger.Info("dictionary terms loaded",
			logging.String("file", paths.DictionaryFile),
			logging.Int("terms", len(doc.Terms)))
	}

	if paths.FamiliesFile != "" {
		var doc struct {
			Families []RootFamily `yaml:"families"`
		}
		if err := readYAMLFile(paths.FamiliesFile, &doc); err != nil {
			return nil, err
		}
		if len(doc.Families) == 0 {
			return nil, apperrors.New(apperrors.ErrCodeLexiconEmpty, "families file contains no root families").WithDetail(paths.FamiliesFile)
		}
		res.Families = doc.Families
		logger.Info("root families loaded",
			logging.String("file", paths.FamiliesFile),
			logging.Int("families", len(doc.Families)))
	}

	if paths.BoostFile != "" {
		var doc struct {
			Categories []BoostCategory `yaml:"categories"`
		}
		if err := readYAMLFile(paths.BoostFile, &doc); err != nil {
			return nil, err
		}
		if len(doc.Categories) == 0 {
			return nil, apperrors.New(apperrors.ErrCodeBoostTableInvalid, "boost file contains no categories").WithDetail(paths.BoostFile)
		}
		res.BoostCategories = doc.Categories
		logger.Info("boost categories loaded",
			logging.String("file", paths.BoostFile),
			logging.Int("categories", len(doc.Categories)))
	}

	return res, nil
}

func readYAMLFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeLexiconNotFound, "lexicon file not readable").WithDetail(path)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeLexiconParseFailed, "failed to parse lexicon file").WithDetail(path)
	}
	return nil
}
