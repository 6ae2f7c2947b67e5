package puc

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "dataconta/pkg/errors"
)

// chartFile is the on-disk override format:
//
//	categories:
//	  otros_ingresos: ["4210", "4295", "4299"]
//	accounts:
//	  "4135": Venta de software
type chartFile struct {
	Categories map[string][]string `yaml:"categories"`
	Accounts   map[string]string   `yaml:"accounts"`
}

// LoadChart reads a YAML chart override. Categories listed in the file
// replace the built-in prefixes for that category; accounts are merged
// over the built-in names.
func LoadChart(path string) (*Chart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, path, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFilePermission, path, err)
	}

	return ParseChart(data, path)
}

// ParseChart builds a chart from YAML bytes; source names the input in errors
func ParseChart(data []byte, source string) (*Chart, error) {
	var file chartFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "chart", source, err)
	}

	categories := make(map[string][]string, len(defaultCategories))
	for k, v := range defaultCategories {
		categories[k] = v
	}

	for category, prefixes := range file.Categories {
		if _, ok := defaultCategories[category]; !ok {
			return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "chart.categories", category, nil).
				WithSuggestion(fmt.Sprintf("use one of: %s", strings.Join(Categories(), ", ")))
		}
		for _, p := range prefixes {
			if err := CheckCompliance(p); err != nil {
				return nil, err
			}
		}
		categories[category] = prefixes
	}

	accounts := make(map[string]string, len(defaultAccounts)+len(file.Accounts))
	for k, v := range defaultAccounts {
		accounts[k] = v
	}
	for code, name := range file.Accounts {
		if err := CheckCompliance(code); err != nil {
			return nil, err
		}
		accounts[code] = name
	}

	return newChart(categories, accounts), nil
}
