package recipe

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed catalog.json
var embeddedCatalog []byte

// LoadEmbedded builds a store from the sample catalog compiled into the binary.
func LoadEmbedded() (*Store, error) {
	recipes, err := decodeRecipes(embeddedCatalog)
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedded catalog: %w", err)
	}
	return NewStore(recipes)
}

// LoadDir builds a store from every *.json file in dir. A file may hold a
// single recipe object or an array of recipes. Files are read in name order.
func LoadDir(dir string) (*Store, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog files: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no recipe files found in %s", dir)
	}
	sort.Strings(matches)

	var all []Recipe
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read recipe file: %w", err)
		}
		recipes, err := decodeRecipes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
		}
		all = append(all, recipes...)
	}
	return NewStore(all)
}

// Load picks LoadDir when dir is set and LoadEmbedded otherwise.
func Load(dir string) (*Store, error) {
	if dir == "" {
		return LoadEmbedded()
	}
	return LoadDir(dir)
}

func decodeRecipes(data []byte) ([]Recipe, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var recipes []Recipe
		if err := json.Unmarshal(data, &recipes); err != nil {
			return nil, err
		}
		return recipes, nil
	}
	var r Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return []Recipe{r}, nil
}
