package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/coesco/opsapi/internal/store"
)

// overridesFile pins model tables and columns without catalog queries:
//
//	models:
//	  quoteItem:
//	    table: quote_items
//	    columns: [id, quoteId, description, quantity, unitPrice]
type overridesFile struct {
	Models map[string]modelOverride `yaml:"models"`
}

type modelOverride struct {
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
}

func parseOverrides(data []byte) (*overridesFile, error) {
	var f overridesFile

	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing model overrides: %w", err)
	}

	for name, m := range f.Models {
		if len(m.Columns) == 0 {
			return nil, fmt.Errorf("model override %q: columns must not be empty", name)
		}

		if !slices.Contains(m.Columns, store.ColID) {
			return nil, fmt.Errorf("model override %q: columns must include %q", name, store.ColID)
		}
	}

	return &f, nil
}

func loadOverrides(path string) (*overridesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("model overrides file %s not found", path)
		}

		return nil, fmt.Errorf("reading model overrides: %w", err)
	}

	return parseOverrides(data)
}

func (f *overridesFile) apply(intro *store.Introspector) {
	for name, m := range f.Models {
		intro.Override(name, m.Table, store.NewColumnSet(m.Columns...))
	}
}
