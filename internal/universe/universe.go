// Package universe loads the tradable stock list from YAML and keeps
// the store's copy in sync with it.
package universe

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"quant-core/internal/stock"
)

// entry is one stock in the YAML file.
type entry struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// file is the top-level YAML structure.
type file struct {
	Stocks []entry `yaml:"stocks"`
}

// Load reads the stock universe from a YAML file. Entries without a
// code are rejected, duplicate codes keep the last name seen.
func Load(path string) ([]stock.Ref, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML stock list.
func Parse(data []byte) ([]stock.Ref, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}
	if len(f.Stocks) == 0 {
		return nil, errors.New("universe is empty")
	}

	seen := make(map[string]int, len(f.Stocks))
	refs := make([]stock.Ref, 0, len(f.Stocks))
	for i, e := range f.Stocks {
		if e.Code == "" {
			return nil, fmt.Errorf("universe entry %d has no code", i)
		}
		if at, dup := seen[e.Code]; dup {
			refs[at].Name = e.Name
			continue
		}
		seen[e.Code] = len(refs)
		refs = append(refs, stock.Ref{Code: e.Code, Name: e.Name})
	}
	return refs, nil
}

// Syncer upserts universe entries into persistent storage.
type Syncer interface {
	UpsertStock(ctx context.Context, ref stock.Ref) error
}

// Sync pushes the loaded universe into the store.
func Sync(ctx context.Context, s Syncer, refs []stock.Ref) error {
	for _, ref := range refs {
		if err := s.UpsertStock(ctx, ref); err != nil {
			return fmt.Errorf("upsert stock %s: %w", ref.Code, err)
		}
	}
	return nil
}
