package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"llm_router/internal/logging"
)

const modelMapFile = "model-map.json"

// Category and order values become file names, so they are restricted to a
// safe charset before touching the filesystem.
var keySegmentRe = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// ModelRef identifies one deployable model at one provider.
type ModelRef struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// Accessor is the read path over the files the fetch pipeline produces.
// Every call re-reads and re-validates; there is no caching here.
type Accessor struct {
	root string
}

// NewAccessor creates an accessor over the given data root.
func NewAccessor(root string) *Accessor {
	return &Accessor{root: root}
}

// GetCatalogEntry reads the listing for one (category, order) pair: an
// ordered sequence of model identifier strings. A shape mismatch fails with
// a DecodeError, never with a default value.
func (a *Accessor) GetCatalogEntry(category, order string) ([]string, error) {
	if !keySegmentRe.MatchString(category) || !keySegmentRe.MatchString(order) {
		return nil, fmt.Errorf("%w: %q/%q", ErrInvalidKey, category, order)
	}

	key := category + "/" + order
	data, err := os.ReadFile(filepath.Join(a.root, category, order+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog entry %s: %w", key, err)
	}

	var models []string
	if err := json.Unmarshal(data, &models); err != nil {
		logging.Errorf("catalog entry %s has unexpected shape: %v", key, err)
		return nil, &DecodeError{Key: key, Cause: err}
	}

	return models, nil
}

// GetModelMap reads the model map: model key to the {model, provider} pairs
// that can serve it. Same DecodeError contract as GetCatalogEntry.
func (a *Accessor) GetModelMap() (map[string][]ModelRef, error) {
	data, err := os.ReadFile(filepath.Join(a.root, modelMapFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read model map: %w", err)
	}

	var modelMap map[string][]ModelRef
	if err := json.Unmarshal(data, &modelMap); err != nil {
		logging.Errorf("model map has unexpected shape: %v", err)
		return nil, &DecodeError{Key: "model-map", Cause: err}
	}

	for key, refs := range modelMap {
		for _, ref := range refs {
			if ref.Model == "" || ref.Provider == "" {
				err := fmt.Errorf("entry %q has a pair missing model or provider", key)
				logging.Errorf("model map has unexpected shape: %v", err)
				return nil, &DecodeError{Key: "model-map", Cause: err}
			}
		}
	}

	return modelMap, nil
}
