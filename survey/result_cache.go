package survey

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultResultPath is the default path for the last registration result
const DefaultResultPath = ".registration-result.json"

// SaveResult writes a registration result as indented JSON
func SaveResult(path string, result *Result) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating result directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing result file: %w", err)
	}

	return nil
}

// LoadResult reads a saved registration result. The stored transform must
// still be a proper rotation.
func LoadResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result file: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parsing result file: %w", err)
	}

	if err := result.Transform.Validate(); err != nil {
		return nil, fmt.Errorf("result file %s: %w", path, err)
	}

	return &result, nil
}

// IsStale reports whether the result is older than maxAge
func (r *Result) IsStale(maxAge time.Duration) bool {
	if r == nil || r.CreatedAt.IsZero() {
		return true
	}
	return time.Since(r.CreatedAt) > maxAge
}
