package availdata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// IntentSpec maps an intent key to a dataset and its expectations.
type IntentSpec struct {
	Dataset         string         `json:"dataset"`
	RequiredColumns []string       `json:"required_columns"`
	DefaultFilters  map[string]any `json:"default_filters"`
}

// IntentRegistry is the static intent → dataset mapping, loaded once.
type IntentRegistry struct {
	intents map[string]IntentSpec
}

// NewIntentRegistry wraps an intent map.
func NewIntentRegistry(intents map[string]IntentSpec) *IntentRegistry {
	if intents == nil {
		intents = map[string]IntentSpec{}
	}
	return &IntentRegistry{intents: intents}
}

// Get returns the spec for a key.
func (r *IntentRegistry) Get(key string) (IntentSpec, bool) {
	spec, ok := r.intents[key]
	return spec, ok
}

// Keys returns the sorted intent keys.
func (r *IntentRegistry) Keys() []string {
	out := make([]string, 0, len(r.intents))
	for k := range r.intents {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BuiltInQuestion is a curated question with role visibility.
type BuiltInQuestion struct {
	ID     string   `json:"id"`
	Text   string   `json:"text"`
	Roles  []string `json:"roles"`
	Intent string   `json:"intent"`
}

// LoadIntentRegistry reads {"intents": {...}} from a JSON file.
func LoadIntentRegistry(path string) (*IntentRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent registry: %w", err)
	}
	var obj struct {
		Intents map[string]IntentSpec `json:"intents"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse intent registry: %w", err)
	}
	return NewIntentRegistry(obj.Intents), nil
}

// LoadBuiltInQuestions reads {"questions": [...]} from a JSON file.
func LoadBuiltInQuestions(path string) ([]BuiltInQuestion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read built-in questions: %w", err)
	}
	var obj struct {
		Questions []BuiltInQuestion `json:"questions"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to parse built-in questions: %w", err)
	}
	return obj.Questions, nil
}
