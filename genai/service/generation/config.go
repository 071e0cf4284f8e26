package generation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Default generation parameters.
const (
	DefaultModel       = "gemini-1.5-flash"
	DefaultTemperature = 0.7
	DefaultTopP        = 0.95
	DefaultTopK        = 40
)

// ModelConfig is the caller supplied model_config payload. Unset fields fall
// back to the service defaults.
type ModelConfig struct {
	APIKey        string   `json:"api_key,omitempty" yaml:"apiKey,omitempty"`
	ModelName     string   `json:"model_name,omitempty" yaml:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty" yaml:"topP,omitempty"`
	TopK          *int     `json:"top_k,omitempty" yaml:"topK,omitempty"`
	SafetySetting string   `json:"safety_setting,omitempty" yaml:"safety,omitempty"`
}

var (
	apiKeyAliases      = []string{"api_key", "apiKey"}
	modelNameAliases   = []string{"model_name", "modelName", "model"}
	temperatureAliases = []string{"temperature"}
	topPAliases        = []string{"top_p", "topP"}
	topKAliases        = []string{"top_k", "topK"}
	safetyAliases      = []string{"safety_setting", "safetySetting"}
)

// UnmarshalJSON accepts both camelCase and snake_case keys; numeric values may
// be sent as strings.
func (c *ModelConfig) UnmarshalJSON(data []byte) error {
	raw := map[string]interface{}{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.APIKey = stringValue(raw, apiKeyAliases)
	c.ModelName = stringValue(raw, modelNameAliases)
	c.SafetySetting = stringValue(raw, safetyAliases)

	var err error
	if c.Temperature, err = floatValue(raw, temperatureAliases); err != nil {
		return err
	}
	if c.TopP, err = floatValue(raw, topPAliases); err != nil {
		return err
	}
	topK, err := floatValue(raw, topKAliases)
	if err != nil {
		return err
	}
	if topK != nil {
		v := int(*topK)
		c.TopK = &v
	}
	return nil
}

func lookup(raw map[string]interface{}, keys []string) (interface{}, string, bool) {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v, key, true
		}
	}
	return nil, "", false
}

func stringValue(raw map[string]interface{}, keys []string) string {
	v, _, ok := lookup(raw, keys)
	if !ok {
		return ""
	}
	switch actual := v.(type) {
	case string:
		return strings.TrimSpace(actual)
	default:
		return strings.TrimSpace(fmt.Sprint(actual))
	}
}

func floatValue(raw map[string]interface{}, keys []string) (*float64, error) {
	v, key, ok := lookup(raw, keys)
	if !ok {
		return nil, nil
	}
	switch actual := v.(type) {
	case float64:
		return &actual, nil
	case string:
		if strings.TrimSpace(actual) == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", key, actual)
		}
		return &f, nil
	default:
		return nil, fmt.Errorf("invalid %s: %v", key, v)
	}
}

// Defaults holds the process level generation defaults.
type Defaults struct {
	Model string `yaml:"model"`
	// Temperature is nil for DefaultTemperature; an explicit 0 is kept.
	Temperature *float64 `yaml:"temperature"`
	TopP        float64  `yaml:"topP"`
	TopK        int      `yaml:"topK"`
	Safety      string   `yaml:"safety"`
}

// Init fills zero values with package defaults.
func (d *Defaults) Init() {
	if d.Model == "" {
		d.Model = DefaultModel
	}
	if d.Temperature == nil {
		temperature := DefaultTemperature
		d.Temperature = &temperature
	}
	if d.TopP == 0 {
		d.TopP = DefaultTopP
	}
	if d.TopK == 0 {
		d.TopK = DefaultTopK
	}
	if d.Safety == "" {
		d.Safety = "BLOCK_MEDIUM_AND_ABOVE"
	}
}
