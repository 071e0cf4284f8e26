// Package redact masks secrets in JSON payloads before they are logged.
package redact

import (
	"encoding/json"
	"os"
	"strings"
)

// EnvKeys overrides the default sensitive keys (comma-separated).
const EnvKeys = "FWEXEC_REDACT_KEYS"

const masked = "***REDACTED***"

var defaultKeys = []string{
	"api_key", "apikey", "authorization", "password", "passwd", "secret", "token", "credentials",
}

// DefaultKeys returns the sensitive keys, honouring EnvKeys.
func DefaultKeys() []string {
	if env := strings.TrimSpace(os.Getenv(EnvKeys)); env != "" {
		parts := strings.Split(env, ",")
		for i := range parts {
			parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
		}
		return parts
	}
	return append([]string(nil), defaultKeys...)
}

// ScrubJSONBytes masks values of keys (case-insensitive, at any depth) in a
// JSON document. Invalid JSON is returned unchanged.
func ScrubJSONBytes(data []byte, keys []string) []byte {
	if len(data) == 0 {
		return data
	}
	if len(keys) == 0 {
		keys = DefaultKeys()
	}
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[strings.ToLower(strings.TrimSpace(k))] = struct{}{}
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return data
	}
	out, err := json.Marshal(scrubValue(v, m))
	if err != nil {
		return data
	}
	return out
}

func scrubValue(v interface{}, keys map[string]struct{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if _, ok := keys[strings.ToLower(k)]; ok {
				out[k] = masked
				continue
			}
			out[k] = scrubValue(val, keys)
		}
		return out
	case []interface{}:
		for i := range t {
			t[i] = scrubValue(t[i], keys)
		}
		return t
	default:
		return v
	}
}
