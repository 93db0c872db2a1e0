package rate

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
)

// DeriveKeyFromProviderOptions extracts an API key from a backend's raw
// options JSON and returns a rate-limit grouping key of client+sha256(key).
// Returns an error when no key can be found. Only the common "api_key" and
// "api_key_env" option names are understood; the mock backend falls back
// to a fixed debug key when neither is set.
func DeriveKeyFromProviderOptions(client string, raw json.RawMessage) (LimitKey, error) {
	// Parsed against generic JSON keys to avoid depending on plugins/* types.
	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)

	pick := func(m map[string]any, key string) string {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}

	key := ""
	switch client {
	case "openai", "anthropic":
		key = pick(obj, "api_key")
		if key == "" {
			if env := pick(obj, "api_key_env"); env != "" {
				key = os.Getenv(env)
			}
		}
	case "mock", "flaky":
		key = pick(obj, "api_key")
		if key == "" {
			key = "MOCK_DEBUG_KEY"
		}
	default:
		// Unknown clients fall back to the generic api_key/api_key_env pair.
		key = pick(obj, "api_key")
		if key == "" {
			if env := pick(obj, "api_key_env"); env != "" {
				key = os.Getenv(env)
			}
		}
	}

	if key == "" {
		return "", fmt.Errorf("rate: missing api key for client %s", client)
	}
	sum := sha256.Sum256([]byte(key))
	return LimitKey(fmt.Sprintf("%s:%x", client, sum[:])), nil
}
