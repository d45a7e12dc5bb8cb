package adapter

import "encoding/json"

// ParseAttributes decodes a JSON attributes blob. Empty, null, or malformed
// input resolves to an empty map: one bad record must degrade, never blank
// the whole view. Every attributes read in this package goes through here so
// the fallback policy is uniform.
func ParseAttributes(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func boolAttr(attrs map[string]any, key string) bool {
	b, _ := attrs[key].(bool)
	return b
}

func intAttr(attrs map[string]any, key string) int {
	// JSON numbers decode as float64.
	f, _ := attrs[key].(float64)
	return int(f)
}

func mapAttr(attrs map[string]any, key string) map[string]any {
	m, _ := attrs[key].(map[string]any)
	return m
}
