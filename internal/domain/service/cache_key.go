package service

import (
	"encoding/json"

	"github.com/ucarion/jcs"
)

// queryKey builds the cache key for an operation: a canonical (RFC 8785),
// order-independent serialization of operation, realm, character and every
// query parameter. Identical queries always hash to the identical key.
func queryKey(op, realm, character string, params map[string]int) (string, error) {
	payload := map[string]interface{}{
		"op":        op,
		"realm":     realm,
		"character": character,
		"params":    params,
	}
	// Round-trip through encoding/json so jcs sees plain decoded types.
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var normalized interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return "", err
	}
	return jcs.Format(normalized)
}
