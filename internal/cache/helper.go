package cache

import (
	"encoding/json"
)

// UnmarshalCacheValue converts a cached value to *T. Values stored as objects are
// returned as is and JSON strings are decoded.
func UnmarshalCacheValue[T any](value interface{}) (*T, bool) {
	if value == nil {
		return nil, false
	}

	if typed, ok := value.(*T); ok {
		return typed, true
	}

	if str, ok := value.(string); ok {
		var result T
		if err := json.Unmarshal([]byte(str), &result); err == nil {
			return &result, true
		}
	}

	return nil, false
}
