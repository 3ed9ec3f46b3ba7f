package colorhist

import (
	"encoding/json"
	"fmt"
)

// ToJSON serializes a histogram for database storage.
func ToJSON(h Histogram) (string, error) {
	data, err := json.Marshal([]float32(h))
	if err != nil {
		return "", fmt.Errorf("failed to marshal histogram: %w", err)
	}
	return string(data), nil
}

// FromJSON deserializes a stored histogram. Empty or "[]" input returns
// (nil, nil): the record exists but carries no color profile.
func FromJSON(s string) (Histogram, error) {
	if s == "" || s == "[]" {
		return nil, nil
	}
	var values []float32
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal histogram: %w", err)
	}
	return Histogram(values), nil
}
