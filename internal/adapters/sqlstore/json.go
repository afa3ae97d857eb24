package sqlstore

import (
	"encoding/json"
	"fmt"
)

func encodeState(state map[string]any) (string, error) {
	if state == nil {
		return "null", nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(data), nil
}
