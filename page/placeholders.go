package page

import (
	"encoding/json"
	"fmt"
)

// parsePlaceholders decodes a {"data": [{"Key": ..., "Text": ...}]} sheet.
func parsePlaceholders(data []byte) (map[string]string, error) {
	var sheet struct {
		Data []struct {
			Key  string `json:"Key"`
			Text string `json:"Text"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("failed to parse placeholders: %w", err)
	}

	out := make(map[string]string, len(sheet.Data))
	for _, row := range sheet.Data {
		out[row.Key] = row.Text
	}
	return out, nil
}
