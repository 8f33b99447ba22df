package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

var fenceStripper = strings.NewReplacer("```json", "", "```JSON", "", "```Json", "", "```", "")

// CleanJSON strips markdown code-fence artifacts from model output. The LLM
// is allowed to wrap its JSON in fenced blocks; consumers must normalize
// before parsing.
func CleanJSON(s string) string {
	return strings.TrimSpace(fenceStripper.Replace(s))
}

// DecodeModelJSON cleans fences from raw model output and unmarshals the
// remainder into out. A parse failure here is a hard failure for the caller;
// there are no silent defaults.
func DecodeModelJSON(raw string, out any) error {
	if err := json.Unmarshal([]byte(CleanJSON(raw)), out); err != nil {
		return fmt.Errorf("model output is not valid JSON: %w", err)
	}
	return nil
}
