package notify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatSignal renders a webhook payload for humans: sorted keys, indented,
// quotes stripped. Operators read these on their phones.
func FormatSignal(payload map[string]any) string {
	b, err := json.MarshalIndent(payload, "", "    ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return strings.ReplaceAll(string(b), `"`, "")
}
