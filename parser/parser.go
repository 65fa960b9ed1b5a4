package parser

import (
	"encoding/json"
	"errors"
	"strings"
)

// Verdict represents the parsed classification from the vision model
type Verdict struct {
	IsAnomaly bool   `json:"is_anomaly"`
	Reason    string `json:"reason"`
}

// ExtractJSONFromMarkdown extracts JSON from markdown code blocks
func ExtractJSONFromMarkdown(response string) string {
	// Look for JSON code blocks with ``` markers
	startMarker := "```"
	endMarker := "```"

	startIdx := strings.Index(response, startMarker)
	if startIdx == -1 {
		// No code block found, try to find JSON object directly
		startIdx = strings.Index(response, "{")
		if startIdx == -1 {
			return response
		}
		endIdx := strings.LastIndex(response, "}")
		if endIdx == -1 {
			return response
		}
		return strings.TrimSpace(response[startIdx : endIdx+1])
	}

	// Find the end of the first code block
	endIdx := strings.Index(response[startIdx+len(startMarker):], endMarker)
	if endIdx == -1 {
		return response
	}
	endIdx += startIdx + len(startMarker)

	// Extract content between the markers
	content := response[startIdx+len(startMarker) : endIdx]

	// Remove the language identifier if present (e.g., "json")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 && (strings.TrimSpace(lines[0]) == "json" || strings.TrimSpace(lines[0]) == "") {
		content = strings.Join(lines[1:], "\n")
	}

	return strings.TrimSpace(content)
}

// ParseVerdict parses the vision model response into a two-field verdict.
// The model is told to answer with bare JSON but routinely wraps it in code
// fences anyway, so the response is unwrapped first.
func ParseVerdict(response string) (*Verdict, error) {
	cleaned := strings.TrimSpace(response)

	jsonContent := ExtractJSONFromMarkdown(cleaned)

	var verdict Verdict
	if err := json.Unmarshal([]byte(jsonContent), &verdict); err != nil {
		return nil, errors.New("failed to parse JSON response: " + err.Error())
	}

	if strings.TrimSpace(verdict.Reason) == "" {
		return nil, errors.New("reason is required")
	}

	return &verdict, nil
}
