package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/image-annotator/pkg/types"
)

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInlineComment = regexp.MustCompile(`(?m)//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseDetections turns raw model output into a DetectionResult. Output that
// is not JSON yields an empty result whose tags mark it as a fallback.
func ParseDetections(raw string) *types.DetectionResult {
	raw = SanitizeJSON(raw)

	if !strings.HasPrefix(raw, "{") {
		return fallback("Model returned non-JSON response", "non-json")
	}

	var result types.DetectionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return fallback("Failed to parse model response", "parse-error")
	}
	if result.Objects == nil {
		result.Objects = []types.Detection{}
	}
	return &result
}

func fallback(description, tag string) *types.DetectionResult {
	return &types.DetectionResult{
		Objects:     []types.Detection{},
		Description: description,
		Tags:        []string{tag, "fallback"},
	}
}

// IsFallback reports whether the result was synthesized from unusable output
func IsFallback(r *types.DetectionResult) bool {
	for _, t := range r.Tags {
		if t == "fallback" {
			return true
		}
	}
	return false
}

// SanitizeJSON strips code fences, comments and trailing commas and keeps
// only the outermost object.
func SanitizeJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInlineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}

	return strings.TrimSpace(raw)
}
