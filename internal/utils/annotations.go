package utils

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/menta2k/image-annotator/pkg/types"
)

// ReadAnnotations reads a JSON array of annotations. Unknown keys are kept as metadata.
func ReadAnnotations(path string) ([]types.Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read annotations: %w", err)
	}

	var anns []types.Annotation
	if err := json.Unmarshal(data, &anns); err != nil {
		return nil, fmt.Errorf("failed to parse annotations %s: %w", path, err)
	}
	return anns, nil
}

// WriteAnnotations writes annotations as an indented JSON array
func WriteAnnotations(path string, anns []types.Annotation) error {
	if anns == nil {
		anns = []types.Annotation{}
	}
	data, err := json.MarshalIndent(anns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal annotations: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write annotations: %w", err)
	}
	return nil
}
