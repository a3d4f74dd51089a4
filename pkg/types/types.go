package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Box is an annotation rectangle in canonical image-pixel space: x1, y1, x2, y2.
type Box [4]float64

// NewBox creates a Box from its corner coordinates
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{x1, y1, x2, y2}
}

// Width returns x2 - x1
func (b Box) Width() float64 { return b[2] - b[0] }

// Height returns y2 - y1
func (b Box) Height() float64 { return b[3] - b[1] }

// Normalize swaps corners so that x1 <= x2 and y1 <= y2
func (b Box) Normalize() Box {
	if b[0] > b[2] {
		b[0], b[2] = b[2], b[0]
	}
	if b[1] > b[3] {
		b[1], b[3] = b[3], b[1]
	}
	return b
}

// Clamp normalizes the box and restricts it to [0,width]x[0,height]
func (b Box) Clamp(width, height float64) Box {
	b = b.Normalize()
	b[0] = math.Min(math.Max(b[0], 0), width)
	b[2] = math.Min(math.Max(b[2], 0), width)
	b[1] = math.Min(math.Max(b[1], 0), height)
	b[3] = math.Min(math.Max(b[3], 0), height)
	return b
}

// Round rounds every coordinate to the nearest integer pixel
func (b Box) Round() Box {
	return Box{math.Round(b[0]), math.Round(b[1]), math.Round(b[2]), math.Round(b[3])}
}

// Metadata is the open per-annotation mapping carried alongside the required fields
type Metadata map[string]any

// Clone returns a shallow copy of the metadata
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the metadata value for key when it is a string
func (m Metadata) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// MetaColor is the metadata key holding a per-annotation stroke color
const MetaColor = "color"

// reserved keys are owned by Annotation and never read from or written to Metadata
var reserved = map[string]struct{}{"id": {}, "label": {}, "box": {}}

// Annotation is a labelled bounding box
type Annotation struct {
	ID       string
	Label    string
	Box      Box
	Metadata Metadata
}

// Color returns the per-annotation stroke color, empty when unset
func (a Annotation) Color() string {
	return a.Metadata.String(MetaColor)
}

// Info returns the label information carried by the annotation
func (a Annotation) Info() LabelInfo {
	return LabelInfo{Label: a.Label, Metadata: a.Metadata.Clone()}
}

// MarshalJSON merges metadata with the required id, label and box fields
func (a Annotation) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(a.Metadata)+3)
	for k, v := range a.Metadata {
		if _, ok := reserved[k]; ok {
			continue
		}
		obj[k] = v
	}
	obj["id"] = a.ID
	obj["label"] = a.Label
	obj["box"] = a.Box
	return json.Marshal(obj)
}

// UnmarshalJSON reads the required fields and keeps every other key as metadata
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Annotation
	if v, ok := raw["id"]; ok {
		id, err := decodeID(v)
		if err != nil {
			return err
		}
		out.ID = id
	}
	if v, ok := raw["label"]; ok {
		if err := json.Unmarshal(v, &out.Label); err != nil {
			return fmt.Errorf("invalid label: %w", err)
		}
	}
	if v, ok := raw["box"]; ok {
		if err := json.Unmarshal(v, &out.Box); err != nil {
			return fmt.Errorf("invalid box: %w", err)
		}
	}
	for k, v := range raw {
		if _, ok := reserved[k]; ok {
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("invalid metadata %q: %w", k, err)
		}
		if out.Metadata == nil {
			out.Metadata = Metadata{}
		}
		out.Metadata[k] = val
	}

	*a = out
	return nil
}

// decodeID accepts both string and numeric ids
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid id %s", string(raw))
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

// LabelInfo is the label name and metadata attached to a new or edited annotation
type LabelInfo struct {
	Label    string
	Metadata Metadata
}

// Color returns the stroke color requested for the label, empty when unset
func (l LabelInfo) Color() string {
	return l.Metadata.String(MetaColor)
}

// ChangeType identifies the kind of mutation carried by a ChangeEvent
type ChangeType string

const (
	ChangeInit   ChangeType = "init"
	ChangeAdd    ChangeType = "add"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent is pushed to the host after every logical change
type ChangeEvent struct {
	Type ChangeType   `json:"type"`
	Data []Annotation `json:"data"`
}

// NormBox represents a normalized bounding box with coordinates in [0,1] range
type NormBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Detection is a single object proposed by a vision model
type Detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        NormBox `json:"box"`
}

// DetectionResult contains the complete detection result from the vision model
type DetectionResult struct {
	Objects     []Detection `json:"objects"`
	Description string      `json:"description"`
	Tags        []string    `json:"tags"`
}
