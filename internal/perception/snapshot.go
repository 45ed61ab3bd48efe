package perception

import (
	"fmt"
	"strings"
)

// BoundingBox is one labeled, interactive region of the viewport. Index is
// the number drawn on the annotated screenshot.
type BoundingBox struct {
	Index    int     `json:"index"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Text     string  `json:"text"`
	Kind     string  `json:"type"`
	Selector string  `json:"selector"`
}

// Describe renders the box as `{index} (<{kind}/>): "{text}"`.
func (b BoundingBox) Describe() string {
	return fmt.Sprintf("%d (<%s/>): %q", b.Index, b.Kind, strings.TrimSpace(b.Text))
}

// Image is a captured screenshot and its storage reference.
type Image struct {
	Data []byte `json:"-"`
	Ref  string `json:"ref"`
}

// Snapshot is the observed page state at one point in time.
type Snapshot struct {
	Before  Image         `json:"before_annotated_img"`
	Current Image         `json:"img"`
	Boxes   []BoundingBox `json:"bboxes"`
}

// Box resolves a label index against the snapshot.
func (s *Snapshot) Box(index int) (BoundingBox, bool) {
	if s == nil || index < 0 || index >= len(s.Boxes) {
		return BoundingBox{}, false
	}
	return s.Boxes[index], true
}

// Descriptions is a convenience for Descriptions(s.Boxes). A nil snapshot
// renders an empty list.
func (s *Snapshot) Descriptions() string {
	if s == nil {
		return Descriptions(nil)
	}
	return Descriptions(s.Boxes)
}
