// Package detection defines the detection data model shared by the streaming
// and one-shot paths, plus the wire formats used to talk to the remote service.
package detection

import "fmt"

// Detection is a single labeled bounding box in source-frame pixel
// coordinates, as produced by the remote inference service.
type Detection struct {
	X1         float64
	Y1         float64
	X2         float64
	Y2         float64
	Confidence float64
	ClassID    int
	ClassName  string
}

// Width returns the box width in pixels.
func (d Detection) Width() float64 { return d.X2 - d.X1 }

// Height returns the box height in pixels.
func (d Detection) Height() float64 { return d.Y2 - d.Y1 }

// Batch is an ordered detection list. A batch always replaces the previously
// published one wholesale; batches are never merged.
type Batch []Detection

// LabelTable maps class IDs to class names, indexed by position.
type LabelTable []string

// DefaultLabels matches the classes of the deployed weed-detection model.
var DefaultLabels = LabelTable{"Clover", "Crabgrass", "Gamochaeta", "Sphagneticola", "Syndrella"}

// Name returns the class name for id, or a "class_<id>" placeholder when the
// id falls outside the table.
func (t LabelTable) Name(id int) string {
	if id >= 0 && id < len(t) {
		return t[id]
	}
	return fmt.Sprintf("class_%d", id)
}
