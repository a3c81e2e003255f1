package detection

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// TypeDetectionResult is the only inbound envelope type the client handles.
// Envelopes with any other type are ignored for forward compatibility.
const TypeDetectionResult = "detection_result"

// FrameMessage is the outbound message carrying one encoded frame.
// The payload uses the data-URI shape the service expects and the timestamp
// is wall-clock milliseconds serialized as a string.
type FrameMessage struct {
	Payload   string `json:"payload"`
	Timestamp string `json:"timestamp"`
}

// NewFrameMessage builds a FrameMessage from encoded image bytes and their
// MIME type, stamped with the given time.
func NewFrameMessage(data []byte, mimeType string, at time.Time) FrameMessage {
	return FrameMessage{
		Payload:   fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data)),
		Timestamp: strconv.FormatInt(at.UnixMilli(), 10),
	}
}

// Marshal serializes the message for transmission.
func (m FrameMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// wireDetection is the JSON shape shared by the streaming and one-shot
// responses. class_name is optional; the label table fills the gap.
type wireDetection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name,omitempty"`
}

// Envelope is a tagged inbound message from the duplex channel.
type Envelope struct {
	Type       string          `json:"type"`
	Detections []wireDetection `json:"detections"`
}

// ParseEnvelope decodes a raw inbound message. It fails only on malformed
// JSON; unknown envelope types parse fine and are for the caller to skip.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}
	return &env, nil
}

// Batch converts the envelope's detections into a Batch, resolving missing
// class names through the label table.
func (e *Envelope) Batch(labels LabelTable) Batch {
	return toBatch(e.Detections, labels)
}

// PredictResponse is the one-shot endpoint's success body.
type PredictResponse struct {
	DetectionCount int             `json:"detection_count"`
	Detections     []wireDetection `json:"detections"`
}

// ParsePredictResponse decodes a one-shot response body into a Batch along
// with the service-reported detection count.
func ParsePredictResponse(data []byte, labels LabelTable) (Batch, int, error) {
	var resp PredictResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, 0, fmt.Errorf("parse predict response: %w", err)
	}
	return toBatch(resp.Detections, labels), resp.DetectionCount, nil
}

func toBatch(wire []wireDetection, labels LabelTable) Batch {
	if len(wire) == 0 {
		return Batch{}
	}
	batch := make(Batch, 0, len(wire))
	for _, w := range wire {
		d := Detection{
			X1:         w.X1,
			Y1:         w.Y1,
			X2:         w.X2,
			Y2:         w.Y2,
			Confidence: w.Confidence,
			ClassID:    w.ClassID,
			ClassName:  w.ClassName,
		}
		// Keep the corner ordering invariant even on sloppy input.
		if d.X2 < d.X1 {
			d.X1, d.X2 = d.X2, d.X1
		}
		if d.Y2 < d.Y1 {
			d.Y1, d.Y2 = d.Y2, d.Y1
		}
		if d.ClassName == "" {
			d.ClassName = labels.Name(d.ClassID)
		}
		batch = append(batch, d)
	}
	return batch
}
