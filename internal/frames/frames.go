// Package frames models stack frames as they arrive on error events and
// selects the frames that are worth deriving code mappings from.
package frames

import (
	"encoding/json"
	"fmt"
	"os"
)

// FrameData carries processing annotations attached to a frame.
type FrameData struct {
	Category string `json:"category,omitempty"`
}

// Frame is one stack frame of an event.
type Frame struct {
	Filename string    `json:"filename,omitempty"`
	Module   string    `json:"module,omitempty"`
	AbsPath  string    `json:"abs_path,omitempty"`
	InApp    *bool     `json:"in_app,omitempty"`
	Data     FrameData `json:"data,omitzero"`
}

// Category returns the frame's category, empty when uncategorized.
func (f Frame) Category() string {
	return f.Data.Category
}

// IsInApp reports whether the frame is explicitly marked in-app.
func (f Frame) IsInApp() bool {
	return f.InApp != nil && *f.InApp
}

// key identifies a frame for de-duplication within one run.
func (f Frame) key() [3]string {
	return [3]string{f.Filename, f.Module, f.AbsPath}
}

// Stacktrace is an ordered list of frames.
type Stacktrace struct {
	Frames []Frame `json:"frames"`
}

// ExceptionValue is one exception in a chain.
type ExceptionValue struct {
	Type       string      `json:"type,omitempty"`
	Value      string      `json:"value,omitempty"`
	Stacktrace *Stacktrace `json:"stacktrace,omitempty"`
}

// Exception holds the exception chain of an event.
type Exception struct {
	Values []ExceptionValue `json:"values"`
}

// Event is an error event belonging to a project.
type Event struct {
	EventID        string      `json:"event_id"`
	GroupID        int64       `json:"group_id,omitempty"`
	ProjectID      int64       `json:"project_id"`
	OrganizationID int64       `json:"organization_id"`
	Platform       string      `json:"platform"`
	Stacktrace     *Stacktrace `json:"stacktrace,omitempty"`
	Exception      *Exception  `json:"exception,omitempty"`
}

// Frames returns the frames of the top-level stack trace followed by the
// frames of every exception value, in order.
func (e Event) Frames() []Frame {
	var out []Frame
	if e.Stacktrace != nil {
		out = append(out, e.Stacktrace.Frames...)
	}
	if e.Exception != nil {
		for _, v := range e.Exception.Values {
			if v.Stacktrace != nil {
				out = append(out, v.Stacktrace.Frames...)
			}
		}
	}
	return out
}

// LoadEvent reads a JSON-encoded event from path.
func LoadEvent(path string) (*Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decoding event %s: %w", path, err)
	}
	return &ev, nil
}

// Bool returns a pointer to b, for building frames.
func Bool(b bool) *bool {
	return &b
}
