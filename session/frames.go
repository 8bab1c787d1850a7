package session

import (
	"fmt"

	"github.com/sagarsiwach/sanews-autofit/document"
	"github.com/sagarsiwach/sanews-autofit/renderer"
)

// Snapshot returns the JSON view of a frame as it currently stands.
func (s *Session) Snapshot(frameName string) (document.NodeSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, ok := s.doc.Frame(frameName)
	if !ok {
		return document.NodeSnapshot{}, fmt.Errorf("frame %q not found", frameName)
	}
	return document.Snapshot(frame), nil
}

// Render exports a frame with r.
func (s *Session) Render(frameName string, r renderer.Renderer) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, ok := s.doc.Frame(frameName)
	if !ok {
		return nil, fmt.Errorf("frame %q not found", frameName)
	}
	out, err := r.Render(s.doc, frame)
	if err != nil {
		return nil, fmt.Errorf("render frame %s: %w", frameName, err)
	}
	return out, nil
}

// Frames lists the frame names of the document.
func (s *Session) Frames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.doc.Frames))
	for _, f := range s.doc.Frames {
		names = append(names, f.Name())
	}
	return names
}
