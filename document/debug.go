package document

import (
	"encoding/json"
	"os"
)

// NodeSnapshot 是节点树的 JSON 视图，便于调试或可视化。
type NodeSnapshot struct {
	Type       string         `json:"type"`
	Kind       string         `json:"kind,omitempty"`
	Name       string         `json:"name,omitempty"`
	Bounds     Rect           `json:"bounds"`
	AutoResize string         `json:"autoResize,omitempty"`
	Font       string         `json:"font,omitempty"`
	FontSize   float64        `json:"fontSize,omitempty"`
	Characters string         `json:"characters,omitempty"`
	Lines      []TextLine     `json:"lines,omitempty"`
	Overflow   float64        `json:"overflow,omitempty"`
	Children   []NodeSnapshot `json:"children,omitempty"`
}

// Snapshot 生成节点及其子树的快照。Overflow 为内容高度超出分配高度的部分。
func Snapshot(n Node) NodeSnapshot {
	switch v := n.(type) {
	case *TextNode:
		return NodeSnapshot{
			Type:       "text",
			Name:       v.Name(),
			Bounds:     v.Bounds(),
			AutoResize: v.AutoResize.String(),
			Font:       v.Font.Name,
			FontSize:   v.FontSize,
			Characters: v.Characters(),
			Lines:      v.Lines,
			Overflow:   v.ContentHeight() - v.Height(),
		}
	case *ContainerNode:
		snap := NodeSnapshot{Type: "container", Kind: v.Kind, Name: v.Name(), Bounds: v.Bounds()}
		for _, child := range v.Children() {
			snap.Children = append(snap.Children, Snapshot(child))
		}
		return snap
	case *OtherNode:
		return NodeSnapshot{Type: "other", Kind: v.Kind, Name: v.Name(), Bounds: v.Bounds()}
	default:
		return NodeSnapshot{}
	}
}

// WriteDebugJSON 将框架快照输出为 JSON。
func WriteDebugJSON(frame *ContainerNode, path string) error {
	if frame == nil {
		return nil
	}
	data, err := json.MarshalIndent(Snapshot(frame), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
