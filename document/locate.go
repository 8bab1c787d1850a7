package document

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sagarsiwach/sanews-autofit/article"
)

// 模板中约定的节点名称。
const (
	NameHeadline = "Headline"
	NameTitle    = "#Title"
	NameSubtitle = "#Subtitle"
	NameSource   = "Source"
	NameURL      = "URL"
	NameColumn   = "Title" // 正文分栏
)

var (
	// ErrSelectionCount 表示选中节点数量不是 1。
	ErrSelectionCount = errors.New("selection must contain exactly one node")
	// ErrNotFrame 表示选中节点不是顶层框架。
	ErrNotFrame = errors.New("selected node is not a frame")
)

// Walk 深度优先遍历节点树，fn 返回 false 时停止遍历。
func Walk(root Node, fn func(Node) bool) {
	walk(root, fn)
}

func walk(n Node, fn func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	if c, ok := n.(*ContainerNode); ok {
		for _, child := range c.Children() {
			if !walk(child, fn) {
				return false
			}
		}
	}
	return true
}

// TextNodes 按深度优先顺序收集所有文本节点。
func TextNodes(root Node) []*TextNode {
	var out []*TextNode
	Walk(root, func(n Node) bool {
		if t, ok := n.(*TextNode); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Select 按名称解析选区：每个名称取深度优先遍历中的第一个匹配节点。
func (d *Document) Select(names ...string) ([]Node, error) {
	out := make([]Node, 0, len(names))
	for _, name := range names {
		var found Node
		for _, frame := range d.Frames {
			Walk(frame, func(n Node) bool {
				if n.Name() == name {
					found = n
					return false
				}
				return true
			})
			if found != nil {
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("未找到节点 %s", name)
		}
		out = append(out, found)
	}
	return out, nil
}

// SingleFrame 校验选区恰好为一个顶层框架。
func SingleFrame(selection []Node) (*ContainerNode, error) {
	if len(selection) != 1 {
		return nil, ErrSelectionCount
	}
	frame, ok := selection[0].(*ContainerNode)
	if !ok || !frame.IsFrame() {
		return nil, ErrNotFrame
	}
	return frame, nil
}

// DetectLayout 从框架中识别文章各个槽位；分栏按绝对 x 坐标从左到右排序。
func DetectLayout(frame *ContainerNode) article.Layout {
	var (
		layout  article.Layout
		columns []*TextNode
	)
	assign := func(dst *article.Slot, node *TextNode) {
		if *dst == nil {
			*dst = node
		}
	}
	for _, node := range TextNodes(frame) {
		switch node.Name() {
		case NameHeadline:
			assign(&layout.Headline, node)
		case NameTitle:
			assign(&layout.Title, node)
		case NameSubtitle:
			assign(&layout.Subtitle, node)
		case NameSource:
			assign(&layout.Source, node)
		case NameURL:
			assign(&layout.URL, node)
		case NameColumn:
			columns = append(columns, node)
		}
	}
	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].X < columns[j].X
	})
	for _, c := range columns {
		layout.Columns = append(layout.Columns, c)
	}
	return layout
}
