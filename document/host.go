package document

import (
	"context"
	"fmt"
	"math"

	"github.com/sagarsiwach/sanews-autofit/article"
)

// Host 在文档节点上实现写入文字与溢出测量。
type Host struct {
	ts Typesetter
}

// NewHost 创建绑定排版后端的 Host。
func NewHost(ts Typesetter) *Host {
	return &Host{ts: ts}
}

// SetText 先加载字体，再写入文字并重新排版。
func (h *Host) SetText(ctx context.Context, slot article.Slot, text string) error {
	node, err := textNode(slot)
	if err != nil {
		return err
	}
	if err := h.ts.LoadFont(node.Font); err != nil {
		return fmt.Errorf("加载字体 %s 失败: %w", node.Font.Name, err)
	}
	node.characters = text
	return typeset(node, h.ts)
}

// MeasureOverflow 返回文字完整排下所需高度与当前分配高度之差（mm），
// 正数表示溢出，负数表示仍有余量。测量期间临时切换为自动高度，
// 返回前无论成功与否都会恢复原有的尺寸模式与高度。
func (h *Host) MeasureOverflow(ctx context.Context, slot article.Slot) (float64, error) {
	node, err := textNode(slot)
	if err != nil {
		return 0, err
	}
	if err := h.ts.LoadFont(node.Font); err != nil {
		return 0, fmt.Errorf("加载字体 %s 失败: %w", node.Font.Name, err)
	}

	originalHeight := node.height
	override := node.overrideSizing(AutoResizeHeight)
	defer override.Release()

	if err := typeset(node, h.ts); err != nil {
		return 0, err
	}
	return node.height - originalHeight, nil
}

// sizingOverride 记录临时尺寸模式切换之前的状态。
type sizingOverride struct {
	node     *TextNode
	mode     AutoResize
	height   float64
	released bool
}

func (t *TextNode) overrideSizing(mode AutoResize) *sizingOverride {
	o := &sizingOverride{node: t, mode: t.AutoResize, height: t.height}
	t.AutoResize = mode
	return o
}

// Release 恢复尺寸模式与高度，可重复调用。
func (o *sizingOverride) Release() {
	if o.released {
		return
	}
	o.node.AutoResize = o.mode
	o.node.Resize(o.node.Width, o.height)
	o.released = true
}

func textNode(slot article.Slot) (*TextNode, error) {
	if slot == nil {
		return nil, fmt.Errorf("slot 为空")
	}
	node, ok := slot.(*TextNode)
	if !ok {
		return nil, fmt.Errorf("slot %s 不是文本节点", slot.Name())
	}
	if node == nil {
		return nil, fmt.Errorf("slot 为空")
	}
	return node, nil
}

// typeset 重新排版节点文字；自动高度模式下同步更新节点高度。
func typeset(node *TextNode, ts Typesetter) error {
	lines, err := ts.LayoutLines(node.characters, node.Width, node.Font, node.FontSize, node.LineHeight, node.Wrap)
	if err != nil {
		return fmt.Errorf("排版文本 %s 失败: %w", node.name, err)
	}
	if len(lines) == 0 {
		lines = []TextLine{{Content: "", Width: 0, Height: node.FontSize}}
	}

	total := 0.0
	for i := range lines {
		if lines[i].Height <= 0 {
			lines[i].Height = node.FontSize
		}
		if i == 0 {
			lines[i].GapBefore = 0
		} else if lines[i].GapBefore <= 0 {
			lines[i].GapBefore = math.Max(node.LineHeight-lines[i].Height, 0)
		}
		total += lines[i].GapBefore + lines[i].Height
	}
	node.Lines = lines
	if node.AutoResize == AutoResizeHeight {
		node.height = total
	}
	return nil
}

// ContentHeight 返回节点当前文字排下所需的总高度（mm）。
func (t *TextNode) ContentHeight() float64 {
	total := 0.0
	for _, ln := range t.Lines {
		total += ln.GapBefore + ln.Height
	}
	return total
}
