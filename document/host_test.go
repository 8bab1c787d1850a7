package document

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func firstColumn(t *testing.T, doc *Document) *TextNode {
	t.Helper()
	frame, ok := doc.Frame("Article")
	if !ok {
		t.Fatalf("未找到 Article 框架")
	}
	layout := DetectLayout(frame)
	if len(layout.Columns) == 0 {
		t.Fatalf("未识别到分栏")
	}
	return layout.Columns[0].(*TextNode)
}

func TestMeasureOverflowSigned(t *testing.T) {
	ts := &stubTypesetter{}
	host := NewHost(ts)
	col := firstColumn(t, buildArticle(t, ts))
	ctx := context.Background()

	// 分栏高 50mm、行高 10mm：7 个单词溢出 20mm，3 个单词余 20mm。
	cases := []struct {
		words int
		want  float64
	}{
		{7, 20},
		{5, 0},
		{3, -20},
	}
	for _, c := range cases {
		if err := host.SetText(ctx, col, strings.TrimSpace(strings.Repeat("word ", c.words))); err != nil {
			t.Fatalf("SetText 失败: %v", err)
		}
		got, err := host.MeasureOverflow(ctx, col)
		if err != nil {
			t.Fatalf("MeasureOverflow 失败: %v", err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%d 个单词: overflow=%g want=%g", c.words, got, c.want)
		}
		if col.AutoResize != AutoResizeNone || col.Height() != 50 {
			t.Fatalf("测量后未恢复尺寸: mode=%v height=%g", col.AutoResize, col.Height())
		}
	}
}

func TestMeasureOverflowRestoresOnFailure(t *testing.T) {
	ts := &stubTypesetter{}
	host := NewHost(ts)
	col := firstColumn(t, buildArticle(t, ts))

	boom := errors.New("layout failed")
	ts.layoutErr = boom
	if _, err := host.MeasureOverflow(context.Background(), col); !errors.Is(err, boom) {
		t.Fatalf("期望返回排版错误，实际 %v", err)
	}
	if col.AutoResize != AutoResizeNone {
		t.Fatalf("失败后尺寸模式未恢复: %v", col.AutoResize)
	}
	if col.Height() != 50 {
		t.Fatalf("失败后高度未恢复: %g", col.Height())
	}
}

func TestMeasureOverflowFontLoadFailure(t *testing.T) {
	ts := &stubTypesetter{}
	host := NewHost(ts)
	col := firstColumn(t, buildArticle(t, ts))

	ts.loadErr = errors.New("no font")
	if _, err := host.MeasureOverflow(context.Background(), col); err == nil {
		t.Fatalf("字体加载失败时应报错")
	}
	if col.AutoResize != AutoResizeNone || col.Height() != 50 {
		t.Fatalf("字体加载失败不应改变尺寸")
	}
}

func TestSetTextLoadsFontBeforeLayout(t *testing.T) {
	ts := &stubTypesetter{}
	host := NewHost(ts)
	col := firstColumn(t, buildArticle(t, ts))
	ts.calls = nil

	if err := host.SetText(context.Background(), col, "CAPE TOWN"); err != nil {
		t.Fatalf("SetText 失败: %v", err)
	}
	if len(ts.calls) != 2 || ts.calls[0] != "load:Body" || ts.calls[1] != "layout" {
		t.Fatalf("调用顺序错误: %v", ts.calls)
	}
	if col.Characters() != "CAPE TOWN" {
		t.Fatalf("文字未写入: %q", col.Characters())
	}
	if col.Height() != 50 {
		t.Fatalf("固定高度节点写入文字后高度不应变化: %g", col.Height())
	}
}

type foreignSlot struct{}

func (foreignSlot) Name() string    { return "Title" }
func (foreignSlot) Height() float64 { return 10 }

func TestHostRejectsForeignSlot(t *testing.T) {
	host := NewHost(&stubTypesetter{})
	if err := host.SetText(context.Background(), foreignSlot{}, "x"); err == nil {
		t.Fatalf("非文本节点应报错")
	}
	if _, err := host.MeasureOverflow(context.Background(), nil); err == nil {
		t.Fatalf("空 slot 应报错")
	}
}

func TestSizingOverrideReleaseIsIdempotent(t *testing.T) {
	node := &TextNode{name: "Title", Width: 10, height: 30}
	o := node.overrideSizing(AutoResizeHeight)
	node.height = 99
	o.Release()
	node.height = 42
	o.Release()
	if node.height != 42 || node.AutoResize != AutoResizeNone {
		t.Fatalf("重复 Release 不应再次恢复: height=%g mode=%v", node.height, node.AutoResize)
	}
}
