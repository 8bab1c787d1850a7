package document

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/sagarsiwach/sanews-autofit/dsl"
)

// stubTypesetter 是一个最小实现：每个单词排成一行，行高取入参 lineHeight。
type stubTypesetter struct {
	calls     []string
	loadErr   error
	layoutErr error
}

func (s *stubTypesetter) LoadFont(font FontResource) error {
	s.calls = append(s.calls, "load:"+font.Name)
	return s.loadErr
}

func (s *stubTypesetter) LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error) {
	s.calls = append(s.calls, "layout")
	if s.layoutErr != nil {
		return nil, s.layoutErr
	}
	words := strings.Fields(content)
	if len(words) == 0 {
		return []TextLine{{Content: "", Height: lineHeight}}, nil
	}
	lines := make([]TextLine, 0, len(words))
	for _, w := range words {
		lines = append(lines, TextLine{Content: w, Width: 1, Height: lineHeight})
	}
	return lines, nil
}

const articleTemplate = `
template SANews v1 {
  meta {
    title: "SA News"
    keywords: [ "news", "layout" ]
  }

  resources {
    font Body { src: "embed:goregular" }
    font Heading {
      src: "embed:gobold"
      style: "bold"
    }
    color Ink = #222222
    style Column { font: Body size: 10mm line-height: 1x }
    style Lead extends Column { size: 5mm }
  }

  frame Article width 280mm height 400mm {
    text Headline x 10mm y 10mm width 260mm height 8mm font Heading size 4mm
    text "#Title" x 10mm y 20mm width 260mm height 20mm font Heading size 8mm { "Headline placeholder" }
    text "#Subtitle" x 10mm y 42mm width 260mm height 10mm style Lead
    group Body x 10mm y 60mm width 260mm height 300mm {
      text Title x 180mm y 0 width 80mm height 50mm style Column
      text Title x 0 y 0 width 80mm height 50mm style Column
      text Title x 90mm y 0 width 80mm height 50mm style Column
    }
    text Source x 10mm y 370mm width 120mm height 6mm
    text URL x 140mm y 370mm width 130mm autoresize height
    rect x 0 y 0 width 280mm height 400mm stroke Ink
    line x 10mm y 56mm length 260mm
  }
}
`

func buildArticle(t *testing.T, ts Typesetter) *Document {
	t.Helper()
	tpl, err := dsl.Parse(strings.NewReader(articleTemplate))
	if err != nil {
		t.Fatalf("解析模板失败: %v", err)
	}
	doc, err := Build(tpl, BuildOptions{Typesetter: ts})
	if err != nil {
		t.Fatalf("构建文档失败: %v", err)
	}
	return doc
}

func TestBuildArticleTemplate(t *testing.T) {
	doc := buildArticle(t, &stubTypesetter{})

	if doc.Meta.Title != "SA News" || len(doc.Meta.Keywords) != 2 {
		t.Fatalf("meta 解析错误: %+v", doc.Meta)
	}
	frame, ok := doc.Frame("Article")
	if !ok {
		t.Fatalf("未找到 Article 框架")
	}
	if !frame.IsFrame() || frame.Width != 280 || frame.Height != 400 {
		t.Fatalf("框架尺寸错误: %+v", frame.Bounds())
	}
	if got := len(frame.Children()); got != 8 {
		t.Fatalf("期望 8 个子节点，实际 %d", got)
	}

	title, ok := frame.Children()[1].(*TextNode)
	if !ok || title.Name() != "#Title" {
		t.Fatalf("第二个子节点应为 #Title，实际 %#v", frame.Children()[1])
	}
	if title.Characters() != "Headline placeholder" {
		t.Fatalf("#Title 初始文字错误: %q", title.Characters())
	}
	if title.Font.Name != "Heading" || title.Font.Style != "bold" {
		t.Fatalf("#Title 字体错误: %+v", title.Font)
	}

	subtitle := frame.Children()[2].(*TextNode)
	if math.Abs(subtitle.FontSize-5) > 1e-9 || math.Abs(subtitle.LineHeight-5) > 1e-9 {
		t.Fatalf("style extends 未生效: size=%g lineHeight=%g", subtitle.FontSize, subtitle.LineHeight)
	}

	group, ok := frame.Children()[3].(*ContainerNode)
	if !ok || group.Kind != "group" || len(group.Children()) != 3 {
		t.Fatalf("Body 分组解析错误: %#v", frame.Children()[3])
	}
	col := group.Children()[0].(*TextNode)
	if col.X != 190 || col.Y != 60 || col.Height() != 50 || col.AutoResize != AutoResizeNone {
		t.Fatalf("分栏坐标应为绝对坐标: %+v", col.Bounds())
	}

	url := frame.Children()[5].(*TextNode)
	if url.AutoResize != AutoResizeHeight {
		t.Fatalf("URL 应为自动高度")
	}
	if diff := math.Abs(url.Height() - url.ContentHeight()); diff > 1e-9 || url.Height() <= 0 {
		t.Fatalf("自动高度节点高度应等于内容高度: height=%g content=%g", url.Height(), url.ContentHeight())
	}

	rect, ok := frame.Children()[6].(*OtherNode)
	if !ok || rect.Kind != "rect" || rect.StrokeColor != (Color{R: 0x22, G: 0x22, B: 0x22}) {
		t.Fatalf("rect 解析错误: %#v", frame.Children()[6])
	}
	line := frame.Children()[7].(*OtherNode)
	if line.Kind != "line" || line.Width != 260 || line.Height != 0 {
		t.Fatalf("line 解析错误: %+v", line)
	}
}

// TestTextHeightInvariant 断言：自动高度节点 Height == Σ(line.Height + line.GapBefore)。
func TestTextHeightInvariant(t *testing.T) {
	ts := &stubTypesetter{}
	doc := buildArticle(t, ts)
	frame, _ := doc.Frame("Article")
	url := frame.Children()[5].(*TextNode)

	if err := NewHost(ts).SetText(context.Background(), url, "https://example.org/a/very/long path segments here"); err != nil {
		t.Fatalf("SetText 失败: %v", err)
	}
	total := 0.0
	for _, ln := range url.Lines {
		total += ln.GapBefore + ln.Height
	}
	if len(url.Lines) != 4 {
		t.Fatalf("期望 4 行，实际 %d", len(url.Lines))
	}
	if diff := math.Abs(total - url.Height()); diff > 1e-6 {
		t.Fatalf("高度不变式不成立: got=%g want=%g", url.Height(), total)
	}
}

func TestBuildRejectsFrameWithoutSize(t *testing.T) {
	tpl, err := dsl.ParseString(`template T v1 { frame Article width 100mm { text A width 10mm } }`)
	if err != nil {
		t.Fatalf("解析模板失败: %v", err)
	}
	if _, err := Build(tpl, BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
		t.Fatalf("缺少 height 的 frame 应报错")
	}
}

func TestBuildRejectsStyleCycle(t *testing.T) {
	tpl, err := dsl.ParseString(`template T v1 {
  resources {
    style A extends B { size: 9pt }
    style B extends A { size: 10pt }
  }
  frame Article width 100mm height 100mm { text X width 10mm }
}`)
	if err != nil {
		t.Fatalf("解析模板失败: %v", err)
	}
	if _, err := Build(tpl, BuildOptions{Typesetter: &stubTypesetter{}}); err == nil {
		t.Fatalf("循环继承应报错")
	}
}

func TestBuildPropagatesTypesetterError(t *testing.T) {
	tpl, err := dsl.ParseString(articleTemplate)
	if err != nil {
		t.Fatalf("解析模板失败: %v", err)
	}
	boom := errors.New("boom")
	_, err = Build(tpl, BuildOptions{Typesetter: &stubTypesetter{layoutErr: boom}})
	if !errors.Is(err, boom) {
		t.Fatalf("期望包装 typesetter 错误，实际 %v", err)
	}
}

func TestBuildRequiresTypesetter(t *testing.T) {
	tpl, err := dsl.ParseString(articleTemplate)
	if err != nil {
		t.Fatalf("解析模板失败: %v", err)
	}
	if _, err := Build(tpl, BuildOptions{}); err == nil {
		t.Fatalf("缺少 Typesetter 时应报错")
	}
}
