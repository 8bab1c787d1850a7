package document

// 该文件定义文章模板的节点树与资源描述，供排版、测量、渲染与调试 JSON 共用。

// Document 保存模板解析后的全部文章框架与资源。
type Document struct {
	Meta      Meta
	Resources ResourceSet
	Frames    []*ContainerNode
}

// Frame 按名称查找顶层文章框架。
func (d *Document) Frame(name string) (*ContainerNode, bool) {
	if d == nil {
		return nil, false
	}
	for _, f := range d.Frames {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// ResourceSet 记录解析出的字体、颜色与样式定义。
type ResourceSet struct {
	Fonts  map[string]FontResource `json:"fonts"`
	Colors map[string]Color        `json:"colors"`
	Styles map[string]Style        `json:"styles"`
}

// FontResource 描述字体资源，src 可以是文件路径、embed:<name> 或 builtin:<name> 形式。
type FontResource struct {
	Name     string `json:"name"`
	Src      string `json:"src"`
	Style    string `json:"style"`
	Family   string `json:"family"` // 渲染器使用的 Family 名称
	Fallback string `json:"fallback"`
}

// Color 采用 0-255 的 RGB 数值。
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Style 用于描述可继承的文本样式。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// Meta 保存 PDF 元信息。
type Meta struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Subject  string   `json:"subject"`
	Creator  string   `json:"creator"`
	Keywords []string `json:"keywords"`
}

// TextLine 表示排版后的一行文本内容及其宽高（mm）。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// AutoResize 决定文本节点的高度是否随内容变化。
type AutoResize int

const (
	// AutoResizeNone 固定高度，内容超出时溢出。
	AutoResizeNone AutoResize = iota
	// AutoResizeHeight 高度随内容增长或收缩。
	AutoResizeHeight
)

func (a AutoResize) String() string {
	switch a {
	case AutoResizeHeight:
		return "height"
	default:
		return "none"
	}
}

func parseAutoResize(v string) AutoResize {
	switch v {
	case "height", "auto", "auto-height":
		return AutoResizeHeight
	default:
		return AutoResizeNone
	}
}

// Node 是模板节点的封闭变体：*TextNode、*ContainerNode 或 *OtherNode。
type Node interface {
	Name() string
	Bounds() Rect
	isNode()
}

// Rect 为页面绝对坐标（mm，左上角为原点）。
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TextNode 是可写入文字的节点。X/Y 为绝对坐标，单位 mm。
type TextNode struct {
	name string

	X          float64
	Y          float64
	Width      float64
	height     float64
	AutoResize AutoResize

	Font       FontResource
	FontSize   float64 // mm
	LineHeight float64 // mm
	Color      Color
	Align      string
	Wrap       string

	characters string
	Lines      []TextLine
}

func (*TextNode) isNode() {}

// Name 返回节点名称。
func (t *TextNode) Name() string { return t.name }

// Height 返回当前分配的高度（mm）。
func (t *TextNode) Height() float64 { return t.height }

// Characters 返回节点当前的文字内容。
func (t *TextNode) Characters() string { return t.characters }

// Bounds 返回节点的绝对边界。
func (t *TextNode) Bounds() Rect {
	return Rect{X: t.X, Y: t.Y, Width: t.Width, Height: t.height}
}

// Resize 调整节点尺寸（mm）。
func (t *TextNode) Resize(width, height float64) {
	t.Width = width
	t.height = height
}

// ContainerNode 是 frame 或 group，唯一拥有子节点的变体。
type ContainerNode struct {
	name     string
	Kind     string // "frame" | "group"
	X        float64
	Y        float64
	Width    float64
	Height   float64
	Fill     *Color
	children []Node
}

func (*ContainerNode) isNode() {}

// Name 返回节点名称。
func (c *ContainerNode) Name() string { return c.name }

// Children 返回子节点（按声明顺序）。
func (c *ContainerNode) Children() []Node { return c.children }

// Bounds 返回节点的绝对边界。
func (c *ContainerNode) Bounds() Rect {
	return Rect{X: c.X, Y: c.Y, Width: c.Width, Height: c.Height}
}

// IsFrame 判断是否为顶层文章框架。
func (c *ContainerNode) IsFrame() bool { return c.Kind == "frame" }

// OtherNode 覆盖 rect、line 与 image 等不承载文字的节点。
type OtherNode struct {
	name        string
	Kind        string
	X           float64
	Y           float64
	Width       float64
	Height      float64
	StrokeColor Color
	StrokeWidth float64 // mm
	FillColor   *Color  // 为空表示不填充
	Src         string  // image 使用
}

func (*OtherNode) isNode() {}

// Name 返回节点名称。
func (o *OtherNode) Name() string { return o.name }

// Bounds 返回节点的绝对边界。
func (o *OtherNode) Bounds() Rect {
	return Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}
