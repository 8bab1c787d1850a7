package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sagarsiwach/sanews-autofit/dsl"
)

const defaultFontSizePt = 12.0

// Build 根据模板 AST 生成文章框架节点树，并完成初次排版。
func Build(tpl *dsl.Template, opts BuildOptions) (*Document, error) {
	if tpl == nil {
		return nil, fmt.Errorf("模板为空")
	}
	if opts.Typesetter == nil {
		return nil, fmt.Errorf("document: 缺少排版后端 Typesetter")
	}

	res, err := collectResources(tpl)
	if err != nil {
		return nil, err
	}
	b := &builder{res: res, ts: opts.Typesetter}

	doc := &Document{
		Meta:      collectMeta(tpl),
		Resources: res,
	}
	for _, section := range tpl.Frames() {
		frame, err := b.buildFrame(section)
		if err != nil {
			return nil, err
		}
		doc.Frames = append(doc.Frames, frame)
	}
	if len(doc.Frames) == 0 {
		return nil, fmt.Errorf("模板中缺少 frame 段落")
	}
	return doc, nil
}

type builder struct {
	res ResourceSet
	ts  Typesetter
}

func (b *builder) buildFrame(section *dsl.FrameSection) (*ContainerNode, error) {
	_, attrs := parseArgs(section.Params)
	width := lengthMM(attrs["width"], 0)
	height := lengthMM(attrs["height"], 0)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame %s 缺少有效的 width/height（第 %d 行）", section.Name, section.Pos.Line)
	}
	frame := &ContainerNode{
		name:   string(section.Name),
		Kind:   "frame",
		X:      lengthMM(attrs["x"], 0),
		Y:      lengthMM(attrs["y"], 0),
		Width:  width,
		Height: height,
	}
	if v := attrs["fill"]; v != "" {
		c := resolveColor(v, b.res)
		frame.Fill = &c
	}
	if section.Block == nil {
		return frame, nil
	}
	if err := b.processBlock(section.Block, frame); err != nil {
		return nil, err
	}
	return frame, nil
}

// processBlock 依次处理 block 内的命令，支持 text、group 以及 rect/line/image 形状。
func (b *builder) processBlock(block *dsl.Block, parent *ContainerNode) error {
	for _, stmt := range block.Statements {
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		var (
			node Node
			err  error
		)
		switch strings.ToLower(cmd.Name) {
		case "text":
			node, err = b.buildText(cmd, parent)
		case "group":
			node, err = b.buildGroup(cmd, parent)
		case "rect", "line", "image":
			node, err = b.buildShape(cmd, parent)
		default:
			// 其余命令暂未实现，忽略即可
			continue
		}
		if err != nil {
			return err
		}
		if node != nil {
			parent.children = append(parent.children, node)
		}
	}
	return nil
}

func (b *builder) buildText(cmd *dsl.Command, parent *ContainerNode) (*TextNode, error) {
	name, attrs := parseArgs(cmd.Args)
	if name == "" {
		return nil, fmt.Errorf("text 节点缺少名称（第 %d 行）", cmd.Pos.Line)
	}
	attrs = mergeStyleAttributes(attrs["style"], attrs, b.res.Styles)

	fontName := attrs["font"]
	if fontName == "" {
		fontName = "Body"
	}
	font, err := resolveFontResource(fontName, b.res)
	if err != nil {
		return nil, err
	}

	relX := lengthMM(attrs["x"], 0)
	fontSize := lengthMM(attrs["size"], defaultFontSizePt*PtToMm)
	node := &TextNode{
		name:       name,
		X:          parent.X + relX,
		Y:          parent.Y + lengthMM(attrs["y"], 0),
		Width:      lengthMM(attrs["width"], parent.Width-relX),
		height:     lengthMM(attrs["height"], 0),
		AutoResize: parseAutoResize(strings.ToLower(attrs["autoresize"])),
		Font:       font,
		FontSize:   fontSize,
		LineHeight: ParseLineHeight(attrs["line-height"]).ResolveMM(fontSize),
		Color:      resolveColor(attrs["color"], b.res),
		Align:      normalizeAlign(attrs["align"]),
		Wrap:       normalizeWrap(attrs["wrap"]),
		characters: extractText(cmd.Block),
	}
	if node.Width <= 0 {
		return nil, fmt.Errorf("text %s 宽度无效（第 %d 行）", name, cmd.Pos.Line)
	}
	if attrs["height"] == "" {
		node.AutoResize = AutoResizeHeight
	}
	if err := typeset(node, b.ts); err != nil {
		return nil, err
	}
	return node, nil
}

func (b *builder) buildGroup(cmd *dsl.Command, parent *ContainerNode) (*ContainerNode, error) {
	if cmd.Block == nil {
		return nil, fmt.Errorf("group 语句缺少子内容（第 %d 行）", cmd.Pos.Line)
	}
	name, attrs := parseArgs(cmd.Args)
	relX := lengthMM(attrs["x"], 0)
	relY := lengthMM(attrs["y"], 0)
	group := &ContainerNode{
		name:   name,
		Kind:   "group",
		X:      parent.X + relX,
		Y:      parent.Y + relY,
		Width:  lengthMM(attrs["width"], parent.Width-relX),
		Height: lengthMM(attrs["height"], parent.Height-relY),
	}
	if err := b.processBlock(cmd.Block, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (b *builder) buildShape(cmd *dsl.Command, parent *ContainerNode) (*OtherNode, error) {
	name, attrs := parseArgs(cmd.Args)
	kind := strings.ToLower(cmd.Name)
	node := &OtherNode{name: name, Kind: kind}

	switch kind {
	case "line":
		ln, ok := parseLineShape(attrs)
		if !ok {
			return nil, nil
		}
		node.X, node.Y = parent.X+ln[0], parent.Y+ln[1]
		node.Width, node.Height = ln[2]-ln[0], ln[3]-ln[1]
		node.StrokeColor = resolveColor(attrs["color"], b.res)
		node.StrokeWidth = lengthMM(attrs["stroke-width"], 0)
		return node, nil
	case "image":
		node.Src = attrs["src"]
		if node.Src == "" {
			return nil, fmt.Errorf("image 缺少 src（第 %d 行）", cmd.Pos.Line)
		}
	}

	node.X = parent.X + lengthMM(attrs["x"], 0)
	node.Y = parent.Y + lengthMM(attrs["y"], 0)
	node.Width = lengthMM(attrs["width"], 0)
	node.Height = lengthMM(attrs["height"], 0)
	if kind == "rect" && (node.Width <= 0 || node.Height <= 0) {
		return nil, nil
	}
	if v := attrs["stroke"]; v != "" {
		node.StrokeColor = resolveColor(v, b.res)
	}
	node.StrokeWidth = lengthMM(attrs["stroke-width"], 0)
	if v := attrs["fill"]; v != "" {
		c := resolveColor(v, b.res)
		node.FillColor = &c
	}
	return node, nil
}

// parseLineShape 支持完整形式（x1/y1/x2/y2）与简化形式：
//
//	line x <len> y <len> length <len> [dir h|v]
//
// 返回相对父节点的 [x1, y1, x2, y2]。
func parseLineShape(attrs map[string]string) ([4]float64, bool) {
	x1, y1 := lengthMM(attrs["x1"], 0), lengthMM(attrs["y1"], 0)
	x2, y2 := lengthMM(attrs["x2"], 0), lengthMM(attrs["y2"], 0)
	if x1 != 0 || y1 != 0 || x2 != 0 || y2 != 0 {
		return [4]float64{x1, y1, x2, y2}, true
	}
	x, y := lengthMM(attrs["x"], 0), lengthMM(attrs["y"], 0)
	length := lengthMM(attrs["length"], 0)
	if length <= 0 {
		return [4]float64{}, false
	}
	switch strings.ToLower(strings.TrimSpace(attrs["dir"])) {
	case "", "h", "hor", "horizontal":
		return [4]float64{x, y, x + length, y}, true
	case "v", "ver", "vertical":
		return [4]float64{x, y, x, y + length}, true
	default:
		return [4]float64{}, false
	}
}

func collectResources(tpl *dsl.Template) (ResourceSet, error) {
	res := ResourceSet{
		Fonts:  map[string]FontResource{},
		Colors: map[string]Color{},
		Styles: map[string]Style{},
	}
	rawStyles := map[string]Style{}

	for _, section := range tpl.Sections {
		if section.Resources == nil || section.Resources.Block == nil {
			continue
		}
		for _, stmt := range section.Resources.Block.Statements {
			if stmt.Command == nil {
				continue
			}
			switch stmt.Command.Name {
			case "font":
				font := parseFontResource(stmt.Command)
				if font.Name != "" {
					res.Fonts[font.Name] = font
				}
			case "color":
				name, value := parseColorResource(stmt.Command)
				if name == "" || value == "" {
					continue
				}
				if c, err := parseColor(value); err == nil {
					res.Colors[name] = c
				}
			case "style":
				style := parseStyleResource(stmt.Command)
				if style.Name != "" {
					rawStyles[style.Name] = style
				}
			}
		}
	}

	if len(res.Fonts) == 0 {
		res.Fonts["Body"] = FontResource{
			Name:   "Body",
			Src:    "embed:goregular",
			Family: "Body",
		}
	}

	resolvedStyles, err := resolveStyles(rawStyles)
	if err != nil {
		return res, err
	}
	res.Styles = resolvedStyles
	return res, nil
}

func collectMeta(tpl *dsl.Template) Meta {
	meta := Meta{
		Creator: "sanews-autofit",
	}
	for _, section := range tpl.Sections {
		if section.Meta == nil || section.Meta.Block == nil {
			continue
		}
		for _, stmt := range section.Meta.Block.Statements {
			if stmt.Assignment == nil {
				continue
			}
			switch strings.ToLower(stmt.Assignment.Key) {
			case "title":
				meta.Title = valueToString(stmt.Assignment.Value)
			case "author":
				meta.Author = valueToString(stmt.Assignment.Value)
			case "subject":
				meta.Subject = valueToString(stmt.Assignment.Value)
			case "creator":
				meta.Creator = valueToString(stmt.Assignment.Value)
			case "keywords":
				meta.Keywords = valueToStringSlice(stmt.Assignment.Value)
			}
		}
	}
	return meta
}

func parseFontResource(cmd *dsl.Command) FontResource {
	if len(cmd.Args) == 0 {
		return FontResource{}
	}
	font := FontResource{
		Name:   cmd.Args[0].Value,
		Family: cmd.Args[0].Value,
	}
	if cmd.Block == nil {
		return font
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		val := valueToString(stmt.Assignment.Value)
		switch stmt.Assignment.Key {
		case "src":
			font.Src = val
		case "style":
			font.Style = val
		case "family":
			font.Family = val
		case "fallback":
			font.Fallback = val
		}
	}
	return font
}

func parseStyleResource(cmd *dsl.Command) Style {
	if len(cmd.Args) == 0 {
		return Style{}
	}
	style := Style{
		Name:  cmd.Args[0].Value,
		Props: map[string]string{},
	}
	if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
		style.Extends = cmd.Args[2].Value
	}
	if cmd.Block == nil {
		return style
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Assignment == nil {
			continue
		}
		if val := valueToString(stmt.Assignment.Value); val != "" {
			style.Props[stmt.Assignment.Key] = val
		}
	}
	return style
}

func resolveStyles(styles map[string]Style) (map[string]Style, error) {
	resolved := map[string]Style{}
	visiting := map[string]bool{}

	var dfs func(name string) (Style, error)
	dfs = func(name string) (Style, error) {
		if style, ok := resolved[name]; ok {
			return style, nil
		}
		style, ok := styles[name]
		if !ok {
			return Style{}, fmt.Errorf("style %s 未定义", name)
		}
		if visiting[name] {
			return Style{}, fmt.Errorf("style 继承存在循环：%s", name)
		}
		visiting[name] = true

		props := map[string]string{}
		if style.Extends != "" {
			parent, err := dfs(style.Extends)
			if err != nil {
				return Style{}, err
			}
			for k, v := range parent.Props {
				props[k] = v
			}
		}
		for k, v := range style.Props {
			props[k] = v
		}
		style.Props = props
		resolved[name] = style
		delete(visiting, name)
		return style, nil
	}

	for name := range styles {
		if _, err := dfs(name); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

func parseColorResource(cmd *dsl.Command) (string, string) {
	if len(cmd.Args) == 0 {
		return "", ""
	}
	value := ""
	if len(cmd.Args) > 1 {
		value = cmd.Args[len(cmd.Args)-1].Value
	}
	return cmd.Args[0].Value, value
}

// parseArgs 将命令参数解析为名称与键值对：参数个数为奇数时首个参数视为节点名称。
func parseArgs(args []*dsl.Lexeme) (string, map[string]string) {
	result := map[string]string{}
	cursor := 0
	var name string
	if len(args)%2 == 1 {
		name = args[0].Value
		cursor = 1
	}
	for cursor < len(args)-1 {
		result[strings.ToLower(args[cursor].Value)] = args[cursor+1].Value
		cursor += 2
	}
	return name, result
}

func mergeStyleAttributes(style string, inline map[string]string, styles map[string]Style) map[string]string {
	out := make(map[string]string)
	if style != "" {
		if s, ok := styles[style]; ok {
			for k, v := range s.Props {
				out[k] = v
			}
		}
	}
	for k, v := range inline {
		out[k] = v
	}
	return out
}

func extractText(block *dsl.Block) string {
	if block == nil {
		return ""
	}
	var builder strings.Builder
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			builder.WriteString(string(stmt.Text.Value))
		}
	}
	return builder.String()
}

func resolveFontResource(name string, res ResourceSet) (FontResource, error) {
	if font, ok := res.Fonts[name]; ok {
		return font, nil
	}
	if font, ok := res.Fonts["Body"]; ok {
		return font, nil
	}
	for _, font := range res.Fonts {
		return font, nil
	}
	return FontResource{}, fmt.Errorf("字体 %s 未定义，且没有可用的默认字体", name)
}

func normalizeWrap(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "break-word", "word-break:break-word":
		return "break-word"
	case "nowrap", "no-wrap":
		return "nowrap"
	default:
		return "anywhere"
	}
}

func normalizeAlign(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "center", "middle":
		return "center"
	case "right", "end":
		return "right"
	default:
		return ""
	}
}

func resolveColor(value string, res ResourceSet) Color {
	if value == "" {
		return Color{R: 30, G: 30, B: 30}
	}
	if c, ok := res.Colors[value]; ok {
		return c
	}
	if strings.HasPrefix(value, "#") {
		if c, err := parseColor(value); err == nil {
			return c
		}
	}
	return Color{R: 30, G: 30, B: 30}
}

func parseColor(value string) (Color, error) {
	value = strings.TrimPrefix(value, "#")
	switch len(value) {
	case 3:
		return Color{
			R: mustHex(strings.Repeat(string(value[0]), 2)),
			G: mustHex(strings.Repeat(string(value[1]), 2)),
			B: mustHex(strings.Repeat(string(value[2]), 2)),
		}, nil
	case 6, 8:
		return Color{
			R: mustHex(value[0:2]),
			G: mustHex(value[2:4]),
			B: mustHex(value[4:6]),
		}, nil
	default:
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
}

func mustHex(s string) int {
	v, _ := strconv.ParseInt(s, 16, 64)
	return int(v)
}

// lengthMM 解析长度并换算为 mm，无法解析时返回 def。
func lengthMM(value string, def float64) float64 {
	l, ok := ParseLength(value)
	if !ok {
		return def
	}
	return l.ToMM()
}

func valueToString(val *dsl.Value) string {
	if val == nil {
		return ""
	}
	switch {
	case val.String != nil:
		return string(*val.String)
	case val.Number != nil:
		return *val.Number
	case val.Color != nil:
		return *val.Color
	case val.Ident != nil:
		return *val.Ident
	default:
		return ""
	}
}

func valueToStringSlice(val *dsl.Value) []string {
	if val == nil {
		return nil
	}
	if val.Array == nil {
		if s := valueToString(val); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(val.Array.Values))
	for _, item := range val.Array.Values {
		if s := valueToString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
