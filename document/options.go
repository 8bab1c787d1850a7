package document

// BuildOptions 配置模板构建阶段所需的依赖，例如排版后端。
type BuildOptions struct {
	Typesetter Typesetter
}

// Typesetter 负责加载字体并根据宽度约束将文本拆成可绘制的行。
// 所有长度参数与返回值均为毫米（mm）。
type Typesetter interface {
	LoadFont(font FontResource) error
	LayoutLines(content string, width float64, font FontResource, fontSize float64, lineHeight float64, wrap string) ([]TextLine, error)
}
