package renderer

import "github.com/sagarsiwach/sanews-autofit/document"

// Renderer 将填充后的文章框架输出为最终文件，例如 PDF。
// Render 返回生成的二进制数据以及可能的错误。
type Renderer interface {
	Render(doc *document.Document, frame *document.ContainerNode) ([]byte, error)
}
