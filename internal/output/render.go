package output

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"oneacct/internal/validate"
)

//go:embed templates/*.tmpl
var files embed.FS

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	},
	// pbsTime 输出批处理调度日志使用的时间格式。
	"pbsTime": func(unix int64) string {
		return time.Unix(unix, 0).UTC().Format("01/02/2006 15:04:05")
	},
	"hms": func(seconds int64) string {
		return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
	},
}

// Renderer 按输出格式把记录渲染为文本。
type Renderer struct {
	name string
	tmpl *template.Template
}

// NewRenderer 加载内嵌模板。
func NewRenderer(outputType string) (*Renderer, error) {
	name := outputType + ".tmpl"
	tmpl, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("加载模板 %s 失败: %w", outputType, err)
	}
	return &Renderer{name: name, tmpl: tmpl}, nil
}

// MustRenderer 与 NewRenderer 相同，失败时 panic，便于在初始化阶段暴露错误。
func MustRenderer(outputType string) *Renderer {
	r, err := NewRenderer(outputType)
	if err != nil {
		panic(err)
	}
	return r
}

// Render 渲染一批记录。
func (r *Renderer) Render(records []validate.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, r.name, records); err != nil {
		return nil, fmt.Errorf("渲染模板 %s 失败: %w", r.name, err)
	}
	return buf.Bytes(), nil
}
