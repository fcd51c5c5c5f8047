package one

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Element 是远端返回的树形记录节点，支持 "TEMPLATE/DISK[1]/SIZE"、"HISTORY[last()]" 等 XPath 路径访问。
type Element struct {
	node *xmlquery.Node
}

// ParseElement 将 XML 文档解析为 Element 树，返回根节点。
func ParseElement(data []byte) (*Element, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("解析 XML 失败: %w", err)
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return &Element{node: n}, nil
		}
	}
	return nil, errors.New("XML 文档为空")
}

// Name 返回节点名。
func (e *Element) Name() string {
	if e == nil || e.node == nil {
		return ""
	}
	return e.node.Data
}

// Text 返回节点内的文本，去掉首尾空白。
func (e *Element) Text() string {
	if e == nil || e.node == nil {
		return ""
	}
	return strings.TrimSpace(e.node.InnerText())
}

// Get 返回路径匹配到的第一个节点文本，不存在时返回空串。
func (e *Element) Get(path string) string {
	return e.Find(path).Text()
}

// Has 判断路径是否存在（即使文本为空）。
func (e *Element) Has(path string) bool {
	return e.Find(path) != nil
}

// Find 返回路径匹配到的第一个节点，路径非法或不存在时返回 nil。
func (e *Element) Find(path string) *Element {
	if e == nil || e.node == nil {
		return nil
	}
	n, err := xmlquery.Query(e.node, relative(path))
	if err != nil || n == nil {
		return nil
	}
	return &Element{node: n}
}

// Each 按文档顺序返回路径匹配到的所有节点。
func (e *Element) Each(path string) []*Element {
	if e == nil || e.node == nil {
		return nil
	}
	nodes, err := xmlquery.QueryAll(e.node, relative(path))
	if err != nil || len(nodes) == 0 {
		return nil
	}
	res := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		res = append(res, &Element{node: n})
	}
	return res
}

// ID 返回记录的 ID 字段。
func (e *Element) ID() string {
	return e.Get("ID")
}

// relative 把路径限定在当前节点之下，"/A/B" 与 "A/B" 等价。
func relative(path string) string {
	path = strings.Trim(path, "/")
	if path == "" {
		return "."
	}
	return path
}
