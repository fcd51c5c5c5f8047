package domain

import "time"

// NodeRow 是批量 upsert 的统一 DTO。
type NodeRow struct {
	Key        string         `json:"acct_key"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	RunID      string         `json:"run_id"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// RelRow 代表一条关系需要的信息。
type RelRow struct {
	StartKey   string         `json:"start_key"`
	EndKey     string         `json:"end_key"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	RunID      string         `json:"run_id"`
}

// Graph 收集一批节点和关系，同一 key 的节点只保留最后一次写入的属性。
type Graph struct {
	nodes map[string]NodeRow
	order []string
	Rels  []RelRow
}

func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]NodeRow)}
}

// AddNode 添加或覆盖节点。
func (g *Graph) AddNode(row NodeRow) {
	if _, ok := g.nodes[row.Key]; !ok {
		g.order = append(g.order, row.Key)
	}
	g.nodes[row.Key] = row
}

// AddRel 添加关系。
func (g *Graph) AddRel(row RelRow) {
	g.Rels = append(g.Rels, row)
}

// Nodes 按首次添加顺序返回节点。
func (g *Graph) Nodes() []NodeRow {
	res := make([]NodeRow, 0, len(g.order))
	for _, key := range g.order {
		res = append(res, g.nodes[key])
	}
	return res
}
