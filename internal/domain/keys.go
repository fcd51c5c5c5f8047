package domain

import (
	"fmt"
	"sort"
	"strings"
)

// 核算图谱中的节点标签与关系类型。
const (
	LabelSite           = "Site"
	LabelGroup          = "Group"
	LabelUser           = "User"
	LabelVirtualMachine = "VirtualMachine"
	LabelHost           = "Host"
	LabelAccounted      = "Accounted"

	RelRuns     = "RUNS"
	RelOwns     = "OWNS"
	RelMemberOf = "MEMBER_OF"
	RelRanOn    = "RAN_ON"
)

const (
	PrefixSite  = "SITE"
	PrefixGroup = "GRP"
	PrefixUser  = "USR"
	PrefixVM    = "VM"
	PrefixHost  = "HOST"
)

// Labels 列出需要唯一约束的节点标签。
var Labels = []string{LabelSite, LabelGroup, LabelUser, LabelVirtualMachine, LabelHost}

// MakeKey 统一生成 acct_key，带上前缀以避免不同实体冲突。
func MakeKey(prefix string, rawID any) string {
	return fmt.Sprintf("%s_%v", prefix, rawID)
}

// LabelPattern 根据标签集合拼成 Cypher 模板所需的字符串，如 ":A:B"。
func LabelPattern(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return ":" + strings.Join(sorted, ":")
}

// JoinLabels 简单拼接标签用于 map key（内部使用）。
func JoinLabels(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}
