package extract

import (
	"context"
	"fmt"
	"strings"

	"oneacct/internal/one"
)

// Benchmark 是主机或集群上的算力标定。
type Benchmark struct {
	Type string
	// Values 为 mixin -> 标定值。
	Values map[string]string
}

// Maps 是单个批次内只读的查找表快照。
type Maps struct {
	Users      map[string]string
	Images     map[string]string
	Clusters   map[string]string
	Benchmarks map[string]Benchmark
}

// BuildMaps 一次性拉取用户、镜像、集群、主机资源池并构建查找表。
func BuildMaps(ctx context.Context, c one.Client) (Maps, error) {
	var maps Maps
	var err error
	if maps.Users, err = one.Mapping(ctx, c, one.PoolUser, "TEMPLATE/X509_DN"); err != nil {
		return maps, fmt.Errorf("构建用户映射失败: %w", err)
	}
	if maps.Images, err = imageMapping(ctx, c); err != nil {
		return maps, fmt.Errorf("构建镜像映射失败: %w", err)
	}
	clusters, err := c.Pool(ctx, one.PoolCluster)
	if err != nil {
		return maps, fmt.Errorf("构建集群映射失败: %w", err)
	}
	maps.Clusters = make(map[string]string, len(clusters))
	for _, cl := range clusters {
		if cl.ID() == "" {
			continue
		}
		maps.Clusters[cl.ID()] = cl.Get("TEMPLATE/APEL_SITE_NAME")
	}
	hosts, err := c.Pool(ctx, one.PoolHost)
	if err != nil {
		return maps, fmt.Errorf("构建主机标定映射失败: %w", err)
	}
	maps.Benchmarks = benchmarkMapping(hosts, clusters)
	return maps, nil
}

// imageMapping 优先使用镜像模板中的目录 URI，没有时退回镜像名。
func imageMapping(ctx context.Context, c one.Client) (map[string]string, error) {
	images, err := c.Pool(ctx, one.PoolImage)
	if err != nil {
		return nil, err
	}
	res := make(map[string]string, len(images))
	for _, img := range images {
		if img.ID() == "" {
			continue
		}
		name := img.Get("TEMPLATE/VMCATALOG_ENTRY_APPL_MPURI")
		if name == "" {
			name = img.Get("NAME")
		}
		res[img.ID()] = name
	}
	return res, nil
}

// benchmarkMapping 按主机 ID 索引标定；主机自身没有标定类型时继承所在集群的。
func benchmarkMapping(hosts, clusters []*one.Element) map[string]Benchmark {
	byCluster := make(map[string]Benchmark, len(clusters))
	for _, cl := range clusters {
		if b, ok := benchmarkOf(cl); ok {
			byCluster[cl.ID()] = b
		}
	}
	res := make(map[string]Benchmark, len(hosts))
	for _, h := range hosts {
		if h.ID() == "" {
			continue
		}
		if b, ok := benchmarkOf(h); ok {
			res[h.ID()] = b
			continue
		}
		if b, ok := byCluster[h.Get("CLUSTER_ID")]; ok {
			res[h.ID()] = b
		}
	}
	return res
}

func benchmarkOf(e *one.Element) (Benchmark, bool) {
	typ := e.Get("TEMPLATE/BENCHMARK_TYPE")
	if typ == "" {
		return Benchmark{}, false
	}
	return Benchmark{Type: typ, Values: parseBenchmarkValues(e.Get("TEMPLATE/BENCHMARK_VALUES"))}, true
}

// parseBenchmarkValues 解析每行一条的 mixin=value。
func parseBenchmarkValues(raw string) map[string]string {
	values := make(map[string]string)
	for _, line := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == '\r' }) {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}
