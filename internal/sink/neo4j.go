package sink

import (
	"context"
	"fmt"
	"time"

	"oneacct/internal/cypher"
	"oneacct/internal/domain"
	"oneacct/pkg/util"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig 控制 Neo4j 连接参数。
type Neo4jConfig struct {
	URI                  string
	Username             string
	Password             string
	Database             string
	MaxConnectionPool    int
	ConnectionTimeoutSec int
	BatchSize            int
}

type graphWriter interface {
	RunWrite(ctx context.Context, query string, params map[string]any) error
	Close(ctx context.Context) error
}

// neo4jClient 封装 Neo4j Driver，提供最小写接口。
type neo4jClient struct {
	driver   neo4j.DriverWithContext
	database string
}

func newNeo4jClient(ctx context.Context, cfg Neo4jConfig) (*neo4jClient, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri 不能为空")
	}
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(config *neo4j.Config) {
		if cfg.MaxConnectionPool > 0 {
			config.MaxConnectionPoolSize = cfg.MaxConnectionPool
		}
		if cfg.ConnectionTimeoutSec > 0 {
			config.SocketConnectTimeout = time.Duration(cfg.ConnectionTimeoutSec) * time.Second
		}
	})
	if err != nil {
		return nil, fmt.Errorf("创建 neo4j driver 失败: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j 无法连通: %w", err)
	}
	return &neo4jClient{driver: driver, database: cfg.Database}, nil
}

func (c *neo4jClient) Close(ctx context.Context) error {
	if c == nil || c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

// RunWrite 执行写事务。
func (c *neo4jClient) RunWrite(ctx context.Context, query string, params map[string]any) error {
	sess := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database, AccessMode: neo4j.AccessModeWrite})
	defer sess.Close(ctx)
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, runErr := tx.Run(ctx, query, params)
		return nil, runErr
	})
	if err != nil {
		return fmt.Errorf("执行写入失败: %w", err)
	}
	return nil
}

// Neo4jSink 把核算记录镜像为 站点/属组/用户/虚拟机/主机 图谱。
type Neo4jSink struct {
	client    graphWriter
	batchSize int
	now       func() time.Time
}

// NewNeo4jSink 连接 Neo4j 并确保唯一约束存在。
func NewNeo4jSink(ctx context.Context, cfg Neo4jConfig) (*Neo4jSink, error) {
	client, err := newNeo4jClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := newNeo4jSink(client, cfg.BatchSize)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	return s, nil
}

func newNeo4jSink(client graphWriter, batchSize int) *Neo4jSink {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Neo4jSink{client: client, batchSize: batchSize, now: time.Now}
}

// EnsureSchema 为每个节点标签建立 acct_key 唯一约束。
func (s *Neo4jSink) EnsureSchema(ctx context.Context) error {
	for _, stmt := range cypher.Statements("init_schema.cql", map[string]any{"Labels": domain.Labels}) {
		if err := s.client.RunWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("执行 schema 语句失败: %w", err)
		}
	}
	return nil
}

func (s *Neo4jSink) Name() string { return "neo4j" }

// Publish 先写节点再写关系。
func (s *Neo4jSink) Publish(ctx context.Context, b Batch) error {
	if len(b.Records) == 0 {
		return nil
	}
	g := BuildGraph(b, s.now())
	if err := s.upsertNodes(ctx, g.Nodes()); err != nil {
		return err
	}
	return s.upsertRels(ctx, g.Rels)
}

func (s *Neo4jSink) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *Neo4jSink) upsertNodes(ctx context.Context, rows []domain.NodeRow) error {
	grouped := make(map[string][]domain.NodeRow)
	patterns := make(map[string]string)
	var keys []string
	for _, row := range rows {
		key := domain.JoinLabels(row.Labels)
		if _, ok := patterns[key]; !ok {
			patterns[key] = domain.LabelPattern(row.Labels)
			keys = append(keys, key)
		}
		grouped[key] = append(grouped[key], row)
	}
	for _, key := range keys {
		query := cypher.MustTemplate("upsert_nodes.cql", map[string]string{"LabelPattern": patterns[key]})
		for _, chunk := range util.Batch(grouped[key], s.batchSize) {
			params := map[string]any{"rows": toNodeParameters(chunk)}
			if err := s.client.RunWrite(ctx, query, params); err != nil {
				return fmt.Errorf("写入节点失败 labels=%s: %w", key, err)
			}
		}
	}
	return nil
}

func (s *Neo4jSink) upsertRels(ctx context.Context, rows []domain.RelRow) error {
	grouped := make(map[string][]domain.RelRow)
	var types []string
	for _, row := range rows {
		if _, ok := grouped[row.Type]; !ok {
			types = append(types, row.Type)
		}
		grouped[row.Type] = append(grouped[row.Type], row)
	}
	for _, relType := range types {
		query := cypher.MustTemplate("upsert_rels.cql", map[string]string{"RelType": ":" + relType})
		for _, chunk := range util.Batch(grouped[relType], s.batchSize) {
			params := map[string]any{"rows": toRelParameters(chunk)}
			if err := s.client.RunWrite(ctx, query, params); err != nil {
				return fmt.Errorf("写入关系失败 type=%s: %w", relType, err)
			}
		}
	}
	return nil
}

// BuildGraph 把一个批次转换为图谱节点与关系。
func BuildGraph(b Batch, now time.Time) *domain.Graph {
	g := domain.NewGraph()
	node := func(prefix, id string, props map[string]any, labels ...string) string {
		key := domain.MakeKey(prefix, id)
		g.AddNode(domain.NodeRow{Key: key, Labels: labels, Properties: props, RunID: b.RunID, UpdatedAt: now})
		return key
	}
	rel := func(start, end, typ string, props map[string]any) {
		g.AddRel(domain.RelRow{StartKey: start, EndKey: end, Type: typ, Properties: props, RunID: b.RunID})
	}

	for _, rec := range b.Records {
		sum := Summarize(rec)
		props := sum.Map()
		props["output_type"] = b.OutputType
		props["file_number"] = b.FileNumber
		vmKey := node(domain.PrefixVM, sum.VMUUID, props, domain.LabelVirtualMachine, domain.LabelAccounted)

		if sum.SiteName != "" {
			siteKey := node(domain.PrefixSite, sum.SiteName, map[string]any{"name": sum.SiteName}, domain.LabelSite)
			rel(siteKey, vmKey, domain.RelRuns, nil)
		}
		var userKey string
		if sum.UserName != "" {
			userKey = node(domain.PrefixUser, sum.UserName, map[string]any{"name": sum.UserName}, domain.LabelUser)
			rel(userKey, vmKey, domain.RelOwns, nil)
		}
		if sum.GroupName != "" {
			groupKey := node(domain.PrefixGroup, sum.GroupName, map[string]any{"name": sum.GroupName}, domain.LabelGroup)
			if userKey != "" {
				rel(userKey, groupKey, domain.RelMemberOf, nil)
			}
		}
		for seq, host := range sum.Hosts {
			if host == "" {
				continue
			}
			hostKey := node(domain.PrefixHost, host, map[string]any{"hostname": host}, domain.LabelHost)
			rel(vmKey, hostKey, domain.RelRanOn, map[string]any{"seq": seq})
		}
	}
	return g
}

func toNodeParameters(rows []domain.NodeRow) []map[string]any {
	res := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		res = append(res, map[string]any{
			"acct_key":   row.Key,
			"properties": row.Properties,
			"run_id":     row.RunID,
			"updated_at": row.UpdatedAt,
		})
	}
	return res
}

func toRelParameters(rows []domain.RelRow) []map[string]any {
	res := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		props := row.Properties
		if props == nil {
			props = map[string]any{}
		}
		res = append(res, map[string]any{
			"start_key":  row.StartKey,
			"end_key":    row.EndKey,
			"properties": props,
			"run_id":     row.RunID,
		})
	}
	return res
}
