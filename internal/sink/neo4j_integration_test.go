package sink

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// 设置 ONEACCT_TEST_NEO4J_URI 后才会连接真实 Neo4j。
func TestNeo4jSinkAgainstServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	uri := os.Getenv("ONEACCT_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("ONEACCT_TEST_NEO4J_URI not set")
	}
	ctx := context.Background()
	cfg := Neo4jConfig{
		URI:      uri,
		Username: "neo4j",
		Password: os.Getenv("ONEACCT_TEST_NEO4J_PASSWORD"),
		Database: "neo4j",
	}
	s, err := NewNeo4jSink(ctx, cfg)
	if err != nil {
		t.Skipf("neo4j not available: %v", err)
	}
	defer s.Close(ctx)

	client := s.client.(*neo4jClient)
	if err := client.RunWrite(ctx, "MATCH (n:Accounted) DETACH DELETE n", nil); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	// 重复写入同一批次不应产生重复节点。
	for i := 0; i < 2; i++ {
		if err := s.Publish(ctx, sampleBatch()); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	res, err := neo4j.ExecuteQuery(ctx, client.driver,
		"MATCH (v:VirtualMachine)-[:RAN_ON]->(h:Host) RETURN count(DISTINCT v) AS vms, count(DISTINCT h) AS hosts",
		nil, neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(cfg.Database))
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("expected one row, got %d", len(res.Records))
	}
	vms, _ := res.Records[0].Get("vms")
	hosts, _ := res.Records[0].Get("hosts")
	if vms.(int64) != 2 || hosts.(int64) != 2 {
		t.Fatalf("expected 2 vms on 2 hosts, got %v vms %v hosts", vms, hosts)
	}
}
