package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"oneacct/pkg/util"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS oneacct_records (
  vm_uuid     TEXT        NOT NULL,
  output_type TEXT        NOT NULL,
  run_id      TEXT        NOT NULL,
  file_number INTEGER     NOT NULL,
  site_name   TEXT        NOT NULL,
  user_name   TEXT        NOT NULL,
  group_name  TEXT        NOT NULL,
  start_time  BIGINT      NOT NULL,
  end_time    BIGINT      NOT NULL,
  duration    BIGINT      NOT NULL,
  cpu_count   BIGINT      NOT NULL,
  memory      BIGINT      NOT NULL,
  record_hash TEXT        NOT NULL,
  payload     JSONB       NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (vm_uuid, output_type)
)`

// 内容未变化时不更新，避免每次导出都改写整表。
const upsertRecord = `
INSERT INTO oneacct_records (
  vm_uuid, output_type, run_id, file_number, site_name, user_name, group_name,
  start_time, end_time, duration, cpu_count, memory, record_hash, payload
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (vm_uuid, output_type) DO UPDATE SET
  run_id = EXCLUDED.run_id,
  file_number = EXCLUDED.file_number,
  site_name = EXCLUDED.site_name,
  user_name = EXCLUDED.user_name,
  group_name = EXCLUDED.group_name,
  start_time = EXCLUDED.start_time,
  end_time = EXCLUDED.end_time,
  duration = EXCLUDED.duration,
  cpu_count = EXCLUDED.cpu_count,
  memory = EXCLUDED.memory,
  record_hash = EXCLUDED.record_hash,
  payload = EXCLUDED.payload,
  updated_at = now()
WHERE oneacct_records.record_hash <> EXCLUDED.record_hash`

// PostgresSink 把记录按 (vm_uuid, output_type) upsert 到 PostgreSQL。
type PostgresSink struct {
	db *sql.DB
}

// OpenPostgres 通过 pgx 驱动打开数据库。
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开 postgres 失败: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres 无法连通: %w", err)
	}
	return db, nil
}

// NewPostgresSink 包装已有连接。
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema 创建记录表。
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createRecordsTable); err != nil {
		return fmt.Errorf("创建 oneacct_records 失败: %w", err)
	}
	return nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Publish 在一个事务中写入整批记录。
func (s *PostgresSink) Publish(ctx context.Context, b Batch) error {
	if len(b.Records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range b.Records {
		sum := Summarize(rec)
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("序列化记录 %s 失败: %w", sum.VMUUID, err)
		}
		_, err = tx.ExecContext(ctx, upsertRecord,
			sum.VMUUID,
			b.OutputType,
			b.RunID,
			b.FileNumber,
			sum.SiteName,
			sum.UserName,
			sum.GroupName,
			sum.StartTime,
			sum.EndTime,
			sum.Duration,
			sum.CPUCount,
			sum.Memory,
			util.Fingerprint(sum.Map()),
			string(payload),
		)
		if err != nil {
			return fmt.Errorf("写入记录 %s 失败: %w", sum.VMUUID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close(context.Context) error {
	return s.db.Close()
}
