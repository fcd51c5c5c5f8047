package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"oneacct/internal/selector"
	"oneacct/internal/validate"

	"gopkg.in/yaml.v3"
)

// ErrArgument 表示配置或命令行参数不合法，在开始处理前即终止。
var ErrArgument = errors.New("invalid argument")

func argumentError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrArgument, fmt.Sprintf(format, args...))
}

type PBS struct {
	Realm          string `yaml:"realm"`
	Queue          string `yaml:"queue"`
	ScratchType    string `yaml:"scratch_type"`
	HostIdentifier string `yaml:"host_identifier"`
}

type Output struct {
	OutputDir       string `yaml:"output_dir"`
	OutputType      string `yaml:"output_type"`
	NumOfVMsPerFile int    `yaml:"num_of_vms_per_file"`
	// SelectorMode 为 cursor 或 index，兼容模式由导出参数指定。
	SelectorMode  string `yaml:"selector_mode"`
	MachinePrefix string `yaml:"machine_prefix"`
	PBS           PBS    `yaml:"pbs"`
}

type XMLRPC struct {
	Endpoint       string `yaml:"endpoint"`
	Secret         string `yaml:"secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Dispatch struct {
	// Mode 为 local（进程内 worker 池）或 amqp。
	Mode      string `yaml:"mode"`
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queue_size"`
	Queue     string `yaml:"queue"`
	AMQPURL   string `yaml:"amqp_url"`
	Prefetch  int    `yaml:"prefetch"`
}

type Logging struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
	LogType  string `yaml:"log_type"`
	LogFile  string `yaml:"log_file"`
}

type Schedule struct {
	Cron string `yaml:"cron"`
}

type HTTP struct {
	Listen string `yaml:"listen"`
}

type Retry struct {
	Attempts       int `yaml:"attempts"`
	BackoffSeconds int `yaml:"backoff_seconds"`
}

type Kafka struct {
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	ClientID       string   `yaml:"client_id"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Neo4j struct {
	URI                  string `yaml:"uri"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	Database             string `yaml:"database"`
	MaxConnectionPool    int    `yaml:"max_connections"`
	ConnectTimeoutSecond int    `yaml:"connect_timeout_second"`
	BatchSize            int    `yaml:"batch_size"`
}

type Minio struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Sinks 中留空的部分表示不启用对应输出。
type Sinks struct {
	Retry    Retry    `yaml:"retry"`
	Kafka    Kafka    `yaml:"kafka"`
	Postgres Postgres `yaml:"postgres"`
	Neo4j    Neo4j    `yaml:"neo4j"`
	Minio    Minio    `yaml:"minio"`
}

type Config struct {
	SiteName            string   `yaml:"site_name"`
	CloudType           string   `yaml:"cloud_type"`
	Endpoint            string   `yaml:"endpoint"`
	CloudComputeService string   `yaml:"cloud_compute_service"`
	Output              Output   `yaml:"output"`
	XMLRPC              XMLRPC   `yaml:"xml_rpc"`
	Dispatch            Dispatch `yaml:"dispatch"`
	Logging             Logging  `yaml:"logging"`
	Schedule            Schedule `yaml:"schedule"`
	HTTP                HTTP     `yaml:"http"`
	Sinks               Sinks    `yaml:"sinks"`
}

// LoadConfig 从文件加载配置，补全默认值并校验。
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取配置失败: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyDefaults 补全未设置的可选项，并去掉 endpoint 末尾的 "/"。
func (c *Config) ApplyDefaults() {
	c.Endpoint = strings.TrimSuffix(strings.TrimSpace(c.Endpoint), "/")
	if c.Output.NumOfVMsPerFile <= 0 {
		c.Output.NumOfVMsPerFile = selector.DefaultBatchSize
	}
	if c.Output.SelectorMode == "" {
		c.Output.SelectorMode = string(selector.ModeCursor)
	}
	if c.Output.MachinePrefix == "" {
		c.Output.MachinePrefix = "one"
	}
	if c.XMLRPC.TimeoutSeconds <= 0 {
		c.XMLRPC.TimeoutSeconds = 60
	}
	if c.Dispatch.Mode == "" {
		c.Dispatch.Mode = DispatchLocal
	}
	if c.Dispatch.Workers <= 0 {
		c.Dispatch.Workers = 4
	}
	if c.Dispatch.QueueSize <= 0 {
		c.Dispatch.QueueSize = 2 * c.Dispatch.Workers
	}
	if c.Dispatch.Queue == "" {
		c.Dispatch.Queue = "oneacct_export"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "console"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
	if c.Sinks.Retry.Attempts <= 0 {
		c.Sinks.Retry.Attempts = 3
	}
	if c.Sinks.Retry.BackoffSeconds <= 0 {
		c.Sinks.Retry.BackoffSeconds = 1
	}
}

// 派发方式。
const (
	DispatchLocal = "local"
	DispatchAMQP  = "amqp"
)

// Validate 检查必填项以及各输出格式的附加要求。
func (c Config) Validate() error {
	if c.Output.OutputDir == "" || c.Output.OutputType == "" {
		return argumentError("missing some mandatory parameters, check output.output_dir and output.output_type")
	}
	switch c.Output.OutputType {
	case validate.TypeAPEL:
		if c.SiteName == "" || c.CloudType == "" || c.Endpoint == "" {
			return argumentError("missing some mandatory parameters for %s, check site_name, cloud_type and endpoint", c.Output.OutputType)
		}
	case validate.TypePBS:
		pbs := c.Output.PBS
		if pbs.Realm == "" || pbs.Queue == "" || pbs.HostIdentifier == "" {
			return argumentError("missing some mandatory parameters for %s, check output.pbs", c.Output.OutputType)
		}
	case validate.TypeLogstash:
	default:
		return argumentError("non-existing template %s", c.Output.OutputType)
	}
	switch selector.Mode(c.Output.SelectorMode) {
	case selector.ModeCursor, selector.ModeIndex:
	default:
		return argumentError("unknown selector mode %q", c.Output.SelectorMode)
	}
	if c.XMLRPC.Endpoint == "" {
		return argumentError("missing xml_rpc.endpoint")
	}
	switch c.Dispatch.Mode {
	case DispatchLocal:
	case DispatchAMQP:
		if c.Dispatch.AMQPURL == "" {
			return argumentError("dispatch.amqp_url is required in amqp mode")
		}
	default:
		return argumentError("unknown dispatch mode %q", c.Dispatch.Mode)
	}
	if strings.EqualFold(c.Logging.LogType, "file") && c.Logging.LogFile == "" {
		return argumentError("missing file for logging, check logging.log_file")
	}
	return nil
}
