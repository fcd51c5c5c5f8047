package one

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
)

// PoolKind 标识可整体拉取的资源池。
type PoolKind string

const (
	PoolUser    PoolKind = "user"
	PoolImage   PoolKind = "image"
	PoolCluster PoolKind = "cluster"
	PoolHost    PoolKind = "host"
)

// 资源池过滤参数：-2 表示所有资源，state -1 表示除 DONE 外任意状态，-2 表示包括 DONE。
const (
	filterAll  = -2
	vmStateAny = -2
)

// Client 抽象远端资源管理器。
type Client interface {
	// VMPool 拉取一页虚拟机。end 为负数时表示从 start 开始最多取 -end 条。
	VMPool(ctx context.Context, start, end int) ([]*Element, error)
	// VM 拉取单台虚拟机的完整记录。
	VM(ctx context.Context, id int) (*Element, error)
	// Pool 拉取整个资源池。
	Pool(ctx context.Context, kind PoolKind) ([]*Element, error)
}

// Mapping 生成 ID -> path 取值的映射，缺少 ID 的条目被跳过。
func Mapping(ctx context.Context, c Client, kind PoolKind, path string) (map[string]string, error) {
	items, err := c.Pool(ctx, kind)
	if err != nil {
		return nil, err
	}
	res := make(map[string]string, len(items))
	for _, item := range items {
		id := item.ID()
		if id == "" {
			continue
		}
		res[id] = item.Get(path)
	}
	return res, nil
}

type poolMethod struct {
	method string
	item   string
	args   []any
}

var poolMethods = map[PoolKind]poolMethod{
	PoolUser:    {method: "one.userpool.info", item: "USER"},
	PoolImage:   {method: "one.imagepool.info", item: "IMAGE", args: []any{filterAll, -1, -1}},
	PoolCluster: {method: "one.clusterpool.info", item: "CLUSTER"},
	PoolHost:    {method: "one.hostpool.info", item: "HOST"},
}

// HTTPConfig 配置 XML-RPC 客户端。
type HTTPConfig struct {
	Endpoint     string
	Secret       string
	Timeout      time.Duration
	CustomClient *http.Client
}

// HTTPClient 通过 XML-RPC over HTTP 访问远端资源管理器。
type HTTPClient struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

// NewHTTPClient 根据配置创建客户端。
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("xml-rpc endpoint 不能为空")
	}
	client := cfg.CustomClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{
		endpoint:   cfg.Endpoint,
		secret:     cfg.Secret,
		httpClient: client,
	}, nil
}

// VMPool 实现 Client。
func (c *HTTPClient) VMPool(ctx context.Context, start, end int) ([]*Element, error) {
	const method = "one.vmpool.info"
	body, err := c.call(ctx, method, filterAll, start, end, vmStateAny)
	if err != nil {
		return nil, err
	}
	root, err := ParseElement([]byte(body))
	if err != nil {
		return nil, &Error{Kind: ErrRetrieval, Method: method, Message: err.Error()}
	}
	return root.Each("VM"), nil
}

// VM 实现 Client。
func (c *HTTPClient) VM(ctx context.Context, id int) (*Element, error) {
	const method = "one.vm.info"
	body, err := c.call(ctx, method, id)
	if err != nil {
		return nil, err
	}
	root, err := ParseElement([]byte(body))
	if err != nil {
		return nil, &Error{Kind: ErrRetrieval, Method: method, Message: err.Error()}
	}
	return root, nil
}

// Pool 实现 Client。
func (c *HTTPClient) Pool(ctx context.Context, kind PoolKind) ([]*Element, error) {
	pm, ok := poolMethods[kind]
	if !ok {
		return nil, fmt.Errorf("未知资源池类型 %q", kind)
	}
	body, err := c.call(ctx, pm.method, pm.args...)
	if err != nil {
		return nil, err
	}
	root, err := ParseElement([]byte(body))
	if err != nil {
		return nil, &Error{Kind: ErrRetrieval, Method: pm.method, Message: err.Error()}
	}
	return root.Each(pm.item), nil
}

// call 发起一次 XML-RPC 调用，成功时返回响应中的 XML 文本。
// 远端返回 [success, body|message, errorCode] 三元组。
func (c *HTTPClient) call(ctx context.Context, method string, args ...any) (string, error) {
	payload, err := xmlrpc.EncodeMethodCall(method, append([]any{c.secret}, args...)...)
	if err != nil {
		return "", &Error{Kind: ErrRetrieval, Method: method, Message: err.Error()}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: ErrRetrieval, Method: method, Message: err.Error()}
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", &Error{Kind: ErrRetrieval, Method: method, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Kind: ErrRetrieval, Method: method, Code: resp.StatusCode, Message: fmt.Sprintf("http status %d", resp.StatusCode)}
	}

	res := xmlrpc.Response(data)
	if err := res.Err(); err != nil {
		return "", &Error{Kind: ErrRetrieval, Method: method, Message: err.Error()}
	}
	var values []any
	if err := res.Unmarshal(&values); err != nil {
		return "", &Error{Kind: ErrRetrieval, Method: method, Message: fmt.Sprintf("解析响应失败: %v", err)}
	}
	if len(values) < 2 {
		return "", &Error{Kind: ErrRetrieval, Method: method, Message: "响应格式不正确"}
	}
	ok, _ := values[0].(bool)
	text, _ := values[1].(string)
	if ok {
		return text, nil
	}
	code := 0
	if len(values) > 2 {
		if n, isInt := values[2].(int64); isInt {
			code = int(n)
		}
	}
	return "", &Error{Kind: kindForCode(code), Method: method, Code: code, Message: text}
}
