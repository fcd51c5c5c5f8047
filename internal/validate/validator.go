package validate

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"oneacct/internal/record"
)

// 支持的输出格式。
const (
	TypeAPEL     = "apel-0.4"
	TypePBS      = "pbs-0.1"
	TypeLogstash = "logstash-0.1"
)

// OutputTypes 按固定顺序列出支持的输出格式。
var OutputTypes = []string{TypeAPEL, TypePBS, TypeLogstash}

// ErrUnknownOutputType 输出格式不受支持。
var ErrUnknownOutputType = errors.New("unknown output type")

// ValidationError 表示单条记录不合法，调用方跳过该记录后继续处理。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("skipping a malformed record: field '%s' is invalid", e.Field)
	}
	return fmt.Sprintf("skipping a malformed record: field '%s' is invalid: %s", e.Field, e.Reason)
}

func fail(field string) error {
	return &ValidationError{Field: field}
}

func failf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError 判断 err 是否为记录级校验失败。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Record 是某种输出格式下校验完成的记录。
type Record interface {
	Identifier() string
}

// Validator 把 FieldMap 转换为某种输出格式的记录，不修改入参。
type Validator interface {
	Validate(fm *record.FieldMap) (Record, error)
}

// Options 是各校验器共享的参数。
type Options struct {
	// MachinePrefix 用于默认机器名 "<prefix>-<uuid>"，为空时使用 "one"。
	MachinePrefix string
	// Now 提供运行中区间的截止时间，为空时使用 time.Now。
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o Options) machineName(fm *record.FieldMap) string {
	if record.IsString(fm.MachineName) {
		return fm.MachineName
	}
	prefix := o.MachinePrefix
	if prefix == "" {
		prefix = "one"
	}
	return prefix + "-" + fm.VMUUID
}

// ForOutputType 返回指定输出格式的校验器。
func ForOutputType(outputType string, opts Options) (Validator, error) {
	switch outputType {
	case TypeAPEL:
		return &APELValidator{Options: opts}, nil
	case TypePBS:
		return &PBSValidator{Options: opts}, nil
	case TypeLogstash:
		return &LogstashValidator{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutputType, outputType)
	}
}

func requireString(field, value string) error {
	if !record.IsString(value) {
		return fail(field)
	}
	return nil
}

// parseNumber 解析非负整数，label 用于错误信息。
func parseNumber(field, value string) (int64, error) {
	if !record.IsNumber(value) {
		return 0, fail(field)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, failf(field, "%v", err)
	}
	return n, nil
}

func parseNonZero(field, value string) (int64, error) {
	if !record.IsNonZeroNumber(value) {
		return 0, fail(field)
	}
	return parseNumber(field, value)
}

// optString 在值为合法文本时返回该值，否则为未设置。
func optString(value string) record.Opt[string] {
	if record.IsString(value) {
		return record.Some(value)
	}
	return record.None[string]()
}

// numberOr 在值为数字时解析，否则返回默认值。
func numberOr(value string, def int64) int64 {
	if !record.IsNumber(value) {
		return def
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// runningTime 把聚合错误转换为记录级校验错误。
func runningTime(history []record.HistoryRecord, completed bool, now time.Time) (int64, error) {
	d, err := record.SumRunningTime(history, completed, now)
	if err != nil {
		return 0, failf("HISTORY_RECORDS", "%v", err)
	}
	return d, nil
}
