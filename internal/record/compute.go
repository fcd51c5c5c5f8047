package record

import (
	"errors"
	"net/netip"
	"strconv"
	"time"
	"unicode"
)

var (
	// ErrOpenInterval 已完成的虚拟机仍有未结束的运行区间。
	ErrOpenInterval = errors.New("completed vm has open running interval")
	// ErrNegativeInterval 运行开始时间晚于运行结束时间。
	ErrNegativeInterval = errors.New("running start after running end")
)

// StatusCompleted 是远端“已完成”状态码。
const StatusCompleted = "6"

// States 将远端状态码映射为核算状态名。
var States = [...]string{
	"started", "started", "suspended", "started", "suspended",
	"suspended", "completed", "completed", "suspended",
}

// StateName 返回状态码对应的状态名，码值必须是无前导零的十进制数且在表内。
func StateName(code string) (string, bool) {
	if !IsNumber(code) || (len(code) > 1 && code[0] == '0') {
		return "", false
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 0 || n >= len(States) {
		return "", false
	}
	return States[n], true
}

// SumRunningTime 累加所有历史记录的 (rend - rstart)。
// rstart 非正整数或 rend 非数字的记录被忽略；rend 为 0 时视为仍在运行，以 now 代替，
// 但 completed 为真时返回 ErrOpenInterval。
func SumRunningTime(history []HistoryRecord, completed bool, now time.Time) (int64, error) {
	var total int64
	for _, h := range history {
		if !IsNonZeroNumber(h.RunningStartTime) || !IsNumber(h.RunningEndTime) {
			continue
		}
		rstart, err := strconv.ParseInt(h.RunningStartTime, 10, 64)
		if err != nil {
			continue
		}
		rend, err := strconv.ParseInt(h.RunningEndTime, 10, 64)
		if err != nil {
			continue
		}
		if rend > 0 && rstart > rend {
			return 0, ErrNegativeInterval
		}
		if rend == 0 {
			if completed {
				return 0, ErrOpenInterval
			}
			rend = now.Unix()
		}
		total += rend - rstart
	}
	return total, nil
}

// SumDiskSize 累加磁盘大小。任一大小无法解析时返回 ok=false（未知），没有磁盘时为 0。
func SumDiskSize(disks []DiskRecord) (int64, bool) {
	var total int64
	for _, d := range disks {
		if !IsNumber(d.Size) {
			return 0, false
		}
		n, err := strconv.ParseInt(d.Size, 10, 64)
		if err != nil {
			return 0, false
		}
		total += n
	}
	return total, true
}

var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// CountPublicIPs 统计去重后不在私有网段内的地址个数，无法解析的文本被忽略。
func CountPublicIPs(ips []string) int {
	seen := make(map[netip.Addr]struct{}, len(ips))
	for _, raw := range ips {
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			continue
		}
		addr = addr.Unmap()
		if isPrivate(addr) {
			continue
		}
		seen[addr] = struct{}{}
	}
	return len(seen)
}

func isPrivate(addr netip.Addr) bool {
	for _, p := range privateRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IsNumber 判断是否为非空十进制数字串。
func IsNumber(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsNonZeroNumber 判断是否为无前导零的正整数。
func IsNonZeroNumber(s string) bool {
	return IsNumber(s) && s[0] != '0'
}

// IsDecimal 判断是否为整数或 “数字.数字” 形式的小数。
func IsDecimal(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return IsNumber(s[:i]) && IsNumber(s[i+1:])
		}
	}
	return IsNumber(s)
}

// IsString 判断是否为非空且全部可打印的文本。
func IsString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
