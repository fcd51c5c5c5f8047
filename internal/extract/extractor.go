package extract

import (
	"errors"
	"strings"

	"oneacct/internal/one"
	"oneacct/internal/record"
)

var (
	// ErrMissingID 记录没有虚拟机标识。
	ErrMissingID = errors.New("vm record has no identifier")
	// ErrMissingStartTime 记录没有开始时间，无法核算。
	ErrMissingStartTime = errors.New("vm record has no start time")
)

// mixin 可能出现的三个位置，按顺序查找。
var mixinPaths = []string{
	"USER_TEMPLATE/OCCI_COMPUTE_MIXINS",
	"TEMPLATE/OCCI_COMPUTE_MIXINS",
	"USER_TEMPLATE/OCCI_MIXIN",
}

const (
	osTplMarker       = "os_tpl#"
	resourceTplMarker = "resource_tpl#"
)

// Common 是每条记录都带上的站点级字段。
type Common struct {
	Endpoint            string
	SiteName            string
	CloudType           string
	CloudComputeService string
	Host                string
	Queue               string
	Realm               string
	ScratchType         string
}

// Extractor 把远端虚拟机记录转换为 FieldMap，无内部可变状态，可并发调用。
type Extractor struct {
	Common Common
}

// Extract 抽取一台虚拟机的核算字段。缺少 ID 或开始时间时返回错误，调用方应跳过该记录。
// 结束时间早于开始时间不在此处拒绝，交由校验器给出明确的字段错误。
func (x *Extractor) Extract(vm *one.Element, maps Maps) (*record.FieldMap, error) {
	if vm == nil || vm.ID() == "" {
		return nil, ErrMissingID
	}
	if vm.Get("STIME") == "" {
		return nil, ErrMissingStartTime
	}

	fm := &record.FieldMap{
		Endpoint:            x.Common.Endpoint,
		SiteName:            x.Common.SiteName,
		CloudType:           x.Common.CloudType,
		CloudComputeService: x.Common.CloudComputeService,
		Host:                x.Common.Host,
		Queue:               x.Common.Queue,
		Realm:               x.Common.Realm,
		ScratchType:         x.Common.ScratchType,

		VMUUID:      vm.ID(),
		StartTime:   vm.Get("STIME"),
		EndTime:     vm.Get("ETIME"),
		MachineName: vm.Get("DEPLOY_ID"),
		UserID:      vm.Get("UID"),
		GroupID:     vm.Get("GID"),
		UserName:    vm.Get("UNAME"),
		GroupName:   vm.Get("GNAME"),
		StatusCode:  vm.Get("STATE"),
		CPUCount:    vm.Get("TEMPLATE/VCPU"),
		Memory:      vm.Get("TEMPLATE/MEMORY"),

		NetworkInbound:  firstNonEmpty(vm.Get("MONITORING/NETTX"), vm.Get("NET_TX")),
		NetworkOutbound: firstNonEmpty(vm.Get("MONITORING/NETRX"), vm.Get("NET_RX")),
	}

	fm.UserDN = firstNonEmpty(vm.Get("USER_TEMPLATE/USER_X509_DN"), lookup(maps.Users, fm.UserID))
	fm.ImageName = imageName(vm, maps.Images)
	fm.History = history(vm)
	fm.Disks = disks(vm)
	fm.PublicIPCount = record.CountPublicIPs(nicAddresses(vm))

	if len(fm.History) > 0 {
		if site := lookup(maps.Clusters, fm.History[0].ClusterID); site != "" {
			fm.SiteName = site
		}
		if b, ok := maps.Benchmarks[fm.History[len(fm.History)-1].HostID]; ok {
			fm.BenchmarkType = b.Type
			if m := findMixin(vm, resourceTplMarker); m != "" {
				fm.Benchmark = b.Values[m]
			}
		}
	}
	return fm, nil
}

// imageName 依次尝试：磁盘上的目录 URI、镜像映射、os_tpl mixin、原始镜像 ID。
func imageName(vm *one.Element, images map[string]string) string {
	imageID := vm.Get("TEMPLATE/DISK[1]/IMAGE_ID")
	chain := []func() string{
		func() string { return vm.Get("TEMPLATE/DISK[1]/VMCATALOG_ENTRY_APPL_MPURI") },
		func() string { return lookup(images, imageID) },
		func() string { return findMixin(vm, osTplMarker) },
		func() string { return imageID },
	}
	for _, fn := range chain {
		if v := fn(); v != "" {
			return v
		}
	}
	return ""
}

// findMixin 返回第一个包含 marker 的 mixin。
func findMixin(vm *one.Element, marker string) string {
	for _, path := range mixinPaths {
		for _, m := range strings.Fields(vm.Get(path)) {
			if strings.Contains(m, marker) {
				return m
			}
		}
	}
	return ""
}

func history(vm *one.Element) []record.HistoryRecord {
	items := vm.Each("HISTORY_RECORDS/HISTORY")
	if len(items) == 0 {
		return nil
	}
	res := make([]record.HistoryRecord, 0, len(items))
	for _, h := range items {
		res = append(res, record.HistoryRecord{
			StartTime:        h.Get("STIME"),
			EndTime:          h.Get("ETIME"),
			RunningStartTime: h.Get("RSTIME"),
			RunningEndTime:   h.Get("RETIME"),
			Seq:              h.Get("SEQ"),
			Hostname:         h.Get("HOSTNAME"),
			HostID:           h.Get("HID"),
			ClusterID:        h.Get("CID"),
		})
	}
	return res
}

func disks(vm *one.Element) []record.DiskRecord {
	items := vm.Each("TEMPLATE/DISK")
	res := make([]record.DiskRecord, 0, len(items))
	for _, d := range items {
		res = append(res, record.DiskRecord{Size: d.Get("SIZE")})
	}
	return res
}

func nicAddresses(vm *one.Element) []string {
	var res []string
	for _, ip := range vm.Each("TEMPLATE/NIC/IP") {
		res = append(res, ip.Text())
	}
	return res
}

func lookup(m map[string]string, key string) string {
	if key == "" || m == nil {
		return ""
	}
	return m[key]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
