package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// 快照根节点，优先识别带命名空间的 yang-catalog:catalog。
var snapshotRoots = []string{"yang-catalog:catalog", "catalog"}

// ErrInvalidSnapshot 表示快照文件缺少 catalog 根节点或不是合法 JSON。
var ErrInvalidSnapshot = errors.New("invalid catalog snapshot")

// Snapshot 是一次目录导出的内容，模块与厂商记录均保持原始字节。
type Snapshot struct {
	Modules []json.RawMessage
	Vendors []json.RawMessage
}

type snapshotBody struct {
	Modules struct {
		Module []json.RawMessage `json:"module"`
	} `json:"modules"`
	Vendors struct {
		Vendor []json.RawMessage `json:"vendor"`
	} `json:"vendors"`
}

// ReadSnapshot 读取并解析磁盘上的快照文件。
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot 解析快照字节。modules/vendors 缺失视为空列表。
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	var rawBody json.RawMessage
	for _, root := range snapshotRoots {
		if body, ok := top[root]; ok {
			rawBody = body
			break
		}
	}
	if rawBody == nil {
		return nil, fmt.Errorf("%w: missing catalog root", ErrInvalidSnapshot)
	}

	var body snapshotBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	return &Snapshot{
		Modules: body.Modules.Module,
		Vendors: body.Vendors.Vendor,
	}, nil
}

// Descriptors 将模块记录转换为 ModuleDescriptor。无法解码的记录仍会返回（只带 Raw），
// 由 Module Store 按缺失 name 处理为跳过。
func (s *Snapshot) Descriptors() []ModuleDescriptor {
	if s == nil || len(s.Modules) == 0 {
		return nil
	}
	result := make([]ModuleDescriptor, 0, len(s.Modules))
	for _, raw := range s.Modules {
		d, _ := ParseDescriptor(raw)
		result = append(result, d)
	}
	return result
}

// Find 返回第一个 name/revision 匹配的模块记录。
func (s *Snapshot) Find(name, revision string) (ModuleDescriptor, bool) {
	for _, d := range s.Descriptors() {
		if d.Name == name && d.Revision == revision {
			return d, true
		}
	}
	return ModuleDescriptor{}, false
}
