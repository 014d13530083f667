package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Placeholder 在 name/revision/organization 缺失时替代空字段，保证键派生永不失败。
const Placeholder = "unknown"

// ErrMalformedRecord 表示单条模块或厂商记录缺少必需字段，调用方应跳过并继续。
var ErrMalformedRecord = errors.New("malformed catalog record")

// ModuleDescriptor 描述一条模块记录。Raw 保留读入时的原始 JSON（字段顺序不变），
// 写入缓存时直接使用 Raw 作为值。
type ModuleDescriptor struct {
	Name         string
	Revision     string
	Organization string
	Raw          json.RawMessage
}

// identity 仅解码身份三元组，其余字段留在 Raw 中。
type identity struct {
	Name         string `json:"name"`
	Revision     string `json:"revision"`
	Organization string `json:"organization"`
}

// DeriveKey 返回模块的身份键 "{name}@{revision}/{organization}"。
// 纯函数：空字段以 Placeholder 代替，不会返回错误。
func DeriveKey(d ModuleDescriptor) string {
	return BuildKey(d.Name, d.Revision, d.Organization)
}

// BuildKey 以三元组直接拼接身份键，供 HTTP 层等不持有完整记录的调用方使用。
func BuildKey(name, revision, organization string) string {
	return orPlaceholder(name) + "@" + orPlaceholder(revision) + "/" + orPlaceholder(organization)
}

func orPlaceholder(value string) string {
	if strings.TrimSpace(value) == "" {
		return Placeholder
	}
	return value
}

// Key 是 DeriveKey 的方法形式。
func (d ModuleDescriptor) Key() string {
	return DeriveKey(d)
}

// Missing 列出缺失的身份字段，按 name/revision/organization 顺序。
func (d ModuleDescriptor) Missing() []string {
	var missing []string
	if strings.TrimSpace(d.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(d.Revision) == "" {
		missing = append(missing, "revision")
	}
	if strings.TrimSpace(d.Organization) == "" {
		missing = append(missing, "organization")
	}
	return missing
}

// Payload 返回写入缓存的字节；Raw 为空时按身份字段重新编码。
func (d ModuleDescriptor) Payload() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	return json.Marshal(identity{Name: d.Name, Revision: d.Revision, Organization: d.Organization})
}

// Empty 报告记录是否为空对象 "{}"。缓存中的空记录对外视同不存在。
func (d ModuleDescriptor) Empty() bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(d.Raw, &fields); err != nil {
		return false
	}
	return len(fields) == 0
}

// ParseDescriptor 从原始 JSON 记录中提取身份字段。记录不是 JSON 对象时返回
// ErrMalformedRecord；字段缺失不算错误，由调用方通过 Missing 决定策略。
func ParseDescriptor(raw json.RawMessage) (ModuleDescriptor, error) {
	var id identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return ModuleDescriptor{Raw: raw}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return ModuleDescriptor{
		Name:         id.Name,
		Revision:     id.Revision,
		Organization: id.Organization,
		Raw:          append(json.RawMessage(nil), raw...),
	}, nil
}

// NewDescriptor 用身份三元组与任意元数据构造记录，元数据会合并到同一个 JSON 对象。
func NewDescriptor(name, revision, organization string, extra map[string]interface{}) (ModuleDescriptor, error) {
	fields := make(map[string]interface{}, len(extra)+3)
	for k, v := range extra {
		fields[k] = v
	}
	fields["name"] = name
	fields["revision"] = revision
	fields["organization"] = organization

	raw, err := json.Marshal(fields)
	if err != nil {
		return ModuleDescriptor{}, err
	}
	return ModuleDescriptor{Name: name, Revision: revision, Organization: organization, Raw: raw}, nil
}
