package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/Jeffail/gabs"
)

// Implementation 表示“某模块由某厂商平台实现”的一条关联。
type Implementation struct {
	ModuleKey       string `json:"module"`
	Vendor          string `json:"vendor"`
	Platform        string `json:"platform"`
	SoftwareVersion string `json:"software-version"`
	SoftwareFlavor  string `json:"software-flavor"`
	OSVersion       string `json:"os-version,omitempty"`
	FeatureSet      string `json:"feature-set,omitempty"`
	OSType          string `json:"os-type,omitempty"`
	ConformanceType string `json:"conformance-type,omitempty"`
}

// PlatformID 标识厂商/平台/软件版本/软件变体四元组，可直接用作 map 键。
type PlatformID struct {
	Vendor          string
	Platform        string
	SoftwareVersion string
	SoftwareFlavor  string
}

// Less 按 Vendor、Platform、SoftwareVersion、SoftwareFlavor 依次比较。
func (p PlatformID) Less(q PlatformID) bool {
	if p.Vendor != q.Vendor {
		return p.Vendor < q.Vendor
	}
	if p.Platform != q.Platform {
		return p.Platform < q.Platform
	}
	if p.SoftwareVersion != q.SoftwareVersion {
		return p.SoftwareVersion < q.SoftwareVersion
	}
	return p.SoftwareFlavor < q.SoftwareFlavor
}

// PlatformID 返回实现所在的平台四元组。
func (i Implementation) PlatformID() PlatformID {
	return PlatformID{
		Vendor:          i.Vendor,
		Platform:        i.Platform,
		SoftwareVersion: i.SoftwareVersion,
		SoftwareFlavor:  i.SoftwareFlavor,
	}
}

// RecordIssue 描述厂商树中被跳过的一个节点。
type RecordIssue struct {
	Path   string
	Reason string
}

// WalkVendor 展开一条厂商记录：
//
//	vendor → platforms.platform → software-versions.software-version
//	       → software-flavors.software-flavor → modules.module
//
// 厂商记录本身不可用时返回 ErrMalformedRecord；内部节点缺少 name 时跳过该节点，
// 并通过 RecordIssue 报告，其余关联照常返回。
func WalkVendor(raw json.RawMessage) ([]Implementation, []RecordIssue, error) {
	root, err := gabs.ParseJSON(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if _, ok := root.Data().(map[string]interface{}); !ok {
		return nil, nil, fmt.Errorf("%w: vendor is not an object", ErrMalformedRecord)
	}
	vendor := stringField(root, "name")
	if vendor == "" {
		return nil, nil, fmt.Errorf("%w: vendor missing name", ErrMalformedRecord)
	}

	var (
		impls  []Implementation
		issues []RecordIssue
	)
	skip := func(path, reason string) {
		issues = append(issues, RecordIssue{Path: path, Reason: reason})
	}

	for pi, platform := range children(root, "platforms", "platform") {
		platformName := stringField(platform, "name")
		if platformName == "" {
			skip(fmt.Sprintf("%s/platform[%d]", vendor, pi), "missing name")
			continue
		}
		for vi, version := range children(platform, "software-versions", "software-version") {
			versionName := stringField(version, "name")
			if versionName == "" {
				skip(fmt.Sprintf("%s/%s/software-version[%d]", vendor, platformName, vi), "missing name")
				continue
			}
			for fi, flavor := range children(version, "software-flavors", "software-flavor") {
				flavorName := stringField(flavor, "name")
				if flavorName == "" {
					skip(fmt.Sprintf("%s/%s/%s/software-flavor[%d]", vendor, platformName, versionName, fi), "missing name")
					continue
				}
				for mi, module := range children(flavor, "modules", "module") {
					name := stringField(module, "name")
					if name == "" {
						skip(fmt.Sprintf("%s/%s/%s/%s/module[%d]", vendor, platformName, versionName, flavorName, mi), "missing name")
						continue
					}
					impls = append(impls, Implementation{
						ModuleKey:       BuildKey(name, stringField(module, "revision"), stringField(module, "organization")),
						Vendor:          vendor,
						Platform:        platformName,
						SoftwareVersion: versionName,
						SoftwareFlavor:  flavorName,
						OSVersion:       stringField(module, "os-version"),
						FeatureSet:      stringField(module, "feature-set"),
						OSType:          stringField(module, "os-type"),
						ConformanceType: stringField(module, "conformance-type"),
					})
				}
			}
		}
	}
	return impls, issues, nil
}

// children 返回 hierarchy 指向的列表；单个对象视为只有一个元素的列表。
func children(c *gabs.Container, hierarchy ...string) []*gabs.Container {
	node := c.Search(hierarchy...)
	if node == nil || node.Data() == nil {
		return nil
	}
	switch node.Data().(type) {
	case []interface{}:
		items, err := node.Children()
		if err != nil {
			return nil
		}
		return items
	case map[string]interface{}:
		return []*gabs.Container{node}
	default:
		return nil
	}
}

func stringField(c *gabs.Container, field string) string {
	value, _ := c.Search(field).Data().(string)
	return value
}
