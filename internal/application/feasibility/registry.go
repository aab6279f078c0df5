package feasibility

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/MfFischer/makersai-studio/internal/domain/entity"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// Registry 设备档案只读注册表
type Registry struct {
	profiles map[string]*entity.DeviceProfile
	order    []string
}

type profileFile struct {
	Profiles []entity.DeviceProfile `yaml:"profiles"`
}

// NewRegistry 加载内置设备档案
func NewRegistry() (*Registry, error) {
	return ParseRegistry(builtinProfiles)
}

// ParseRegistry 从 YAML 解析设备档案
func ParseRegistry(data []byte) (*Registry, error) {
	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse device profiles: %w", err)
	}

	r := &Registry{profiles: make(map[string]*entity.DeviceProfile, len(f.Profiles))}
	for i := range f.Profiles {
		p := f.Profiles[i]
		if p.ID == "" {
			return nil, fmt.Errorf("device profile #%d has no id", i)
		}
		if _, dup := r.profiles[p.ID]; dup {
			return nil, fmt.Errorf("duplicate device profile %q", p.ID)
		}
		r.profiles[p.ID] = &p
		r.order = append(r.order, p.ID)
	}
	return r, nil
}

// Lookup 按 ID 查找设备档案
func (r *Registry) Lookup(id string) (*entity.DeviceProfile, bool) {
	p, ok := r.profiles[id]
	return p, ok
}

// List 按定义顺序返回全部档案
func (r *Registry) List() []*entity.DeviceProfile {
	out := make([]*entity.DeviceProfile, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.profiles[id])
	}
	return out
}

// Report 生成请求附带的可行性报告，仅供参考，不阻断生成
type Report struct {
	ProfileID   string   `json:"profileId"`
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Suggestions []string `json:"suggestions"`
}

// CheckLaser 对 2D 尺寸做激光区域校验并附带建议
// 3D 建议缺少深度，按宽高中较小者估计
func (r *Registry) CheckLaser(profileID string, width, height float64) Report {
	profile, _ := r.Lookup(profileID)
	res := ValidateLaserArea(width, height, profile)
	depth := min(width, height)
	return Report{
		ProfileID:   profileID,
		Valid:       res.Valid,
		Errors:      res.Errors,
		Suggestions: Suggest(Dimensions3D{Width: width, Depth: depth, Height: height}, profile),
	}
}
