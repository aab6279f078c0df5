// Package entity 定义领域实体
package entity

// DeviceProfile 制造设备（3D 打印机 / 激光雕刻）能力描述，只读
type DeviceProfile struct {
	ID                       string                `json:"id" yaml:"id"`
	Name                     string                `json:"name" yaml:"name"`
	Manufacturer             string                `json:"manufacturer" yaml:"manufacturer"`
	BuildVolume              BuildVolume           `json:"buildVolume" yaml:"build_volume"`
	LaserArea                *LaserArea            `json:"laserArea,omitempty" yaml:"laser_area,omitempty"`
	NozzleDiameter           float64               `json:"nozzleDiameter" yaml:"nozzle_diameter"`
	MaxPrintSpeed            float64               `json:"maxPrintSpeed" yaml:"max_print_speed"`
	SupportedMaterials       []string              `json:"supportedMaterials" yaml:"supported_materials"`
	RecommendedLayerHeight   LayerHeightRange      `json:"recommendedLayerHeight" yaml:"recommended_layer_height"`
	RecommendedWallThickness WallThicknessRange    `json:"recommendedWallThickness" yaml:"recommended_wall_thickness"`
	Features                 DeviceProfileFeatures `json:"features" yaml:"features"`
}

// BuildVolume 打印体积（mm）
type BuildVolume struct {
	Width  float64 `json:"width" yaml:"width"`
	Depth  float64 `json:"depth" yaml:"depth"`
	Height float64 `json:"height" yaml:"height"`
}

// LaserArea 激光雕刻区域（mm）
type LaserArea struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// LayerHeightRange 推荐层高
type LayerHeightRange struct {
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Default float64 `json:"default" yaml:"default"`
}

// WallThicknessRange 推荐壁厚
type WallThicknessRange struct {
	Min     float64 `json:"min" yaml:"min"`
	Default float64 `json:"default" yaml:"default"`
}

// DeviceProfileFeatures 设备能力开关
type DeviceProfileFeatures struct {
	AutoLeveling   bool `json:"autoLeveling" yaml:"auto_leveling"`
	DualExtruder   bool `json:"dualExtruder" yaml:"dual_extruder"`
	HeatedBed      bool `json:"heatedBed" yaml:"heated_bed"`
	Enclosure      bool `json:"enclosure" yaml:"enclosure"`
	LaserEngraving bool `json:"laserEngraving" yaml:"laser_engraving"`
}
