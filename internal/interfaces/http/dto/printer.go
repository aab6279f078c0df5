package dto

// ValidateDimensionsRequest 打印体积校验请求
type ValidateDimensionsRequest struct {
	Width     float64 `json:"width" binding:"required,gt=0"`
	Height    float64 `json:"height" binding:"required,gt=0"`
	Depth     float64 `json:"depth" binding:"required,gt=0"`
	ProfileID string  `json:"profileId" binding:"required"`
}

// ValidateLaserRequest 激光区域校验请求
type ValidateLaserRequest struct {
	Width     float64 `json:"width" binding:"required,gt=0"`
	Height    float64 `json:"height" binding:"required,gt=0"`
	ProfileID string  `json:"profileId" binding:"required"`
}

// DimensionsValidationResponse 打印体积校验结果
type DimensionsValidationResponse struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Suggestions []string `json:"suggestions"`
}
