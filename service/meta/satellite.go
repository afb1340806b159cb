/*
 * @module service/meta/satellite
 * @description 卫星遥感元数据定义：植被指数种类、健康等级、胁迫级别、生育期与回看窗口
 * @architecture 分层架构 - 元数据层
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 常量定义 -> 业务逻辑使用
 * @rules 枚举取值与外部影像处理作业的输出口径保持一致
 * @dependencies 无
 */

package meta

// IndexKind 植被指数种类
type IndexKind string

const (
	IndexNDVI IndexKind = "ndvi" // 归一化植被指数
	IndexEVI  IndexKind = "evi"  // 增强植被指数
	IndexNDWI IndexKind = "ndwi" // 归一化水体指数
	IndexSAVI IndexKind = "savi" // 土壤调节植被指数
)

// 验证指数种类
func (k IndexKind) IsValid() bool {
	switch k {
	case IndexNDVI, IndexEVI, IndexNDWI, IndexSAVI:
		return true
	default:
		return false
	}
}

// HealthBand 健康等级
type HealthBand string

const (
	BandExcellent HealthBand = "excellent"
	BandGood      HealthBand = "good"
	BandFair      HealthBand = "fair"
	BandPoor      HealthBand = "poor"
	BandCritical  HealthBand = "critical"
	BandUnknown   HealthBand = "unknown"
)

// Color 健康等级的展示颜色
func (b HealthBand) Color() string {
	switch b {
	case BandExcellent:
		return "#15803d"
	case BandGood:
		return "#65a30d"
	case BandFair:
		return "#eab308"
	case BandPoor:
		return "#ea580c"
	case BandCritical:
		return "#dc2626"
	default:
		return "#9ca3af"
	}
}

// StressLevel 胁迫级别
type StressLevel string

const (
	StressLow     StressLevel = "low"
	StressMedium  StressLevel = "medium"
	StressHigh    StressLevel = "high"
	StressUnknown StressLevel = "unknown"
)

// Rank 胁迫级别排序权重，unknown 为 0
func (s StressLevel) Rank() int {
	switch s {
	case StressLow:
		return 1
	case StressMedium:
		return 2
	case StressHigh:
		return 3
	default:
		return 0
	}
}

// Color 胁迫级别的展示颜色
func (s StressLevel) Color() string {
	switch s {
	case StressLow:
		return "#65a30d"
	case StressMedium:
		return "#eab308"
	case StressHigh:
		return "#dc2626"
	default:
		return "#9ca3af"
	}
}

// GrowthStage 生育期
type GrowthStage string

const (
	StageSeedling    GrowthStage = "seedling"    // 苗期
	StageTillering   GrowthStage = "tillering"   // 分蘖期
	StageJointing    GrowthStage = "jointing"    // 拔节期
	StageFlowering   GrowthStage = "flowering"   // 开花期
	StageGrainFill   GrowthStage = "grain_fill"  // 灌浆期
	StageMaturity    GrowthStage = "maturity"    // 成熟期
)

// GrowthStages 全部生育期取值，供表单和校验使用
func GrowthStages() []GrowthStage {
	return []GrowthStage{
		StageSeedling, StageTillering, StageJointing,
		StageFlowering, StageGrainFill, StageMaturity,
	}
}

// TrendWindow 趋势回看窗口
type TrendWindow string

const (
	TrendWindow30Day  TrendWindow = "30d"  // 30天
	TrendWindow90Day  TrendWindow = "90d"  // 90天
	TrendWindow365Day TrendWindow = "365d" // 365天
)

// 验证回看窗口，未作硬性限制时允许自定义天数由调用方直接传入
func (t TrendWindow) IsValid() bool {
	switch t {
	case TrendWindow30Day, TrendWindow90Day, TrendWindow365Day:
		return true
	default:
		return false
	}
}

// ToDays 解析回看窗口为天数
func (t TrendWindow) ToDays() int {
	switch t {
	case TrendWindow30Day:
		return 30
	case TrendWindow90Day:
		return 90
	case TrendWindow365Day:
		return 365
	default:
		return 30 // 默认30天
	}
}
