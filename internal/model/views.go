package model

// 派生视图名称（同时也是表名）
const (
	ViewMechanicStats      = "mechanic_stats"           // 所有含机制的游戏，按机制聚合
	ViewThemeStats         = "theme_stats"              // 所有含主题的游戏，按主题聚合
	ViewRatedMechanicStats = "mechanic_stats_rated"     // avgRating 高于阈值的游戏，按机制聚合；重建前清空
	ViewPairStats          = "designer_publisher_stats" // 设计师×出版商组合
	ViewYearlyStats        = "yearly_stats"             // 按年份聚合
	ViewThemeCountRank     = "theme_count_rank"         // 每个游戏的主题数
	ViewRankCache          = "rank_cache"               // 质量/热度 dense rank 缓存
)

// AllViews 全部派生视图（用于建表、inspect 与 API 白名单）
var AllViews = []string{
	ViewMechanicStats,
	ViewThemeStats,
	ViewRatedMechanicStats,
	ViewPairStats,
	ViewYearlyStats,
	ViewThemeCountRank,
	ViewRankCache,
}

// IsView 判断名称是否为已知视图
func IsView(name string) bool {
	for _, v := range AllViews {
		if v == name {
			return true
		}
	}
	return false
}

// CategoryStat 按类别（机制/主题）聚合的统计。
// 平均值由 sum/count 在写入时计算，sum/count 一并保存，保证与实时计算一致。
type CategoryStat struct {
	Label         string   `gorm:"column:label;primaryKey;type:text" json:"label"`
	GamesCount    int64    `gorm:"column:games_count;type:bigint;not null" json:"gamesCount"`
	RatingSum     float64  `gorm:"column:rating_sum;type:double precision;not null;default:0" json:"-"`
	RatingCount   int64    `gorm:"column:rating_count;type:bigint;not null;default:0" json:"-"`
	BayesSum      float64  `gorm:"column:bayes_sum;type:double precision;not null;default:0" json:"-"`
	BayesCount    int64    `gorm:"column:bayes_count;type:bigint;not null;default:0" json:"-"`
	AvgAvgRating  *float64 `gorm:"column:avg_avg_rating;type:double precision" json:"avgAvgRating"`
	AvgBayes      *float64 `gorm:"column:avg_bayes;type:double precision" json:"avgBayes"`
	SumNumRatings int64    `gorm:"column:sum_num_ratings;type:bigint;not null;default:0" json:"sumNumRatings"`
	SumNumOwned   int64    `gorm:"column:sum_num_owned;type:bigint;not null;default:0" json:"sumNumOwned"`
	StdDevSum     float64  `gorm:"column:std_dev_sum;type:double precision;not null;default:0" json:"-"`
	AvgStdDev     float64  `gorm:"column:avg_std_dev;type:double precision;not null;default:0" json:"avgStdDev"`
}

// PairStat 设计师×出版商组合统计；AvgRating = AvgSum/AvgCount
type PairStat struct {
	Designer      string   `gorm:"column:designer;primaryKey;type:text" json:"designer"`
	Publisher     string   `gorm:"column:publisher;primaryKey;type:text" json:"publisher"`
	GamesCount    int64    `gorm:"column:games_count;type:bigint;not null" json:"gamesCount"`
	SumNumRatings int64    `gorm:"column:sum_num_ratings;type:bigint;not null;default:0" json:"sumNumRatings"`
	AvgSum        float64  `gorm:"column:avg_sum;type:double precision;not null;default:0" json:"-"`
	AvgCount      int64    `gorm:"column:avg_count;type:bigint;not null;default:0" json:"-"`
	AvgRating     *float64 `gorm:"column:avg_rating;type:double precision" json:"avgRating"`
}

func (PairStat) TableName() string { return ViewPairStats }

// Key 组合键（设计师||出版商）
func (p *PairStat) Key() string { return p.Designer + "||" + p.Publisher }

// YearlyStat 按年份聚合
type YearlyStat struct {
	Year        int      `gorm:"column:year;primaryKey;autoIncrement:false" json:"year"`
	AvgRating   *float64 `gorm:"column:avg_rating;type:double precision" json:"avgRating"`
	RatingSum   float64  `gorm:"column:rating_sum;type:double precision;not null;default:0" json:"-"`
	RatingCount int64    `gorm:"column:rating_count;type:bigint;not null;default:0" json:"-"`
	Count       int64    `gorm:"column:count;type:bigint;not null" json:"count"`
	SumOwned    int64    `gorm:"column:sum_owned;type:bigint;not null;default:0" json:"sumOwned"`
}

func (YearlyStat) TableName() string { return ViewYearlyStats }

// ThemeCountRank 每个游戏的主题数量（Q2 预计算）
type ThemeCountRank struct {
	ID          string   `gorm:"column:id;primaryKey;type:text" json:"id"`
	Name        string   `gorm:"column:name;type:text" json:"name"`
	ThemesCount int      `gorm:"column:themes_count;type:int;not null" json:"themesCount"`
	AvgRating   *float64 `gorm:"column:avg_rating;type:double precision" json:"avgRating"`
	NumOwned    int64    `gorm:"column:num_owned;type:bigint;not null;default:0" json:"numOwned"`
}

func (ThemeCountRank) TableName() string { return ViewThemeCountRank }

// ThemeBucket 主题数分桶；Lower 为桶下界，Other 表示落在所有边界之外
type ThemeBucket struct {
	Lower int   `gorm:"column:lower" json:"lower"`
	Other bool  `gorm:"column:other" json:"other,omitempty"`
	Count int64 `gorm:"column:count" json:"count"`
}

// ThemeReport Q2 结果：主题最多的游戏、平均主题数、分桶直方图
type ThemeReport struct {
	Top       []ThemeCountRank `json:"top"`
	AvgThemes *float64         `json:"avgThemes"`
	Buckets   []ThemeBucket    `json:"buckets"`
}

// RankEntry 质量/热度排名缓存；RankQuality 为空表示该游戏没有质量指标
type RankEntry struct {
	ID             string   `gorm:"column:id;primaryKey;type:text" json:"id"`
	Name           string   `gorm:"column:name;type:text" json:"name"`
	RankQuality    *int64   `gorm:"column:rank_quality;type:bigint" json:"rankQuality"`
	RankPopularity *int64   `gorm:"column:rank_popularity;type:bigint" json:"rankPopularity"`
	PctGE8         *float64 `gorm:"column:pct_ge8;type:double precision" json:"pctGE8"`
}

func (RankEntry) TableName() string { return ViewRankCache }

// RankSource 排名计算的输入行（实时 SQL 与内存实现共用）
type RankSource struct {
	ID           string             `gorm:"column:id"`
	Name         string             `gorm:"column:name"`
	BayesAvg     *float64           `gorm:"column:bayes_avg"`
	NumOwned     int64              `gorm:"column:num_owned"`
	Distribution map[string]float64 `gorm:"column:ratings_distribution;serializer:json"`
}

// CategoryParams 类别统计的过滤条件
type CategoryParams struct {
	Dimension string   // mechanics / themes
	MinRating *float64 // 非空时只统计 avgRating 严格大于该值的游戏
	Limit     int      // <=0 表示不限制
}

// PairParams 组合统计的过滤条件
type PairParams struct {
	MinRatings int64
	Limit      int
}
