package model

import (
	"gorm.io/datatypes"
)

// Popularity 热度计数（缺失时为 0）
type Popularity struct {
	NumOwned   int64 `gorm:"column:num_owned;type:bigint;not null;default:0" json:"numOwned"`
	NumWants   int64 `gorm:"column:num_wants;type:bigint;not null;default:0" json:"numWants"`
	NumRatings int64 `gorm:"column:num_ratings;type:bigint;not null;default:0" json:"numRatings"`
}

// Game 物化后的规范化游戏记录（games 表）。
// 每次 ETL 整体重建，以 id 为 upsert 键整行替换；不含时间戳字段，保证重复执行结果一致。
type Game struct {
	ID                  string             `gorm:"column:id;primaryKey;type:text" json:"id"`
	SourceID            string             `gorm:"column:source_id;type:text" json:"sourceId"`
	Name                string             `gorm:"column:name;type:text;not null;default:''" json:"name"`
	Year                *int               `gorm:"column:year;type:int" json:"year"`
	AvgRating           *float64           `gorm:"column:avg_rating;type:double precision" json:"avgRating"`
	BayesAvg            *float64           `gorm:"column:bayes_avg;type:double precision" json:"bayesAvg"`
	StdDev              *float64           `gorm:"column:std_dev;type:double precision" json:"stdDev"`
	Popularity          Popularity         `gorm:"embedded" json:"popularity"`
	Ranks               datatypes.JSON     `gorm:"column:ranks;type:jsonb" json:"ranks"`
	Mechanics           []string           `gorm:"column:mechanics;type:jsonb;serializer:json" json:"mechanics"`
	Themes              []string           `gorm:"column:themes;type:jsonb;serializer:json" json:"themes"`
	Subcategories       []string           `gorm:"column:subcategories;type:jsonb;serializer:json" json:"subcategories"`
	Designers           []string           `gorm:"column:designers;type:jsonb;serializer:json" json:"designers"`
	Artists             []string           `gorm:"column:artists;type:jsonb;serializer:json" json:"artists"`
	Publishers          []string           `gorm:"column:publishers;type:jsonb;serializer:json" json:"publishers"`
	RatingsDistribution map[string]float64 `gorm:"column:ratings_distribution;type:jsonb;serializer:json" json:"ratingsDistribution"`
	RatingsTotal        *float64           `gorm:"column:ratings_total;type:double precision" json:"ratingsTotal"`
}

func (Game) TableName() string { return "games" }

// RatingOrBayes avgRating 缺失时退回 bayesAvg
func (g *Game) RatingOrBayes() *float64 {
	if g.AvgRating != nil {
		return g.AvgRating
	}
	return g.BayesAvg
}

// BayesOrRating bayesAvg 缺失时退回 avgRating
func (g *Game) BayesOrRating() *float64 {
	if g.BayesAvg != nil {
		return g.BayesAvg
	}
	return g.AvgRating
}
