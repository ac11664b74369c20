package model

// IndexDef 一个具名索引定义；Using 为空时使用 btree
type IndexDef struct {
	Name    string // 索引名
	Table   string // 所在表
	Columns string // 列或表达式，原样放入括号内
	Include string // INCLUDE 覆盖列
	Using   string // 访问方法，如 gin
	QueryID string // 服务的查询（视图侧索引为空）
}

// IndexInfo 数据库中已存在的索引
type IndexInfo struct {
	Name  string `gorm:"column:indexname" json:"name"`
	Table string `gorm:"column:tablename" json:"table"`
	Def   string `gorm:"column:indexdef" json:"def"`
}
