package repository

import (
	"context"
	"fmt"

	"ViewBench/internal/interfaces"
	"ViewBench/internal/model"

	"gorm.io/gorm"
)

type indexAdmin struct {
	db *gorm.DB
}

// NewIndexAdmin 按名称创建/删除优化索引
func NewIndexAdmin(db *gorm.DB) interfaces.IndexAdmin {
	return &indexAdmin{db: db}
}

// createIndexSQL CREATE INDEX IF NOT EXISTS name ON table [USING m] (cols) [INCLUDE (...)]
func createIndexSQL(d model.IndexDef) string {
	sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s", quoteIdent(d.Name), quoteIdent(d.Table))
	if d.Using != "" {
		sql += " USING " + d.Using
	}
	sql += " (" + d.Columns + ")"
	if d.Include != "" {
		sql += " INCLUDE (" + d.Include + ")"
	}
	return sql
}

// CreateIndexes 所在表不存在的索引跳过（例如视图尚未构建）
func (a *indexAdmin) CreateIndexes(ctx context.Context, defs []model.IndexDef) ([]string, error) {
	db := a.db.WithContext(ctx)
	var created []string
	for _, d := range defs {
		if !db.Migrator().HasTable(d.Table) {
			continue
		}
		if err := db.Exec(createIndexSQL(d)).Error; err != nil {
			return created, fmt.Errorf("创建索引 %s 失败: %w", d.Name, err)
		}
		created = append(created, d.Name)
	}
	return created, nil
}

func (a *indexAdmin) DropIndexes(ctx context.Context, defs []model.IndexDef) ([]string, error) {
	db := a.db.WithContext(ctx)
	var dropped []string
	for _, d := range defs {
		if err := db.Exec("DROP INDEX IF EXISTS " + quoteIdent(d.Name)).Error; err != nil {
			return dropped, fmt.Errorf("删除索引 %s 失败: %w", d.Name, err)
		}
		dropped = append(dropped, d.Name)
	}
	return dropped, nil
}

// ListIndexes 当前 schema 下的全部索引（含主键）
func (a *indexAdmin) ListIndexes(ctx context.Context) ([]model.IndexInfo, error) {
	var rows []model.IndexInfo
	err := a.db.WithContext(ctx).
		Raw("SELECT indexname, tablename, indexdef FROM pg_indexes WHERE schemaname = current_schema() ORDER BY tablename, indexname").
		Scan(&rows).Error
	return rows, err
}
