package model

import (
	"encoding/json"
	"strconv"

	"gorm.io/datatypes"
)

// RawDocument 原始集合中的一条记录（CSV/BSON 导入后原样保存，字段不确定）
type RawDocument struct {
	ID         uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	Collection string         `gorm:"column:collection;type:varchar(64);not null;index:idx_raw_collection"`
	Doc        datatypes.JSON `gorm:"column:doc;type:jsonb;not null"`
}

func (RawDocument) TableName() string { return "raw_documents" }

// RawEntity 解码后的原始记录：SourceID 为存储内部ID，Fields 为任意键值
type RawEntity struct {
	SourceID string
	Fields   map[string]any
}

// ToEntity 解码 jsonb 文档；无法解码的文档返回空字段集合而不是报错
func (d *RawDocument) ToEntity() RawEntity {
	fields := map[string]any{}
	if len(d.Doc) > 0 {
		if err := json.Unmarshal(d.Doc, &fields); err != nil || fields == nil {
			fields = map[string]any{}
		}
	}
	return RawEntity{SourceID: strconv.FormatUint(d.ID, 10), Fields: fields}
}

// NewRawDocument 将一条原始记录编码为 jsonb 文档
func NewRawDocument(collection string, fields map[string]any) (*RawDocument, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return &RawDocument{Collection: collection, Doc: datatypes.JSON(b)}, nil
}
