package store

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

// datasetDocument JSON数据集的文档结构
type datasetDocument struct {
	UpdatedAt time.Time           `json:"updated_at"`
	Count     int                 `json:"count"`
	Records   []models.DatasetRow `json:"records"`
}

type jsonCodec struct{}

func (jsonCodec) encode(rows []models.DatasetRow) ([]byte, error) {
	if rows == nil {
		rows = []models.DatasetRow{}
	}
	return json.MarshalIndent(datasetDocument{
		UpdatedAt: time.Now().UTC(),
		Count:     len(rows),
		Records:   rows,
	}, "", "  ")
}

// decode 兼容文档结构与裸数组
func (jsonCodec) decode(data []byte) ([]models.DatasetRow, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var rows []models.DatasetRow
		if err := json.Unmarshal(data, &rows); err != nil {
			return nil, err
		}
		return rows, nil
	}

	var doc datasetDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Records, nil
}
