package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/RecoveryAshes/ScholarFuse/internal/models"
)

type csvCodec struct{}

func (csvCodec) encode(rows []models.DatasetRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns()); err != nil {
		return nil, err
	}
	for i := range rows {
		if err := w.Write(rowValues(&rows[i])); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// decode 按表头列名映射,未知列忽略,缺少的列保持零值
func (csvCodec) decode(data []byte) ([]models.DatasetRow, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c.name] = i
	}
	mapping := make([]int, len(header))
	for i, name := range header {
		pos, ok := index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))]
		if !ok {
			pos = -1
		}
		mapping[i] = pos
	}

	var rows []models.DatasetRow
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var row models.DatasetRow
		for i, value := range record {
			if i >= len(mapping) || mapping[i] < 0 {
				continue
			}
			if err := columns[mapping[i]].set(&row, value); err != nil {
				return nil, fmt.Errorf("第%d行: %w", line, err)
			}
		}
		if row.CoAuthors == nil {
			row.CoAuthors = []string{}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
