package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RequirementColumn 输入表中必须存在的列名
const RequirementColumn = "Requirement"

var (
	ErrMissingColumn  = errors.New("the input file must contain a 'Requirement' column")
	ErrNoRequirements = errors.New("the 'Requirement' column is empty or contains no valid data")
)

// ReadRequirements 读取第一个 sheet 的 Requirement 列，按行序返回非空单元格
func ReadRequirements(contents []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrMissingColumn
	}

	col := -1
	for i, name := range rows[0] {
		if name == RequirementColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, ErrMissingColumn
	}

	var requirements []string
	for _, row := range rows[1:] {
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		requirements = append(requirements, row[col])
	}
	if len(requirements) == 0 {
		return nil, ErrNoRequirements
	}

	return requirements, nil
}
