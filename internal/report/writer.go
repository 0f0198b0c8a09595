package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/qs3c/tender_rag_server/internal/answer"
)

// ContentType xlsx 下载的 MIME 类型
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Headers 输出表的三列
var Headers = []string{"Requirement", "Supplier explanation / comments", "Reference"}

// Layout 输出表格式
type Layout struct {
	SheetName      string
	QColumnWidth   float64
	AColumnWidth   float64
	RefColumnWidth float64
}

// Write 生成报告，行序与 records 一致，表头加粗，所有单元格自动换行、顶端对齐
func Write(records []answer.Record, layout Layout) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := layout.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("invalid sheet name %q: %w", sheet, err)
	}

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, err
	}
	if err := f.SetColStyle(sheet, "A:C", wrap); err != nil {
		return nil, err
	}

	widths := []struct {
		col   string
		width float64
	}{
		{"A", layout.QColumnWidth},
		{"B", layout.AColumnWidth},
		{"C", layout.RefColumnWidth},
	}
	for _, w := range widths {
		if err := f.SetColWidth(sheet, w.col, w.col, w.width); err != nil {
			return nil, fmt.Errorf("set width of column %s: %w", w.col, err)
		}
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", header); err != nil {
		return nil, err
	}

	for i, rec := range records {
		row := i + 2
		values := []string{rec.Requirement, rec.Explanation, rec.Reference}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
