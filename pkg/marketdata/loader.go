// 文件: pkg/marketdata/loader.go
// 从文件加载汇率序列
//
// 支持两种格式:
// - CSV:  第一行为表头
// - XLSX: 默认读第一个 sheet，第一行为表头
//
// 只认 market_rate_ccy1 / market_rate_ccy2 两列，其他列 (日期等) 忽略。

package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// LoadFile 按扩展名选择解析器
func LoadFile(path string) (*Series, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return LoadCSV(f)
	case ".xlsx":
		return LoadXLSX(path, "")
	default:
		return nil, fmt.Errorf("unsupported market data file: %s", path)
	}
}

// LoadCSV 从 CSV 读取
func LoadCSV(r io.Reader) (*Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // 允许行长度不一致
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRows(rows)
}

// LoadXLSX 从 Excel 读取
// sheet 为空时读第一个 sheet
func LoadXLSX(path, sheet string) (*Series, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%s has no sheets", path)
		}
		sheet = sheets[0]
	}

	// 读原始值，避免单元格数字格式把汇率四舍五入
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

// fromRows 第一行是表头
func fromRows(rows [][]string) (*Series, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrColumnMissing)
	}

	idx1, idx2 := -1, -1
	for i, name := range rows[0] {
		switch strings.TrimSpace(name) {
		case ColumnCcy1:
			idx1 = i
		case ColumnCcy2:
			idx2 = i
		}
	}
	if idx1 < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnMissing, ColumnCcy1)
	}
	if idx2 < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnMissing, ColumnCcy2)
	}

	s := &Series{}
	for n, row := range rows[1:] {
		c1, c2 := cell(row, idx1), cell(row, idx2)
		if c1 == "" && c2 == "" {
			continue // 空行
		}
		line := n + 2 // 表头占第 1 行
		v1, err := parseRate(c1, ColumnCcy1, line)
		if err != nil {
			return nil, err
		}
		v2, err := parseRate(c2, ColumnCcy2, line)
		if err != nil {
			return nil, err
		}
		s.Ccy1 = append(s.Ccy1, v1)
		s.Ccy2 = append(s.Ccy2, v2)
	}
	return s, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseRate(v, column string, line int) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s row %d: %q", ErrBadValue, column, line, v)
	}
	return f, nil
}
