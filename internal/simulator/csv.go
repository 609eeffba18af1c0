package simulator

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadCSV 读取原交易机器人的 trades.csv：
// timestamp,symbol,side,quantity[,price[,usdt[,btc]]]
// 少于 4 列的行跳过；缺失或无法解析的数值列输出为 null。
func (s *Simulator) LoadCSV(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	loaded := 0
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return loaded, fmt.Errorf("读取 CSV 失败: %w", err)
		}
		if len(rec) < 4 || strings.TrimSpace(strings.Join(rec, "")) == "" {
			continue
		}
		row := Row{
			Timestamp: strings.TrimSpace(rec[0]),
			Symbol:    strings.TrimSpace(rec[1]),
			Side:      strings.TrimSpace(rec[2]),
			Quantity:  strings.TrimSpace(rec[3]),
			Price:     optionalColumn(rec, 4),
			USDT:      optionalColumn(rec, 5),
			BTC:       optionalColumn(rec, 6),
		}
		s.Append(row)
		loaded++
	}
	return loaded, nil
}

// LoadCSVFile 从文件加载流水
func (s *Simulator) LoadCSVFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开 CSV 文件失败: %w", err)
	}
	defer f.Close()
	return s.LoadCSV(f)
}

func optionalColumn(rec []string, idx int) *float64 {
	if idx >= len(rec) {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
	if err != nil {
		return nil
	}
	return &v
}
