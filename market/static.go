package market

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// StaticProvider 内存行情源，用于单元测试和确定性回测。
// 对应原平台的 mock CSV 数据目录。
type StaticProvider struct {
	events map[string][]Event
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{events: make(map[string][]Event)}
}

// Add 追加一批事件并保持时间序。
func (p *StaticProvider) Add(symbol string, events ...Event) {
	symbol = Normalize(symbol)
	p.events[symbol] = append(p.events[symbol], events...)
	sort.SliceStable(p.events[symbol], func(i, j int) bool {
		return p.events[symbol][i].Timestamp.Before(p.events[symbol][j].Timestamp)
	})
}

// Historical 返回 [start, end] 内的事件。
func (p *StaticProvider) Historical(_ context.Context, symbol string, start, end time.Time) ([]Event, error) {
	all := p.events[Normalize(symbol)]
	out := make([]Event, 0, len(all))
	for _, evt := range all {
		if evt.Timestamp.Before(start) || evt.Timestamp.After(end) {
			continue
		}
		out = append(out, evt)
	}
	return out, nil
}

// LoadCSVDir 从目录加载 <SYMBOL>.csv 固定数据，每行 "unix_ts,price"。
// 文件不存在或格式错误直接报错，不会吞掉部分数据。
func LoadCSVDir(dir string) (*StaticProvider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read fixture dir: %w", err)
	}

	p := NewStaticProvider()
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		symbol := Normalize(entry.Name()[:len(entry.Name())-len(".csv")])
		events, err := loadCSVFile(filepath.Join(dir, entry.Name()), symbol)
		if err != nil {
			return nil, err
		}
		p.Add(symbol, events...)
	}
	return p, nil
}

func loadCSVFile(path, symbol string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	events := make([]Event, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%s line %d: expected ts,price", path, i+1)
		}
		ts, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad timestamp: %w", path, i+1, err)
		}
		price, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: bad price: %w", path, i+1, err)
		}
		events = append(events, Event{
			Symbol:    symbol,
			Price:     price,
			Timestamp: time.Unix(ts, 0).UTC(),
		})
	}
	return events, nil
}
