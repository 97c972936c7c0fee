package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound 查询对象不存在。
var ErrNotFound = errors.New("record not found")

// Store 单文件 SQLite 存储：合约目录、经纪商凭据密文、回测运行索引。
type Store struct {
	db *sql.DB
}

// InstrumentRecord 合约/标的元数据。
type InstrumentRecord struct {
	Symbol     string  `json:"symbol"`
	Exchange   string  `json:"exchange"`
	Segment    string  `json:"segment"` // EQ / FUT / OPT
	LotSize    int64   `json:"lot_size,omitempty"`
	TickSize   float64 `json:"tick_size"`
	Expiry     string  `json:"expiry,omitempty"` // YYYY-MM-DD
	Strike     float64 `json:"strike,omitempty"`
	OptionType string  `json:"option_type,omitempty"` // CE / PE
}

// BacktestRunRecord 一次回测运行的索引行。
type BacktestRunRecord struct {
	ID          string    `json:"backtest_id"`
	StrategyID  string    `json:"strategy_id"`
	Status      string    `json:"status"` // running / completed / failed
	ConfigJSON  string    `json:"config_json"`
	MetricsJSON string    `json:"metrics_json,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OpenStore 打开（必要时创建）数据库并建表。
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc/sqlite 对并发写敏感，单连接即可满足本服务的写入量
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS instruments (
	symbol      TEXT PRIMARY KEY,
	exchange    TEXT NOT NULL DEFAULT 'NSE',
	segment     TEXT NOT NULL DEFAULT 'EQ',
	lot_size    INTEGER,
	tick_size   REAL NOT NULL DEFAULT 0.05,
	expiry      TEXT,
	strike      REAL,
	option_type TEXT
);
CREATE TABLE IF NOT EXISTS broker_credentials (
	broker     TEXT PRIMARY KEY,
	ciphertext BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS backtest_runs (
	id           TEXT PRIMARY KEY,
	strategy_id  TEXT NOT NULL,
	status       TEXT NOT NULL,
	config_json  TEXT NOT NULL,
	metrics_json TEXT,
	error        TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// UpsertInstrument 按 symbol 覆盖写入。
func (s *Store) UpsertInstrument(rec InstrumentRecord) error {
	_, err := s.db.Exec(`
INSERT INTO instruments (symbol, exchange, segment, lot_size, tick_size, expiry, strike, option_type)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(symbol) DO UPDATE SET
	exchange = excluded.exchange,
	segment = excluded.segment,
	lot_size = excluded.lot_size,
	tick_size = excluded.tick_size,
	expiry = excluded.expiry,
	strike = excluded.strike,
	option_type = excluded.option_type`,
		rec.Symbol, rec.Exchange, rec.Segment, rec.LotSize, rec.TickSize,
		rec.Expiry, rec.Strike, rec.OptionType)
	if err != nil {
		return fmt.Errorf("upsert instrument %s: %w", rec.Symbol, err)
	}
	return nil
}

// ListInstruments 按 symbol 排序返回全部合约。
func (s *Store) ListInstruments() ([]InstrumentRecord, error) {
	rows, err := s.db.Query(`
SELECT symbol, exchange, segment, COALESCE(lot_size, 0), tick_size,
	COALESCE(expiry, ''), COALESCE(strike, 0), COALESCE(option_type, '')
FROM instruments ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var out []InstrumentRecord
	for rows.Next() {
		var rec InstrumentRecord
		if err := rows.Scan(&rec.Symbol, &rec.Exchange, &rec.Segment, &rec.LotSize,
			&rec.TickSize, &rec.Expiry, &rec.Strike, &rec.OptionType); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveBrokerBlob 保存某个经纪商的凭据密文（加解密由 broker 包负责）。
func (s *Store) SaveBrokerBlob(broker string, ciphertext []byte) error {
	_, err := s.db.Exec(`
INSERT INTO broker_credentials (broker, ciphertext, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(broker) DO UPDATE SET ciphertext = excluded.ciphertext, updated_at = excluded.updated_at`,
		broker, ciphertext, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save broker credentials: %w", err)
	}
	return nil
}

// LoadBrokerBlob 读取凭据密文与更新时间。
func (s *Store) LoadBrokerBlob(broker string) ([]byte, time.Time, error) {
	var blob []byte
	var updated string
	err := s.db.QueryRow(
		`SELECT ciphertext, updated_at FROM broker_credentials WHERE broker = ?`, broker,
	).Scan(&blob, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load broker credentials: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, updated)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("load broker credentials: bad timestamp: %w", err)
	}
	return blob, ts, nil
}

// InsertBacktestRun 新增一条运行索引。
func (s *Store) InsertBacktestRun(rec BacktestRunRecord) error {
	_, err := s.db.Exec(`
INSERT INTO backtest_runs (id, strategy_id, status, config_json, metrics_json, error, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StrategyID, rec.Status, rec.ConfigJSON, rec.MetricsJSON, rec.Error,
		rec.CreatedAt.UTC().Format(time.RFC3339), rec.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert backtest run %s: %w", rec.ID, err)
	}
	return nil
}

// UpdateBacktestRun 更新状态/指标/错误。
func (s *Store) UpdateBacktestRun(id, status, metricsJSON, errMsg string) error {
	res, err := s.db.Exec(`
UPDATE backtest_runs SET status = ?, metrics_json = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, metricsJSON, errMsg, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update backtest run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBacktestRun 按 id 查询。
func (s *Store) GetBacktestRun(id string) (*BacktestRunRecord, error) {
	var rec BacktestRunRecord
	var created, updated string
	err := s.db.QueryRow(`
SELECT id, strategy_id, status, config_json, COALESCE(metrics_json, ''), COALESCE(error, ''), created_at, updated_at
FROM backtest_runs WHERE id = ?`, id).Scan(
		&rec.ID, &rec.StrategyID, &rec.Status, &rec.ConfigJSON, &rec.MetricsJSON, &rec.Error,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get backtest run %s: %w", id, err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &rec, nil
}

// ListBacktestRuns 按创建时间倒序返回最近 limit 条。
func (s *Store) ListBacktestRuns(limit int) ([]BacktestRunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
SELECT id, strategy_id, status, config_json, COALESCE(metrics_json, ''), COALESCE(error, ''), created_at, updated_at
FROM backtest_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backtest runs: %w", err)
	}
	defer rows.Close()

	var out []BacktestRunRecord
	for rows.Next() {
		var rec BacktestRunRecord
		var created, updated string
		if err := rows.Scan(&rec.ID, &rec.StrategyID, &rec.Status, &rec.ConfigJSON,
			&rec.MetricsJSON, &rec.Error, &created, &updated); err != nil {
			return nil, err
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		rec.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, rec)
	}
	return out, rows.Err()
}
