package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ChatRecord 表示一轮对话的落库结构。
type ChatRecord struct {
	SessionID     string
	TurnID        string
	UserMessage   string
	Reply         string
	Widget        string
	FunctionCalls string
	CreatedAt     int64
}

// ChatRepository 抽象对话归档数据的持久化接口。
type ChatRepository interface {
	Save(ctx context.Context, record ChatRecord) error
	ListBySession(ctx context.Context, sessionID string, limit int) ([]ChatRecord, error)
}

// MemoryChatRepository 使用本地 JSON 文件模拟 MySQL 的效果，方便迭代开发。
type MemoryChatRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []ChatRecord
}

// NewMemoryChatRepository 创建一个内存对话仓库。
func NewMemoryChatRepository(dataDir string) (*MemoryChatRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "chats.log")
	repo := &MemoryChatRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 以追加写的方式记录对话结果。
func (m *MemoryChatRepository) Save(_ context.Context, record ChatRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开对话日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化对话记录失败: %w", err)
	}

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入对话日志失败: %w", err)
	}

	m.records = append([]ChatRecord{record}, m.records...)
	if len(m.records) > 512 {
		m.records = m.records[:512]
	}
	return nil
}

// ListBySession 返回指定会话最近的对话记录，按时间倒序排列。
func (m *MemoryChatRepository) ListBySession(_ context.Context, sessionID string, limit int) ([]ChatRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []ChatRecord
	for _, record := range m.records {
		if record.SessionID != sessionID {
			continue
		}
		results = append(results, record)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (m *MemoryChatRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取对话日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []ChatRecord
	for scanner.Scan() {
		var record ChatRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]ChatRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析对话日志失败: %w", err)
	}

	if len(restored) > 512 {
		restored = restored[:512]
	}
	if len(restored) > 0 {
		m.records = restored
	}
	return nil
}

// SQLChatRepository 使用真实的 MySQL 数据库存储对话归档。
type SQLChatRepository struct {
	db *sql.DB
}

// NewSQLChatRepository 创建连接池并初始化数据表。
func NewSQLChatRepository(ctx context.Context, cfg Config) (*SQLChatRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	repo := &SQLChatRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (s *SQLChatRepository) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS chat_turns (
        id BIGINT AUTO_INCREMENT PRIMARY KEY,
        session_id VARCHAR(64) NOT NULL,
        turn_id VARCHAR(64) NOT NULL,
        user_message TEXT NOT NULL,
        reply TEXT NOT NULL,
        widget VARCHAR(64) DEFAULT '',
        function_calls TEXT NOT NULL,
        created_at BIGINT NOT NULL,
        INDEX idx_session_created (session_id, created_at)
)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化 chat_turns 表失败: %w", err)
	}
	return nil
}

// Save 将对话记录写入 MySQL。
func (s *SQLChatRepository) Save(ctx context.Context, record ChatRecord) error {
	const stmt = `INSERT INTO chat_turns
        (session_id, turn_id, user_message, reply, widget, function_calls, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.SessionID,
		record.TurnID,
		record.UserMessage,
		record.Reply,
		record.Widget,
		record.FunctionCalls,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListBySession 查询指定会话最近的若干条对话记录。
func (s *SQLChatRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]ChatRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT session_id, turn_id, user_message, reply, widget, function_calls, created_at
        FROM chat_turns WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询对话记录失败: %w", err)
	}
	defer rows.Close()

	var records []ChatRecord
	for rows.Next() {
		var record ChatRecord
		if err := rows.Scan(&record.SessionID, &record.TurnID, &record.UserMessage, &record.Reply, &record.Widget, &record.FunctionCalls, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析对话记录失败: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历对话记录失败: %w", err)
	}

	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLChatRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
