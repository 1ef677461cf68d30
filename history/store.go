// Package history 持久化分析记录：每次论文研读的快照、生成的报告摘要与
// 评审对话转写。底层使用 GORM，默认 SQLite，也支持 MySQL/PostgreSQL。
package history

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xichengpro/SourceMind/analysis"
	"github.com/xichengpro/SourceMind/config"
	"github.com/xichengpro/SourceMind/internal/textutil"
)

// Record 一条历史记录，主键为分析运行的 UUID。
type Record struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Title      string    `gorm:"size:500" json:"title"`
	SourceType string    `gorm:"size:20" json:"source_type"` // arxiv / pdf
	SourceName string    `gorm:"size:255;index" json:"source_name"`
	Summary    string    `gorm:"type:text" json:"summary"`  // 报告开头摘录
	Keywords   string    `gorm:"size:500" json:"keywords"`  // 术语节点提取的关键词
	Transcript string    `gorm:"type:text" json:"transcript"`
	StateJSON  string    `gorm:"type:text" json:"state_json"` // analysis.Snapshot 序列化
}

// Store 基于 GORM 的历史存储。
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open 按配置连接数据库并自动迁移表结构。
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		dialector = sqlite.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, mysql, postgres)", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	logger.Info("history database connected", zap.String("driver", cfg.Driver))
	return &Store{db: db, logger: logger}, nil
}

// Close 关闭底层连接池。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// 同一 ID 重复保存时更新的列；created_at 保留首次写入值。
var upsertColumns = []string{
	"updated_at", "title", "source_type", "source_name",
	"summary", "keywords", "transcript", "state_json",
}

// Save 插入或按 ID 更新一条记录，重复保存是幂等的。
func (s *Store) Save(rec *Record) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("save record %s: %w", rec.ID, err)
	}
	return nil
}

// Archive 把一次分析的快照写入历史。transcript 为空时保留库中已有的
// 对话转写，这样追加问答后的重新归档不会抹掉先前的评审记录。
func (s *Store) Archive(snap analysis.Snapshot, transcript string) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", snap.ID, err)
	}

	rec := Record{
		ID:         snap.ID,
		CreatedAt:  snap.CreatedAt,
		Title:      snap.Title,
		SourceType: snap.SourceType,
		SourceName: snap.SourceName,
		Summary:    textutil.Truncate(snap.Report, 200),
		Keywords:   extractKeywords(snap),
		Transcript: transcript,
		StateJSON:  string(raw),
	}

	if transcript == "" {
		var prev Record
		if err := s.db.Select("transcript").First(&prev, "id = ?", snap.ID).Error; err == nil {
			rec.Transcript = prev.Transcript
		}
	}

	if err := s.Save(&rec); err != nil {
		return err
	}
	s.logger.Debug("analysis archived",
		zap.String("record_id", snap.ID),
		zap.String("title", snap.Title),
	)
	return nil
}

// Get 按 ID 读取一条记录，不存在时返回 gorm.ErrRecordNotFound。
func (s *Store) Get(id string) (*Record, error) {
	var rec Record
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get record %s: %w", id, err)
	}
	return &rec, nil
}

// List 按创建时间倒序列出记录；keyword 非空时对标题、来源名和
// 关键词做模糊匹配。
func (s *Store) List(keyword string) ([]Record, error) {
	q := s.db.Order("created_at DESC")
	if keyword = strings.TrimSpace(keyword); keyword != "" {
		pattern := "%" + keyword + "%"
		q = q.Where("title LIKE ? OR source_name LIKE ? OR keywords LIKE ?", pattern, pattern, pattern)
	}

	var recs []Record
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return recs, nil
}

// Delete 按 ID 删除记录；不存在时同样返回 gorm.ErrRecordNotFound。
func (s *Store) Delete(id string) error {
	res := s.db.Delete(&Record{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete record %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete record %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// ExportJSON 导出一条记录为 JSON，供备份或迁移。
func (s *Store) ExportJSON(id string) ([]byte, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export record %s: %w", id, err)
	}
	return data, nil
}

// ImportJSON 导入 ExportJSON 产出的记录，按 ID 幂等覆盖。
func (s *Store) ImportJSON(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("import record: %w", err)
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("import record: missing id")
	}
	if err := s.Save(&rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

var boldTermRe = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)

// extractKeywords 从术语节点输出里收集加粗的术语作为检索关键词。
func extractKeywords(snap analysis.Snapshot) string {
	terms, ok := snap.Nodes[analysis.NodeTerms]
	if !ok || terms.Status != analysis.NodeDone {
		return ""
	}

	seen := make(map[string]struct{})
	var keywords []string
	for _, m := range boldTermRe.FindAllStringSubmatch(terms.Output, -1) {
		kw := strings.TrimSpace(m[1])
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
		if len(keywords) >= 10 {
			break
		}
	}
	return strings.Join(keywords, ", ")
}
