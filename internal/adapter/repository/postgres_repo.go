package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lazysoft-news-pipeline/internal/domain"
)

// PostgresRepo 实现了 port.Repository 接口，
// 所有多行写入都在事务中完成
type PostgresRepo struct {
	db *gorm.DB
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	repo := &PostgresRepo{db: db}
	if err := repo.migrate(); err != nil {
		return nil, err
	}
	return repo, nil
}

// NewWithDB 用现成的 *gorm.DB 构造，测试用
func NewWithDB(db *gorm.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) migrate() error {
	err := r.db.AutoMigrate(
		&domain.Source{},
		&domain.RawArticle{},
		&domain.ProcessedArticle{},
		&domain.Category{},
		&domain.SocialPost{},
		&domain.Digest{},
		&domain.ProcessingLog{},
		&domain.ImageCacheEntry{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// SeedCategories 播种十个固定分类，已存在的不动
func (r *PostgresRepo) SeedCategories(ctx context.Context) error {
	for _, c := range domain.DefaultCategories() {
		c := c
		if err := r.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&c).Error; err != nil {
			return err
		}
	}
	return nil
}

// --- 订阅源 ---

// ListActiveSources 返回所有启用的订阅源
func (r *PostgresRepo) ListActiveSources(ctx context.Context) ([]*domain.Source, error) {
	var sources []*domain.Source
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("id asc").
		Find(&sources).Error
	return sources, err
}

// SaveSource 保存或更新订阅源 (Upsert)
func (r *PostgresRepo) SaveSource(ctx context.Context, source *domain.Source) error {
	return r.db.WithContext(ctx).Save(source).Error
}

// TouchSourceFetched 更新订阅源的最近抓取时间
func (r *PostgresRepo) TouchSourceFetched(ctx context.Context, sourceID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Source{}).
		Where("id = ?", sourceID).
		Update("last_fetched_at", at).Error
}

// --- 原始文章 ---

// LoadContentHashes 取一个来源下所有已入库文章的内容哈希，供去重比对
func (r *PostgresRepo) LoadContentHashes(ctx context.Context, sourceID string) (map[string]struct{}, error) {
	var hashes []string
	err := r.db.WithContext(ctx).
		Model(&domain.RawArticle{}).
		Where("source_id = ?", sourceID).
		Pluck("content_hash", &hashes).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		set[h] = struct{}{}
	}
	return set, nil
}

// InsertRawArticles 批量入库原始文章。
// (source_id, content_hash) 撞唯一约束的行静默跳过，返回实际插入行数。
func (r *PostgresRepo) InsertRawArticles(ctx context.Context, articles []*domain.RawArticle) (int, error) {
	if len(articles) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range articles {
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(a)
			if res.Error != nil {
				return res.Error
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	return inserted, err
}

// CandidatesForDate 取指定日期内尚未加工、非重复的原始文章，
// 按发布时间倒序，limit 控制 LLM 成本
func (r *PostgresRepo) CandidatesForDate(ctx context.Context, date time.Time, limit int) ([]*domain.RawArticle, error) {
	dayStart := date
	dayEnd := date.Add(24 * time.Hour)

	var articles []*domain.RawArticle
	err := r.db.WithContext(ctx).
		Where("published_at >= ? AND published_at < ?", dayStart, dayEnd).
		Where("is_processed = ? AND is_duplicate = ?", false, false).
		Order("published_at desc, id asc").
		Limit(limit).
		Find(&articles).Error
	return articles, err
}

// UpdateRawArticle 保存原始文章的加工状态变化
func (r *PostgresRepo) UpdateRawArticle(ctx context.Context, article *domain.RawArticle) error {
	return r.db.WithContext(ctx).Save(article).Error
}

// --- 加工文章 ---

// SaveProcessed 保存或更新加工文章 (Upsert)
func (r *PostgresRepo) SaveProcessed(ctx context.Context, article *domain.ProcessedArticle) error {
	return r.db.WithContext(ctx).Save(article).Error
}

// ProcessedByDate 取加工自指定发布日原始文章的全部加工行。
// 按原始文章的 published_at 关联，回填历史日期时也能取到当天的文章。
func (r *PostgresRepo) ProcessedByDate(ctx context.Context, date time.Time) ([]*domain.ProcessedArticle, error) {
	var articles []*domain.ProcessedArticle
	err := r.db.WithContext(ctx).
		Model(&domain.ProcessedArticle{}).
		Joins("JOIN raw_articles ON raw_articles.id = processed_articles.raw_article_id").
		Where("raw_articles.published_at >= ? AND raw_articles.published_at < ?", date, date.Add(24*time.Hour)).
		Order("processed_articles.created_at asc").
		Find(&articles).Error
	return articles, err
}

// ApplyTopSelection 同一事务内先清除当日旧的精选标记，
// 再按给定顺序写入 rank 1..k。is_top/rank/top_selection_date 只从这里写入。
func (r *PostgresRepo) ApplyTopSelection(ctx context.Context, date time.Time, ranked []*domain.ProcessedArticle) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.ProcessedArticle{}).
			Where("is_top = ? AND top_selection_date = ?", true, date).
			Updates(map[string]any{
				"is_top": false,
				"rank":   0,
			}).Error
		if err != nil {
			return err
		}

		for i, a := range ranked {
			a.IsTop = true
			a.Rank = i + 1
			a.TopSelectionDate = date
			err := tx.Model(&domain.ProcessedArticle{}).
				Where("id = ?", a.ID).
				Updates(map[string]any{
					"is_top":             true,
					"rank":               a.Rank,
					"top_selection_date": date,
					"priority":           a.Priority,
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// --- 摘要 / 社交 / 流水 ---

// UpsertDigest 按日期幂等写入当日摘要
func (r *PostgresRepo) UpsertDigest(ctx context.Context, digest *domain.Digest) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title_en", "title_uk", "title_pl",
				"intro_en", "intro_uk", "intro_pl",
				"article_ids", "total_articles",
				"is_published", "generated_at", "published_at",
			}),
		}).
		Create(digest).Error
}

// EnsureSocialPost 插入社交发布记录，(article_id, platform) 已存在时静默跳过。
// 返回是否真的新建了一行。
func (r *PostgresRepo) EnsureSocialPost(ctx context.Context, post *domain.SocialPost) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(post)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AppendLog 追加一条处理流水
func (r *PostgresRepo) AppendLog(ctx context.Context, entry *domain.ProcessingLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// RunCost 统计 since 之后的 token 总量和美元开销，供 ROI 报表用
func (r *PostgresRepo) RunCost(ctx context.Context, since time.Time) (int, float64, error) {
	var row struct {
		Tokens int
		Cost   float64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.ProcessingLog{}).
		Select("COALESCE(SUM(input_tokens + output_tokens), 0) as tokens, COALESCE(SUM(cost_usd), 0) as cost").
		Where("created_at >= ?", since).
		Scan(&row).Error
	return row.Tokens, row.Cost, err
}

// --- 图片缓存 ---

// GetCachedImage 按查询哈希取未过期的缓存图片
func (r *PostgresRepo) GetCachedImage(ctx context.Context, queryHash string) (string, bool, error) {
	var entry domain.ImageCacheEntry
	err := r.db.WithContext(ctx).
		Where("query_hash = ? AND expires_at > ?", queryHash, time.Now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.ImageURL, true, nil
}

// PutCachedImage 写入或刷新图片缓存条目
func (r *PostgresRepo) PutCachedImage(ctx context.Context, entry *domain.ImageCacheEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "query_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"query", "image_url", "provider", "expires_at"}),
		}).
		Create(entry).Error
}

// Ping 健康检查
func (r *PostgresRepo) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
