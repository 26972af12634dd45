package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vyrodovalexey/listing-api/internal/model"
)

// Options configures the sqlite database handle.
type Options struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Default pool settings.
const (
	DefaultMaxOpenConns    = 4
	DefaultMaxIdleConns    = 2
	DefaultConnMaxLifetime = 30 * time.Minute
)

// Open opens the sqlite file at opts.Path, configures the connection pool
// and verifies the connection.
func Open(ctx context.Context, opts Options, logger *zap.Logger) (*gorm.DB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("open database: path must not be empty")
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn(opts)), &gorm.Config{
		Logger:                 NewGormLogger(logger),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(orDefault(opts.MaxOpenConns, DefaultMaxOpenConns))
	sqlDB.SetMaxIdleConns(orDefault(opts.MaxIdleConns, DefaultMaxIdleConns))
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(DefaultConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// dsn builds a go-sqlite3 connection string. Transactions take the write
// lock up front so concurrent writers queue on the busy timeout instead of
// failing on lock upgrade.
func dsn(opts Options) string {
	return fmt.Sprintf(
		"file:%s?_busy_timeout=%d&_foreign_keys=on&_journal_mode=WAL&_txlock=immediate",
		opts.Path, opts.BusyTimeout.Milliseconds(),
	)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SQLStore implements Store on top of gorm.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore creates a new SQLStore instance.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Migrate ensures the schema exists. When schemaPath is set, that script
// owns the schema and is executed as a whole; otherwise the tables are
// derived from the models. Either way categories.name ends up with a unique
// index, which resolveCategory relies on.
func (s *SQLStore) Migrate(ctx context.Context, schemaPath string) error {
	if schemaPath == "" {
		if err := s.db.WithContext(ctx).AutoMigrate(&model.Category{}, &model.Item{}); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
		return nil
	}

	script, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("reading schema script: %w", err)
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("executing schema script: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, string(script)); err != nil {
		return fmt.Errorf("executing schema script: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, categoryNameIndex); err != nil {
		return fmt.Errorf("indexing category names: %w", err)
	}

	return nil
}

// categoryNameIndex matches the index AutoMigrate derives from model.Category.
const categoryNameIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name ON categories(name)"

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return sqlDB.Close()
}

// Insert resolves the category and stores the item in one transaction.
func (s *SQLStore) Insert(ctx context.Context, item model.NewItem) (int64, error) {
	if err := validateNewItem(item); err != nil {
		return 0, err
	}

	var (
		id      int64
		created bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categoryID, inserted, err := resolveCategory(tx, item.Category)
		if err != nil {
			return err
		}
		created = inserted

		row := model.Item{
			Name:       item.Name,
			CategoryID: categoryID,
			ImageName:  item.Image,
		}
		if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
			return fmt.Errorf("inserting item: %w", err)
		}
		id = row.ID

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert item: %w", err)
	}

	itemsInsertedTotal.Inc()
	if created {
		categoriesCreatedTotal.Inc()
	}

	return id, nil
}

// resolveCategory returns the id for name, creating the row on first use.
// A concurrent creator of the same name makes our insert a no-op; the
// re-select then returns the winner's id.
func resolveCategory(tx *gorm.DB, name string) (int64, bool, error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&model.Category{Name: name})
	if res.Error != nil {
		return 0, false, fmt.Errorf("creating category: %w", res.Error)
	}

	var category model.Category
	if err := tx.Where("name = ?", name).Take(&category).Error; err != nil {
		return 0, false, fmt.Errorf("selecting category: %w", err)
	}

	return category.ID, res.RowsAffected > 0, nil
}

// views selects items left-joined with their category names.
func (s *SQLStore) views(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("items").
		Select("items.id AS id, items.name AS name, categories.name AS category, items.image_name AS image").
		Joins("LEFT JOIN categories ON categories.id = items.category_id").
		Order("items.id ASC")
}

// List returns every item joined with its category name, in insertion order.
func (s *SQLStore) List(ctx context.Context) ([]model.ItemView, error) {
	items := make([]model.ItemView, 0)
	if err := s.views(ctx).Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Search returns items whose name contains keyword. instr is used instead of
// LIKE so the match is case-sensitive and free of wildcard characters.
func (s *SQLStore) Search(ctx context.Context, keyword string) ([]model.ItemView, error) {
	query := s.views(ctx)
	if keyword != "" {
		query = query.Where("instr(items.name, ?) > 0", keyword)
	}

	items := make([]model.ItemView, 0)
	if err := query.Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return items, nil
}

// Get retrieves an item by its primary key.
func (s *SQLStore) Get(ctx context.Context, id int64) (*model.ItemView, error) {
	if id <= 0 {
		return nil, ErrInvalidID
	}

	var items []model.ItemView
	if err := s.views(ctx).Where("items.id = ?", id).Limit(1).Scan(&items).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get item: %w", err)
	}

	if len(items) == 0 {
		return nil, ErrNotFound
	}

	return &items[0], nil
}

// Categories returns all known categories ordered by id.
func (s *SQLStore) Categories(ctx context.Context) ([]model.Category, error) {
	categories := make([]model.Category, 0)
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}
