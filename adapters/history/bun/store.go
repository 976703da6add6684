package historybun

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-calexport/export"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// DefaultDSN keeps history in a process-local in-memory database.
const DefaultDSN = "file:calexport_history?mode=memory&cache=shared"

// Store persists render records in a Bun-backed database.
type Store struct {
	DB *bun.DB
}

// NewStore creates a Bun-backed history store.
func NewStore(db *bun.DB) *Store {
	return &Store{DB: db}
}

var _ export.HistoryStore = (*Store)(nil)

// OpenSQLite opens a SQLite database through sqliteshim and creates the
// history schema.
func OpenSQLite(ctx context.Context, dsn string) (*bun.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = DefaultDSN
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, export.NewError(export.KindInternal, "open history database", err)
	}
	if strings.Contains(dsn, "memory") {
		sqldb.SetMaxOpenConns(1)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// CreateSchema creates the render history table if missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return export.NewError(export.KindInternal, "history database not configured", nil)
	}
	if _, err := db.NewCreateTable().Model((*recordModel)(nil)).IfNotExists().Exec(ctx); err != nil {
		return export.NewError(export.KindInternal, "create history schema", err)
	}
	_, err := db.NewCreateIndex().
		Model((*recordModel)(nil)).
		Index("render_records_started_at_idx").
		Column("started_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return export.NewError(export.KindInternal, "create history index", err)
	}
	return nil
}

// Record inserts a render record.
func (s *Store) Record(ctx context.Context, record export.RenderRecord) error {
	if s == nil || s.DB == nil {
		return export.NewError(export.KindInternal, "history database not configured", nil)
	}
	if record.ID == "" {
		return export.NewError(export.KindValidation, "record ID is required", nil)
	}
	model := modelFromRecord(record)
	_, err := s.DB.NewInsert().Model(&model).Exec(ctx)
	return err
}

// List returns records matching filter, newest first.
func (s *Store) List(ctx context.Context, filter export.HistoryFilter) ([]export.RenderRecord, error) {
	if s == nil || s.DB == nil {
		return nil, export.NewError(export.KindInternal, "history database not configured", nil)
	}

	models := make([]recordModel, 0)
	query := s.DB.NewSelect().Model(&models)
	if filter.Mode != "" {
		query = query.Where("mode = ?", string(filter.Mode))
	}
	if filter.State != "" {
		query = query.Where("state = ?", string(filter.State))
	}
	if !filter.Since.IsZero() {
		query = query.Where("started_at >= ?", filter.Since)
	}
	query = query.Order("started_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	records := make([]export.RenderRecord, 0, len(models))
	for _, model := range models {
		records = append(records, model.toRecord())
	}
	return records, nil
}

type recordModel struct {
	bun.BaseModel `bun:"table:render_records,alias:render_records"`

	ID          string    `bun:",pk"`
	Mode        string    `bun:",notnull"`
	Profile     string    `bun:",notnull"`
	State       string    `bun:",notnull"`
	ErrorKind   string    `bun:"error_kind"`
	Bytes       int64     `bun:"bytes"`
	Filename    string    `bun:"filename"`
	StartedAt   time.Time `bun:"started_at"`
	CompletedAt time.Time `bun:"completed_at,nullzero"`
	DurationMS  int64     `bun:"duration_ms"`
}

func modelFromRecord(record export.RenderRecord) recordModel {
	return recordModel{
		ID:          record.ID,
		Mode:        string(record.Mode),
		Profile:     string(record.Profile),
		State:       string(record.State),
		ErrorKind:   string(record.ErrorKind),
		Bytes:       record.Bytes,
		Filename:    record.Filename,
		StartedAt:   record.StartedAt.UTC(),
		CompletedAt: record.CompletedAt.UTC(),
		DurationMS:  record.Duration.Milliseconds(),
	}
}

func (m recordModel) toRecord() export.RenderRecord {
	return export.RenderRecord{
		ID:          m.ID,
		Mode:        export.Mode(m.Mode),
		Profile:     export.ProfileClass(m.Profile),
		State:       export.RunState(m.State),
		ErrorKind:   export.ErrorKind(m.ErrorKind),
		Bytes:       m.Bytes,
		Filename:    m.Filename,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		Duration:    time.Duration(m.DurationMS) * time.Millisecond,
	}
}
