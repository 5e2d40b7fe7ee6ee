// Package pgstore хранит состояние в PostgreSQL (pgx/pgxpool).
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"pricing-service/internal/catalog/model"
)

const settingCRMCategories = "crm_categories"
const settingGlobalFilters = "global_filters"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tables (
		id          TEXT PRIMARY KEY,
		position    INT NOT NULL DEFAULT 0,
		name        TEXT NOT NULL,
		file_name   TEXT NOT NULL DEFAULT '',
		upload_time TIMESTAMPTZ NOT NULL,
		header      JSONB NOT NULL DEFAULT '[]',
		filters     JSONB NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS table_items (
		table_id      TEXT NOT NULL REFERENCES tables(id) ON DELETE CASCADE,
		position      INT NOT NULL,
		item_id       TEXT NOT NULL,
		normalized_id TEXT NOT NULL,
		data          JSONB NOT NULL,
		PRIMARY KEY (table_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS table_items_normalized_id_idx ON table_items (normalized_id)`,
	`CREATE TABLE IF NOT EXISTS global_overrides (
		normalized_id TEXT PRIMARY KEY,
		data          JSONB NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS item_categories (
		category_type TEXT NOT NULL,
		normalized_id TEXT NOT NULL,
		added_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (category_type, normalized_id)
	)`,
	`CREATE TABLE IF NOT EXISTS feed_caches (
		scope      TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS app_settings (
		key  TEXT PRIMARY KEY,
		data JSONB NOT NULL
	)`,
}

type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open подключается по DSN с повторами (serverless-базы просыпаются не сразу)
// и создаёт схему, если её нет.
func Open(ctx context.Context, dsn string, logger zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: invalid DATABASE_URL: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	delay := time.Second
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		logger.Warn().Err(err).Int("attempt", attempt).Msg("postgres not ready, retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	s := &Store{pool: pool, log: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	for _, q := range schema {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("pgstore: schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Load(ctx context.Context) (model.Snapshot, error) {
	snap := model.EmptySnapshot()

	rows, err := s.pool.Query(ctx, `SELECT id, name, file_name, upload_time, header, filters FROM tables ORDER BY position, upload_time`)
	if err != nil {
		return snap, fmt.Errorf("pgstore: load tables: %w", err)
	}
	for rows.Next() {
		var (
			t               model.Table
			header, filters []byte
		)
		if err := rows.Scan(&t.ID, &t.Name, &t.OriginalFileName, &t.UploadTime, &header, &filters); err != nil {
			rows.Close()
			return snap, fmt.Errorf("pgstore: scan table: %w", err)
		}
		if err := unmarshalJSON(header, &t.Header); err != nil {
			rows.Close()
			return snap, err
		}
		if err := unmarshalJSON(filters, &t.Filters); err != nil {
			rows.Close()
			return snap, err
		}
		snap.Tables = append(snap.Tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("pgstore: load tables: %w", err)
	}

	for i := range snap.Tables {
		items, err := s.loadItems(ctx, snap.Tables[i].ID)
		if err != nil {
			return snap, err
		}
		snap.Tables[i].Data = items
	}

	if err := s.loadOverrides(ctx, snap.Overrides); err != nil {
		return snap, err
	}
	if err := s.loadCategories(ctx, snap.Categories); err != nil {
		return snap, err
	}
	if err := s.loadFeeds(ctx, &snap); err != nil {
		return snap, err
	}
	if err := s.loadSetting(ctx, settingCRMCategories, &snap.CRMCategories); err != nil {
		return snap, err
	}
	if err := s.loadSetting(ctx, settingGlobalFilters, &snap.GlobalFilters); err != nil {
		return snap, err
	}
	snap.Sanitize()
	return snap, nil
}

func (s *Store) loadItems(ctx context.Context, tableID string) ([]model.Item, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM table_items WHERE table_id = $1 ORDER BY position`, tableID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load items %s: %w", tableID, err)
	}
	defer rows.Close()
	var items []model.Item
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("pgstore: scan item: %w", err)
		}
		var it model.Item
		if err := unmarshalJSON(data, &it); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) loadOverrides(ctx context.Context, into map[string]*model.Override) error {
	rows, err := s.pool.Query(ctx, `SELECT normalized_id, data FROM global_overrides`)
	if err != nil {
		return fmt.Errorf("pgstore: load overrides: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			nid  string
			data []byte
		)
		if err := rows.Scan(&nid, &data); err != nil {
			return fmt.Errorf("pgstore: scan override: %w", err)
		}
		o := &model.Override{}
		if err := unmarshalJSON(data, o); err != nil {
			return err
		}
		into[nid] = o
	}
	return rows.Err()
}

func (s *Store) loadCategories(ctx context.Context, into model.Categories) error {
	rows, err := s.pool.Query(ctx, `SELECT category_type, normalized_id, added_at FROM item_categories`)
	if err != nil {
		return fmt.Errorf("pgstore: load categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t     string
			nid   string
			added time.Time
		)
		if err := rows.Scan(&t, &nid, &added); err != nil {
			return fmt.Errorf("pgstore: scan category: %w", err)
		}
		ct := model.CategoryType(t)
		if !ct.Valid() {
			continue
		}
		into[ct][nid] = added
	}
	return rows.Err()
}

func (s *Store) loadFeeds(ctx context.Context, snap *model.Snapshot) error {
	rows, err := s.pool.Query(ctx, `SELECT scope, data FROM feed_caches`)
	if err != nil {
		return fmt.Errorf("pgstore: load feeds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			scope string
			data  []byte
		)
		if err := rows.Scan(&scope, &data); err != nil {
			return fmt.Errorf("pgstore: scan feed: %w", err)
		}
		c := model.NewFeedCache()
		if err := unmarshalJSON(data, c); err != nil {
			return err
		}
		if scope == globalScope {
			snap.GlobalFeeds = c
		} else {
			snap.TableFeeds[scope] = c
		}
	}
	return rows.Err()
}

// noRows: запрос не вернул строк (в том числе обёрнутая pgx.ErrNoRows).
func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (s *Store) loadSetting(ctx context.Context, key string, into any) error {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM app_settings WHERE key = $1`, key).Scan(&data)
	if noRows(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("pgstore: load setting %s: %w", key, err)
	}
	return unmarshalJSON(data, into)
}

// Save пишет снимок целиком в одной транзакции.
func (s *Store) Save(ctx context.Context, snap model.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(snap.Tables))
	for _, t := range snap.Tables {
		ids = append(ids, t.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM tables WHERE NOT (id = ANY($1))`, ids); err != nil {
		return fmt.Errorf("pgstore: prune tables: %w", err)
	}
	for pos, t := range snap.Tables {
		if err := saveTable(ctx, tx, pos, t); err != nil {
			return err
		}
	}

	for nid, o := range snap.Overrides {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("pgstore: marshal override %s: %w", nid, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO global_overrides (normalized_id, data, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (normalized_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
			nid, string(data)); err != nil {
			return fmt.Errorf("pgstore: save override %s: %w", nid, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM item_categories`); err != nil {
		return fmt.Errorf("pgstore: clear categories: %w", err)
	}
	if rows := categoryRows(snap.Categories); len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"item_categories"},
			[]string{"category_type", "normalized_id", "added_at"}, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("pgstore: save categories: %w", err)
		}
	}

	scopes := []string{globalScope}
	if err := saveFeed(ctx, tx, globalScope, snap.GlobalFeeds); err != nil {
		return err
	}
	for id, c := range snap.TableFeeds {
		scopes = append(scopes, id)
		if err := saveFeed(ctx, tx, id, c); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM feed_caches WHERE NOT (scope = ANY($1))`, scopes); err != nil {
		return fmt.Errorf("pgstore: prune feeds: %w", err)
	}

	if err := saveSetting(ctx, tx, settingCRMCategories, snap.CRMCategories); err != nil {
		return err
	}
	if err := saveSetting(ctx, tx, settingGlobalFilters, snap.GlobalFilters); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgstore: commit: %w", err)
	}
	return nil
}

// DeleteTable удаляет таблицу (товары каскадом) и её кэш фидов.
func (s *Store) DeleteTable(ctx context.Context, tableID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM tables WHERE id = $1`, tableID); err != nil {
		return fmt.Errorf("pgstore: delete table: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM feed_caches WHERE scope = $1`, tableID); err != nil {
		return fmt.Errorf("pgstore: delete table feeds: %w", err)
	}
	return tx.Commit(ctx)
}

func saveTable(ctx context.Context, tx pgx.Tx, pos int, t model.Table) error {
	header, err := json.Marshal(t.Header)
	if err != nil {
		return fmt.Errorf("pgstore: marshal header: %w", err)
	}
	filters, err := json.Marshal(t.Filters)
	if err != nil {
		return fmt.Errorf("pgstore: marshal filters: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO tables (id, position, name, file_name, upload_time, header, filters)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET position = EXCLUDED.position, name = EXCLUDED.name,
			file_name = EXCLUDED.file_name, header = EXCLUDED.header, filters = EXCLUDED.filters`,
		t.ID, pos, t.Name, t.OriginalFileName, t.UploadTime, string(header), string(filters)); err != nil {
		return fmt.Errorf("pgstore: save table %s: %w", t.ID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM table_items WHERE table_id = $1`, t.ID); err != nil {
		return fmt.Errorf("pgstore: clear items %s: %w", t.ID, err)
	}
	rows, err := itemRows(t)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"table_items"},
		[]string{"table_id", "position", "item_id", "normalized_id", "data"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("pgstore: save items %s: %w", t.ID, err)
	}
	return nil
}

func saveFeed(ctx context.Context, tx pgx.Tx, scope string, c *model.FeedCache) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("pgstore: marshal feed %s: %w", scope, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO feed_caches (scope, data, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (scope) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		scope, string(data)); err != nil {
		return fmt.Errorf("pgstore: save feed %s: %w", scope, err)
	}
	return nil
}

func saveSetting(ctx context.Context, tx pgx.Tx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("pgstore: marshal setting %s: %w", key, err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO app_settings (key, data) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`, key, string(data)); err != nil {
		return fmt.Errorf("pgstore: save setting %s: %w", key, err)
	}
	return nil
}

func unmarshalJSON(data []byte, into any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("pgstore: decode json: %w", err)
	}
	return nil
}
