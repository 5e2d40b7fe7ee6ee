// Package filestore хранит состояние одним JSON-документом на диске:
// атомарная запись через временный файл, бэкап перед каждой записью,
// ручные категории лежат отдельными файлами.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pricing-service/internal/catalog/model"
)

const (
	dataFileName  = "app_data.json"
	backupPrefix  = "backup_"
	DefaultBackup = 10
)

// ErrNoBackups: нет ни одного читаемого бэкапа.
var ErrNoBackups = fmt.Errorf("no usable backups: %w", os.ErrNotExist)

type Store struct {
	dataFile      string
	backupDir     string
	categoriesDir string
	keep          int
	log           zerolog.Logger
	now           func() time.Time

	mu sync.Mutex
}

type Info struct {
	DataFile     string     `json:"dataFile"`
	DataSize     int64      `json:"dataSize"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Backups      int        `json:"backups"`
	LatestBackup string     `json:"latestBackup,omitempty"`
}

type categoryFile struct {
	CategoryType model.CategoryType `json:"categoryType"`
	Items        []categoryItem     `json:"items"`
	LastUpdated  time.Time          `json:"lastUpdated"`
	Count        int                `json:"count"`
}

type categoryItem struct {
	ID        string    `json:"id"`
	AddedDate time.Time `json:"addedDate"`
}

// New создаёт каталоги dir, dir/backups, dir/categories. keep: сколько бэкапов хранить.
func New(dir string, keep int, logger zerolog.Logger) (*Store, error) {
	if keep <= 0 {
		keep = DefaultBackup
	}
	s := &Store{
		dataFile:      filepath.Join(dir, dataFileName),
		backupDir:     filepath.Join(dir, "backups"),
		categoriesDir: filepath.Join(dir, "categories"),
		keep:          keep,
		log:           logger,
		now:           time.Now,
	}
	for _, d := range []string{dir, s.backupDir, s.categoriesDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("filestore: mkdir %s: %w", d, err)
		}
	}
	return s, nil
}

// Load читает основной файл; если его нет или он повреждён, то последний бэкап;
// если нет и бэкапов, начинает с пустого состояния.
func (s *Store) Load(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := readSnapshot(s.dataFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("file", s.dataFile).Msg("data file damaged, trying backup")
		}
		var name string
		snap, name, err = s.latestBackupLocked()
		switch {
		case err != nil:
			s.log.Info().Msg("no usable data or backups, starting empty")
			snap = model.EmptySnapshot()
		default:
			s.log.Info().Str("backup", name).Msg("state restored from backup")
			if werr := s.writeLocked(snap); werr != nil {
				return model.Snapshot{}, werr
			}
		}
	}
	snap.Sanitize()
	s.attachCategoriesLocked(&snap)
	return snap, nil
}

// attachCategoriesLocked подкладывает в снимок категории из отдельных файлов.
func (s *Store) attachCategoriesLocked(snap *model.Snapshot) {
	for _, t := range model.CategoryTypes {
		m, err := s.readCategory(t)
		if err != nil {
			s.log.Warn().Err(err).Str("category", string(t)).Msg("category file unreadable, using empty set")
			continue
		}
		if m != nil {
			snap.Categories[t] = m
		}
	}
}

// Save пишет снимок: бэкап → временный файл → проверка JSON → rename.
func (s *Store) Save(ctx context.Context, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.backupLocked(); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn().Err(err).Msg("backup before save failed")
	}
	cats := snap.Categories
	snap.Categories = nil
	if err := s.writeLocked(snap); err != nil {
		return err
	}
	for _, t := range model.CategoryTypes {
		if err := s.writeCategory(t, cats[t]); err != nil {
			return err
		}
	}
	return nil
}

// DeleteTable ничего не делает: таблица живёт в основном документе и исчезнет при следующем Save.
func (s *Store) DeleteTable(ctx context.Context, tableID string) error {
	return ctx.Err()
}

// Backup копирует текущий файл данных в backups/ и возвращает имя бэкапа.
func (s *Store) Backup() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupLocked()
}

// Restore возвращает последний бэкап и делает его основным файлом.
// Категории в бэкап не входят и берутся из текущих файлов.
func (s *Store) Restore(ctx context.Context) (model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, name, err := s.latestBackupLocked()
	if err != nil {
		return model.Snapshot{}, err
	}
	if err := s.writeLocked(snap); err != nil {
		return model.Snapshot{}, err
	}
	s.log.Info().Str("backup", name).Msg("restored from backup")
	snap.Sanitize()
	s.attachCategoriesLocked(&snap)
	return snap, nil
}

func (s *Store) Info() (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{DataFile: s.dataFile}
	if st, err := os.Stat(s.dataFile); err == nil {
		mt := st.ModTime()
		info.DataSize = st.Size()
		info.LastModified = &mt
	} else if !errors.Is(err, os.ErrNotExist) {
		return Info{}, err
	}
	backups, err := s.backupsLocked()
	if err != nil {
		return Info{}, err
	}
	info.Backups = len(backups)
	if len(backups) > 0 {
		info.LatestBackup = backups[0]
	}
	return info, nil
}

func (s *Store) writeLocked(snap model.Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal: %w", err)
	}
	return writeAtomic(s.dataFile, b)
}

// writeAtomic: временный файл, перечитать и проверить JSON, затем rename.
func writeAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("filestore: write tmp: %w", err)
	}
	back, err := os.ReadFile(tmp)
	if err != nil || !json.Valid(back) {
		_ = os.Remove(tmp)
		if err == nil {
			err = errors.New("written file is not valid JSON")
		}
		return fmt.Errorf("filestore: verify tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

func (s *Store) backupLocked() (string, error) {
	b, err := os.ReadFile(s.dataFile)
	if err != nil {
		return "", err
	}
	t := s.now().UTC()
	name := fmt.Sprintf("%s%s_%09d.json", backupPrefix, t.Format("2006-01-02T15-04-05"), t.Nanosecond())
	if err := os.WriteFile(filepath.Join(s.backupDir, name), b, 0o644); err != nil {
		return "", fmt.Errorf("filestore: backup: %w", err)
	}
	s.pruneLocked()
	return name, nil
}

// pruneLocked оставляет только s.keep самых новых бэкапов.
func (s *Store) pruneLocked() {
	backups, err := s.backupsLocked()
	if err != nil {
		return
	}
	for _, name := range backups[min(s.keep, len(backups)):] {
		if err := os.Remove(filepath.Join(s.backupDir, name)); err != nil {
			s.log.Warn().Err(err).Str("backup", name).Msg("remove old backup")
		}
	}
}

// backupsLocked: имена бэкапов, самые новые первыми.
func (s *Store) backupsLocked() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !e.IsDir() && strings.HasPrefix(n, backupPrefix) && strings.HasSuffix(n, ".json") {
			names = append(names, n)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (s *Store) latestBackupLocked() (model.Snapshot, string, error) {
	backups, err := s.backupsLocked()
	if err != nil {
		return model.Snapshot{}, "", err
	}
	for _, name := range backups {
		snap, err := readSnapshot(filepath.Join(s.backupDir, name))
		if err == nil {
			return snap, name, nil
		}
		s.log.Warn().Err(err).Str("backup", name).Msg("backup unreadable, skipping")
	}
	return model.Snapshot{}, "", ErrNoBackups
}

func readSnapshot(path string) (model.Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.Snapshot{}, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return snap, nil
}

func (s *Store) categoryPath(t model.CategoryType) string {
	return filepath.Join(s.categoriesDir, string(t)+".json")
}

// readCategory: nil без ошибки, если файла ещё нет.
func (s *Store) readCategory(t model.CategoryType) (model.Membership, error) {
	b, err := os.ReadFile(s.categoryPath(t))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cf categoryFile
	if err := json.Unmarshal(b, &cf); err != nil {
		return nil, err
	}
	m := make(model.Membership, len(cf.Items))
	for _, it := range cf.Items {
		m[it.ID] = it.AddedDate
	}
	return m, nil
}

func (s *Store) writeCategory(t model.CategoryType, m model.Membership) error {
	cf := categoryFile{CategoryType: t, LastUpdated: s.now(), Count: len(m), Items: make([]categoryItem, 0, len(m))}
	for id, d := range m {
		cf.Items = append(cf.Items, categoryItem{ID: id, AddedDate: d})
	}
	slices.SortFunc(cf.Items, func(a, b categoryItem) int { return strings.Compare(a.ID, b.ID) })
	b, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: marshal category %s: %w", t, err)
	}
	return writeAtomic(s.categoryPath(t), b)
}
