package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pricing-service/internal/catalog/model"
)

type SaveStatus string

const (
	SaveIdle   SaveStatus = "idle"
	SaveSaving SaveStatus = "saving"
	SaveSaved  SaveStatus = "saved"
	SaveError  SaveStatus = "error"
)

type SaveState struct {
	Status    SaveStatus `json:"status"`
	LastSaved *time.Time `json:"lastSaved,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Saver пишет снимок в хранилище с задержкой (пачка быстрых правок → одна запись)
// и строго по одной записи за раз. Ошибка записи не откатывает состояние в памяти.
type Saver struct {
	store    Store
	snapshot func() model.Snapshot
	delay    time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	pending bool
	state   SaveState

	saveMu sync.Mutex // одна запись в хранилище одновременно
}

func NewSaver(store Store, snapshot func() model.Snapshot, delay time.Duration, logger zerolog.Logger) *Saver {
	return &Saver{
		store:    store,
		snapshot: snapshot,
		delay:    delay,
		timeout:  time.Minute,
		log:      logger,
		state:    SaveState{Status: SaveIdle},
	}
}

// Trigger откладывает запись; повторные вызовы в пределах задержки сливаются.
func (s *Saver) Trigger() {
	if s == nil || s.store == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

func (s *Saver) fire() {
	s.mu.Lock()
	if s.running {
		// текущая запись закончится и запустит ещё одну
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		_ = s.save(ctx)
		cancel()

		s.mu.Lock()
		if !s.pending {
			s.running = false
			s.mu.Unlock()
			return
		}
		s.pending = false
		s.mu.Unlock()
	}
}

// Flush отменяет отложенную запись и сохраняет немедленно (на остановке сервиса).
func (s *Saver) Flush(ctx context.Context) error {
	if s == nil || s.store == nil {
		return nil
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.save(ctx)
}

func (s *Saver) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.setStatus(SaveSaving, nil)
	start := time.Now()
	snap := s.snapshot()
	err := s.store.Save(ctx, snap)
	s.setStatus(SaveSaved, err)
	if err != nil {
		s.log.Error().Err(err).Msg("save failed")
		return err
	}
	s.log.Debug().Int("tables", len(snap.Tables)).Dur("dur", time.Since(start)).Msg("saved")
	return nil
}

func (s *Saver) setStatus(st SaveStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state.Status = SaveError
		s.state.LastError = err.Error()
		return
	}
	s.state.Status = st
	if st == SaveSaved {
		now := time.Now()
		s.state.LastSaved = &now
		s.state.LastError = ""
	}
}

func (s *Saver) State() SaveState {
	if s == nil {
		return SaveState{Status: SaveIdle}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
