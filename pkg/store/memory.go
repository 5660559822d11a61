package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/user/sentinel-adk/pkg/engine"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	scans    map[string]*Scan
	findings map[string][]engine.Finding
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scans:    make(map[string]*Scan),
		findings: make(map[string][]engine.Finding),
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateScan(_ context.Context, target, mode string, consent bool) (*Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	s := &Scan{
		ID:        newScanID(),
		Target:    target,
		Status:    StatusPending,
		Mode:      mode,
		Consent:   consent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.scans[s.ID] = s
	return copyScan(s), nil
}

func (m *MemoryStore) GetScan(_ context.Context, id string) (*Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyScan(s), nil
}

func (m *MemoryStore) ListScans(_ context.Context) ([]Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Scan, 0, len(m.scans))
	for _, s := range m.scans {
		out = append(out, *copyScan(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[id]
	if !ok {
		return ErrNotFound
	}
	if err := checkTransition(s.Status, status); err != nil {
		return err
	}
	s.Status = status
	s.UpdatedAt = m.now().UTC()
	return nil
}

func (m *MemoryStore) AppendLogs(_ context.Context, id string, lines ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scans[id]
	if !ok {
		return ErrNotFound
	}
	now := m.now().UTC()
	for _, l := range lines {
		s.Logs = append(s.Logs, LogLine{Seq: len(s.Logs) + 1, Time: now, Text: l})
	}
	s.UpdatedAt = now
	return nil
}

func (m *MemoryStore) CreateFinding(_ context.Context, scanID string, f engine.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scans[scanID]; !ok {
		return ErrNotFound
	}
	m.findings[scanID] = append(m.findings[scanID], f)
	return nil
}

func (m *MemoryStore) ListFindings(_ context.Context, scanID string) ([]engine.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.scans[scanID]; !ok {
		return nil, ErrNotFound
	}
	return append([]engine.Finding(nil), m.findings[scanID]...), nil
}

func (m *MemoryStore) Close() error { return nil }

func copyScan(s *Scan) *Scan {
	c := *s
	c.Logs = append([]LogLine(nil), s.Logs...)
	return &c
}
