// Package store persists scans, their log lines and their findings.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/user/sentinel-adk/pkg/engine"
)

var (
	ErrNotFound          = errors.New("scan not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition allows PENDING→RUNNING, PENDING→FAILED and RUNNING→terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusFailed
	case StatusRunning:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// LogLine is one entry of a scan's append-only log.
type LogLine struct {
	Seq  int       `json:"seq"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

type Scan struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Status    Status    `json:"status"`
	Mode      string    `json:"mode"`
	Consent   bool      `json:"consent"`
	Logs      []LogLine `json:"logs,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindingRecord is a finding persisted against a scan.
type FindingRecord struct {
	ID      int64          `json:"id"`
	ScanID  string         `json:"scan_id"`
	Finding engine.Finding `json:"finding"`
}

// Store is the read/write contract the pipeline needs. Implementations must
// enforce CanTransition in SetStatus.
type Store interface {
	CreateScan(ctx context.Context, target, mode string, consent bool) (*Scan, error)
	GetScan(ctx context.Context, id string) (*Scan, error)
	ListScans(ctx context.Context) ([]Scan, error)
	SetStatus(ctx context.Context, id string, status Status) error
	AppendLogs(ctx context.Context, id string, lines ...string) error
	CreateFinding(ctx context.Context, scanID string, f engine.Finding) error
	ListFindings(ctx context.Context, scanID string) ([]engine.Finding, error)
	Close() error
}

func newScanID() string {
	return uuid.New().String()
}
