// Package store persists campaign sessions. Two adapters implement the same
// contract: a JSON-file store (one directory per campaign, atomic
// rename-over commits) and a SQLite store. Both guarantee that a reader only
// ever observes fully committed session records.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
)

var (
	ErrNotFound = errors.New("campaign not found")

	// ErrConcurrentAccess reports lock contention on commit for the same
	// campaign. Callers retry with backoff; it never means data loss.
	ErrConcurrentAccess = errors.New("campaign is locked by another writer")

	// ErrCorruptState reports a durable record that fails schema or
	// invariant validation on load. Fatal for that campaign only.
	ErrCorruptState = errors.New("corrupt campaign state")
)

// Store is the persistence adapter contract.
//
// Commit is atomic with respect to process crash: after a crash, Load returns
// either the previous committed session or the new one, never a partial
// state. Commits for the same campaign are mutually exclusive.
type Store interface {
	Load(ctx context.Context, campaignID string) (campaign.Session, error)
	Commit(ctx context.Context, sess campaign.Session) error
	List(ctx context.Context) ([]campaign.Session, error)
	Delete(ctx context.Context, campaignID string) error

	// AppendEvent records a transition on the campaign's event log.
	// Best-effort observability; failures never affect committed state.
	AppendEvent(campaignID string, ev Event) error
	ReadEvents(campaignID string, max int) ([]Event, error)

	Close() error
}

// Event is one entry of a campaign's append-only transition log.
type Event struct {
	TS         time.Time      `json:"ts"`
	CampaignID string         `json:"campaign_id"`
	Type       string         `json:"type"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}
