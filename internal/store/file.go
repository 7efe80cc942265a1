package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/yourorg/campaign-agency/internal/campaign"
)

// FileStore keeps one directory per campaign under <dataDir>/campaigns/:
//
//	campaigns/<id>/campaign.json   full session record
//	campaigns/<id>/events.ndjson   transition log
//	campaigns/<id>/commit.lock     single-writer token
//
// Commits write a temp file and rename it over campaign.json, syncing the
// file and directory, so a crash mid-commit leaves the previous record
// intact.
type FileStore struct {
	dataDir string

	// lockTTL bounds how long a crashed writer's lock file blocks commits.
	lockTTL time.Duration

	mu    sync.Mutex
	locks map[string]bool // in-process writers per campaign
}

func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		return nil, errors.New("dataDir is empty")
	}
	s := &FileStore{
		dataDir: dataDir,
		lockTTL: 30 * time.Second,
		locks:   map[string]bool{},
	}
	if err := os.MkdirAll(s.campaignsDir(), 0o755); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) campaignsDir() string {
	return filepath.Join(s.dataDir, "campaigns")
}

func (s *FileStore) campaignDir(id string) string {
	return filepath.Join(s.campaignsDir(), id)
}

func (s *FileStore) recordPath(id string) string {
	return filepath.Join(s.campaignDir(id), "campaign.json")
}

func (s *FileStore) eventsPath(id string) string {
	return filepath.Join(s.campaignDir(id), "events.ndjson")
}

func (s *FileStore) lockPath(id string) string {
	return filepath.Join(s.campaignDir(id), "commit.lock")
}

func (s *FileStore) Load(ctx context.Context, campaignID string) (campaign.Session, error) {
	if err := ctx.Err(); err != nil {
		return campaign.Session{}, err
	}
	b, err := os.ReadFile(s.recordPath(campaignID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return campaign.Session{}, fmt.Errorf("%w: %s", ErrNotFound, campaignID)
		}
		return campaign.Session{}, err
	}
	var sess campaign.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return campaign.Session{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, campaignID, err)
	}
	if err := sess.Validate(); err != nil {
		return campaign.Session{}, fmt.Errorf("%w: %s: %v", ErrCorruptState, campaignID, err)
	}
	if sess.CampaignID != campaignID {
		return campaign.Session{}, fmt.Errorf("%w: record for %s found under %s", ErrCorruptState, sess.CampaignID, campaignID)
	}
	return sess, nil
}

func (s *FileStore) Commit(ctx context.Context, sess campaign.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("refusing to commit invalid session %s: %w", sess.CampaignID, err)
	}

	unlock, err := s.acquire(sess.CampaignID)
	if err != nil {
		return err
	}
	defer unlock()

	sess.UpdatedAt = time.Now().UTC()
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.recordPath(sess.CampaignID), append(b, '\n'), 0o644)
}

// acquire takes the per-campaign single-writer token: an in-process flag plus
// an O_EXCL lock file for cross-process exclusion. A lock file older than the
// TTL is treated as abandoned by a crashed writer and replaced.
func (s *FileStore) acquire(id string) (func(), error) {
	s.mu.Lock()
	if s.locks[id] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConcurrentAccess, id)
	}
	s.locks[id] = true
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		delete(s.locks, id)
		s.mu.Unlock()
	}

	if err := os.MkdirAll(s.campaignDir(id), 0o755); err != nil {
		release()
		return nil, err
	}

	lockPath := s.lockPath(id)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if !errors.Is(err, os.ErrExist) {
			release()
			return nil, err
		}
		info, statErr := os.Stat(lockPath)
		if statErr != nil || time.Since(info.ModTime()) < s.lockTTL {
			release()
			return nil, fmt.Errorf("%w: %s", ErrConcurrentAccess, id)
		}
		// Stale lock from a crashed writer.
		_ = os.Remove(lockPath)
		f, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			release()
			return nil, fmt.Errorf("%w: %s", ErrConcurrentAccess, id)
		}
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	_ = f.Close()

	return func() {
		_ = os.Remove(lockPath)
		release()
	}, nil
}

func (s *FileStore) List(ctx context.Context) ([]campaign.Session, error) {
	entries, err := os.ReadDir(s.campaignsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []campaign.Session
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() {
			continue
		}
		sess, err := s.Load(ctx, e.Name())
		if err != nil {
			// Corrupt or foreign entries are skipped here; Load surfaces
			// them when the campaign is addressed directly.
			continue
		}
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, campaignID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.recordPath(campaignID)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, campaignID)
		}
		return err
	}
	return os.RemoveAll(s.campaignDir(campaignID))
}

func (s *FileStore) AppendEvent(campaignID string, ev Event) error {
	ev.TS = ev.TS.UTC()
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	if ev.CampaignID == "" {
		ev.CampaignID = campaignID
	}
	if err := os.MkdirAll(s.campaignDir(campaignID), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.eventsPath(campaignID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

// ReadEvents reads up to max events from the NDJSON log (0 => all).
func (s *FileStore) ReadEvents(campaignID string, max int) ([]Event, error) {
	f, err := os.Open(s.eventsPath(campaignID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			continue
		}
		out = append(out, ev)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, sc.Err()
}

func (s *FileStore) Close() error { return nil }

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
