package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"aclo/internal/acloerr"
	"aclo/internal/workspace"

	"github.com/gofrs/flock"
)

// ErrLeaseHeld is returned when acquisition collides with a live holder.
var ErrLeaseHeld = acloerr.ErrLeaseHeld

// LeaseInfo is the on-disk lease payload.
type LeaseInfo struct {
	Token      string    `json:"token"`
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
	TouchedAt  time.Time `json:"touched_at"`
}

// Lease is an acquired, refreshable lock scoped to one queue file. Callers
// acquire at controller start, refresh every cycle, and release via a
// scoped acquisition-with-guaranteed-release construct. The lease's
// exclusivity lives in the on-disk token/touched_at record; the OS-level
// flock only guards the brief read-check-write critical section of each
// operation against other processes racing the same step — it's an advisory,
// single-host file lock, not a distributed lock.
type Lease struct {
	path  string
	token string
	ttl   time.Duration
	ws    *workspace.Workspace
}

// Acquire attempts to take the lease file `<queuePath>.lock`. On collision,
// if the existing holder's touched_at is older than ttl, the lease is stolen
// and recreated; otherwise ErrLeaseHeld wraps the holder's identity.
func Acquire(ws *workspace.Workspace, queuePath string, ttl time.Duration) (*Lease, error) {
	lockPath := queuePath + ".lock"

	var token string
	err := withFlock(lockPath, func() error {
		existing, readErr := readLeaseInfo(lockPath)
		now := ws.Now()
		if readErr == nil {
			if now.Sub(existing.TouchedAt) <= ttl {
				return fmt.Errorf("%w: held by token=%s pid=%d host=%s", ErrLeaseHeld, existing.Token, existing.PID, existing.Host)
			}
		}

		token = ws.IDs.NewToken()
		info := LeaseInfo{
			Token:      token,
			PID:        os.Getpid(),
			Host:       hostname(),
			AcquiredAt: now,
			TouchedAt:  now,
		}
		return writeLeaseInfo(lockPath, info)
	})
	if err != nil {
		return nil, err
	}

	return &Lease{path: lockPath, token: token, ttl: ttl, ws: ws}, nil
}

// Refresh rewrites touched_at, failing with ErrLeaseLost if the on-disk
// token no longer matches (another process stole the lease).
func (l *Lease) Refresh() error {
	return withFlock(l.path, func() error {
		existing, err := readLeaseInfo(l.path)
		if err != nil {
			return fmt.Errorf("queue: refresh read %s: %w", l.path, err)
		}
		if existing.Token != l.token {
			return acloerr.ErrLeaseLost
		}
		existing.TouchedAt = l.ws.Now()
		return writeLeaseInfo(l.path, existing)
	})
}

// Release removes the lease file only if the token still matches.
func (l *Lease) Release() error {
	return withFlock(l.path, func() error {
		existing, err := readLeaseInfo(l.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("queue: release read %s: %w", l.path, err)
		}
		if existing.Token != l.token {
			return nil
		}
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("queue: release remove %s: %w", l.path, err)
		}
		return nil
	})
}

// withFlock runs fn while holding an OS-level advisory lock on
// `<path>.flock`, guaranteeing the lock is released even if fn panics.
func withFlock(path string, fn func() error) error {
	osLock := flock.New(path + ".flock")
	if err := osLock.Lock(); err != nil {
		return fmt.Errorf("queue: flock %s: %w", path, err)
	}
	defer osLock.Unlock()
	return fn()
}

func readLeaseInfo(path string) (LeaseInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LeaseInfo{}, err
	}
	var info LeaseInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return LeaseInfo{}, fmt.Errorf("queue: decode lease %s: %w", path, err)
	}
	return info, nil
}

func writeLeaseInfo(path string, info LeaseInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("queue: encode lease: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("queue: write lease %s: %w", path, err)
	}
	return nil
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown-host"
	}
	return h
}
