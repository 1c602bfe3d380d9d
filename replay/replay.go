// Package replay implements the offline debug cache that records real
// provider responses to disk and serves them back verbatim. In replay
// mode no network access happens at all, which makes fetches fully
// deterministic for tests and offline debugging.
package replay

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Mode selects how the cache treats outbound provider calls. Exactly one
// mode is active per process, chosen at startup.
type Mode string

const (
	// ModeLive passes calls straight through, no disk I/O.
	ModeLive Mode = "live"
	// ModeWrite executes the real call and persists the response.
	ModeWrite Mode = "write"
	// ModeReplay serves persisted responses and never touches the network.
	ModeReplay Mode = "replay"
)

// ParseMode validates a mode string from configuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLive, ModeWrite, ModeReplay:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown replay mode %q (want live, write or replay)", s)
}

// ErrMiss is returned in replay mode when no record exists for a
// fingerprint. There is no network fallback: a miss means the fixture
// set is incomplete and the request fails.
var ErrMiss = errors.New("replay record missing")

// Record is the on-disk format, one file per fingerprint. The source
// parameters are kept alongside the response bytes so records can be
// inspected by hand.
type Record struct {
	Provider   string            `json:"provider"`
	Params     map[string]string `json:"params"`
	CapturedAt time.Time         `json:"captured_at"`
	Response   []byte            `json:"response"`
}

// Cache intercepts outbound provider calls according to its mode. The
// record set on disk is append-only in write mode and read-only in
// replay mode, so concurrent requests need no locking.
type Cache struct {
	mode Mode
	root string
}

// New creates a cache for the given mode. In write mode the root
// directory is created up front; a pre-existing directory is fine, any
// other failure is a startup error.
func New(mode Mode, root string) (*Cache, error) {
	if mode != ModeLive && root == "" {
		return nil, fmt.Errorf("replay cache root is required in %s mode", mode)
	}
	if mode == ModeWrite {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create replay cache root %s: %w", root, err)
		}
	}
	return &Cache{mode: mode, root: root}, nil
}

// Mode reports the active mode.
func (c *Cache) Mode() Mode {
	return c.mode
}

// Fingerprint derives the deterministic cache key for a logical request.
// Parameters are hashed in sorted key order, so the same request always
// produces the same fingerprint no matter how the map was built, and any
// differing parameter produces a different one.
func Fingerprint(provider string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(provider)
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Do routes one provider call through the cache. call performs the real
// network request and is only invoked in live and write modes.
func (c *Cache) Do(provider string, params map[string]string, call func() ([]byte, error)) ([]byte, error) {
	switch c.mode {
	case ModeLive:
		return call()
	case ModeWrite:
		response, err := call()
		if err != nil {
			return nil, err
		}
		if err := c.write(provider, params, response); err != nil {
			return nil, err
		}
		return response, nil
	case ModeReplay:
		return c.read(provider, params)
	}
	return nil, fmt.Errorf("replay cache has invalid mode %q", c.mode)
}

func (c *Cache) write(provider string, params map[string]string, response []byte) error {
	fingerprint := Fingerprint(provider, params)

	record := Record{
		Provider:   provider,
		Params:     params,
		CapturedAt: time.Now().UTC(),
		Response:   response,
	}

	data, err := json.MarshalIndent(&record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode replay record: %w", err)
	}

	path := c.path(fingerprint)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write replay record %s: %w", fingerprint, err)
	}

	recordsWritten.Inc()
	log.WithFields(log.Fields{
		"provider":    provider,
		"fingerprint": fingerprint,
		"bytes":       len(response),
	}).Info("Recorded provider response")

	return nil
}

func (c *Cache) read(provider string, params map[string]string) ([]byte, error) {
	fingerprint := Fingerprint(provider, params)

	data, err := os.ReadFile(c.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			replayMisses.Inc()
			return nil, fmt.Errorf("%w: %s (provider %s)", ErrMiss, fingerprint, provider)
		}
		return nil, fmt.Errorf("failed to read replay record %s: %w", fingerprint, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode replay record %s: %w", fingerprint, err)
	}

	replayHits.Inc()
	return record.Response, nil
}

func (c *Cache) path(fingerprint string) string {
	return filepath.Join(c.root, fingerprint+".json")
}
