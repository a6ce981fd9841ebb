// Package idgen generates the filesystem-safe, time-ordered identifiers
// spec §4.A assigns to new memories: a UTC timestamp prefix for natural
// sort order plus a short random suffix to avoid collisions within the
// same second.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/scrypster/mnemora/internal/clock"
)

const suffixBytes = 4

// New returns a new memory id of the form "mem-20260101T153000-a1b2c3d4".
func New(c clock.Clock) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	ts := c.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("mem-%s-%s", ts, suffix), nil
}

func randomSuffix() (string, error) {
	b := make([]byte, suffixBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewAt is a convenience for callers that already have a timestamp, used by
// components that generate ids outside the Clock collaborator (e.g. replaying
// an import at a historical timestamp).
func NewAt(t time.Time) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("mem-%s-%s", t.UTC().Format("20060102T150405"), suffix), nil
}
