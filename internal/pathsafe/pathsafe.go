// Package pathsafe implements the id sanitisation and resolved-path
// verification spec §9 calls non-optional: an externally supplied memory
// id must never be interpreted as a path, and the file it resolves to must
// lie under the store root even after symlinks are followed.
package pathsafe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scrypster/mnemora/pkg/mnemerr"
)

// SanitizeID strips path separators and parent references from id and
// rejects it if the result is empty. It does not touch the filesystem.
func SanitizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	id = strings.ReplaceAll(id, "/", "")
	id = strings.ReplaceAll(id, "\\", "")
	id = strings.ReplaceAll(id, "..", "")
	id = strings.ReplaceAll(id, string(filepath.Separator), "")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty id after sanitisation", mnemerr.ErrInvalidID)
	}
	return id, nil
}

// ResolveUnder sanitises id, builds "<root>/<id><ext>", and verifies the
// resolved path (after symlink resolution) lies under root. It does not
// require the file to exist: callers on the write path use this to compute
// a safe destination before the file is created.
func ResolveUnder(root, id, ext string) (string, error) {
	clean, err := SanitizeID(id)
	if err != nil {
		return "", err
	}

	candidate := filepath.Join(root, clean+ext)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", mnemerr.ErrInvalidID, err)
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", mnemerr.ErrInvalidID, err)
	}

	resolvedRoot, err := resolveExistingPrefix(absRoot)
	if err != nil {
		return "", fmt.Errorf("%w: %v", mnemerr.ErrInvalidID, err)
	}
	resolvedCandidate, err := resolveExistingPrefix(absCandidate)
	if err != nil {
		return "", fmt.Errorf("%w: %v", mnemerr.ErrInvalidID, err)
	}

	rel, err := filepath.Rel(resolvedRoot, resolvedCandidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: resolved path escapes store root", mnemerr.ErrInvalidID)
	}

	return candidate, nil
}

// resolveExistingPrefix walks up from path until it finds a segment that
// exists, resolves symlinks on that segment, then re-appends the remaining
// (not-yet-created) suffix unchanged. This lets ResolveUnder validate a
// destination path before the file itself has been written.
func resolveExistingPrefix(path string) (string, error) {
	dir := path
	var suffix []string
	for {
		if _, err := os.Lstat(dir); err == nil {
			resolved, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return "", err
			}
			for i := len(suffix) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, suffix[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding an existing segment;
			// nothing to resolve symlinks against, return as-is.
			return path, nil
		}
		suffix = append(suffix, filepath.Base(dir))
		dir = parent
	}
}
