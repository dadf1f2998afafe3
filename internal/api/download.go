package api

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	errx "github.com/teamfit/server/internal/core/error"
)

// ResolveDownloadPath maps a source token onto a regular file beneath root.
// The token is URL-decoded, separator-normalised and stripped of leading
// "./". Anything resolving outside root, lexically or through a symlink,
// fails with errx.ErrPathEscape; a missing file fails with errx.ErrNotFound.
func ResolveDownloadPath(root, token string) (string, error) {
	decoded, err := url.PathUnescape(token)
	if err != nil {
		return "", errx.New(fmt.Errorf("%w: %w", errx.ErrEmptyInput, err), http.StatusBadRequest, "invalid source token")
	}
	decoded = strings.ReplaceAll(decoded, "\\", "/")
	for strings.HasPrefix(decoded, "./") {
		decoded = decoded[2:]
	}
	if strings.TrimSpace(decoded) == "" {
		return "", errx.New(errx.ErrEmptyInput, http.StatusBadRequest, "source is required")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve download root: %w", err)
	}

	candidate := filepath.FromSlash(decoded)
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(rootAbs, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !within(rootAbs, candidate) {
		return "", errx.ErrPathEscape
	}

	info, err := os.Stat(candidate)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", errx.ErrNotFound
		}
		return "", fmt.Errorf("stat %s: %w", candidate, err)
	}
	if !info.Mode().IsRegular() {
		return "", errx.ErrNotFound
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", candidate, err)
	}
	rootReal, err := filepath.EvalSymlinks(rootAbs)
	if err != nil {
		rootReal = rootAbs
	}
	if !within(rootReal, resolved) {
		return "", errx.ErrPathEscape
	}
	return resolved, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
