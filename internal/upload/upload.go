// Package upload stores spreadsheets received from clients under a safe,
// unique file name.
package upload

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/microfinance-cli/internal/sheet"
)

// DefaultMaxBytes is the upload limit when none is configured.
const DefaultMaxBytes int64 = 16 << 20

var (
	ErrEmptyName   = eris.New("upload: empty file name")
	ErrUnsupported = eris.New("upload: unsupported file type")
	ErrTooLarge    = eris.New("upload: file too large")
)

// now is replaced in tests.
var now = time.Now

// SecureFilename reduces name to ASCII letters, digits, '_', '.' and '-'.
// Directory components are discarded and leading or trailing dots and
// underscores are trimmed. The result may be empty.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r > unicode.MaxASCII:
		case r == '/' || r == '\\':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	joined := strings.Join(strings.Fields(b.String()), "_")
	var out strings.Builder
	for _, r := range joined {
		if r == '_' || r == '.' || r == '-' ||
			('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			out.WriteRune(r)
		}
	}
	return strings.Trim(out.String(), "._")
}

// Save writes r into dir as a sanitized, timestamped copy of filename and
// returns the stored path. Reading stops after maxBytes; larger uploads are
// removed and rejected with ErrTooLarge.
func Save(dir, filename string, r io.Reader, maxBytes int64) (string, error) {
	safe := SecureFilename(filename)
	if safe == "" {
		return "", ErrEmptyName
	}
	if !sheet.Supported(safe) {
		return "", eris.Wrapf(ErrUnsupported, "%q", filename)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	ext := filepath.Ext(safe)
	stem := strings.TrimSuffix(safe, ext) + "_" + now().UTC().Format("20060102150405")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "upload: create dir %s", dir)
	}
	f, path, err := createUnique(dir, stem, ext)
	if err != nil {
		return "", err
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, maxBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		os.Remove(path) //nolint:errcheck
		return "", eris.Wrap(copyErr, "upload: write")
	case n > maxBytes:
		os.Remove(path) //nolint:errcheck
		return "", eris.Wrapf(ErrTooLarge, "limit %d bytes", maxBytes)
	case closeErr != nil:
		os.Remove(path) //nolint:errcheck
		return "", eris.Wrap(closeErr, "upload: close")
	}
	return path, nil
}

// maxNameCollisions bounds the "_N" suffixes tried for one stored name.
const maxNameCollisions = 1000

// createUnique exclusively creates dir/stem+ext, or dir/stem_N+ext for the
// first N that is free, so uploads of the same name within one second never
// overwrite or reject each other.
func createUnique(dir, stem, ext string) (*os.File, string, error) {
	for i := 0; i < maxNameCollisions; i++ {
		name := stem + ext
		if i > 0 {
			name = stem + "_" + strconv.Itoa(i) + ext
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		switch {
		case err == nil:
			return f, path, nil
		case !errors.Is(err, os.ErrExist):
			return nil, "", eris.Wrapf(err, "upload: create %s", path)
		}
	}
	return nil, "", eris.Errorf("upload: no free name for %s%s after %d attempts", stem, ext, maxNameCollisions)
}
