package upload

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"loans.xlsx", "loans.xlsx"},
		{"My Loans 2024.xlsx", "My_Loans_2024.xlsx"},
		{"../../etc/passwd", "etc_passwd"},
		{`C:\Users\admin\book.csv`, "C_Users_admin_book.csv"},
		{"Résumé.xlsx", "Resume.xlsx"},
		{"...hidden.csv", "hidden.csv"},
		{"報告.xlsx", "xlsx"},
		{"   ", ""},
		{"a$b%c.xlsx", "abc.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in))
		})
	}
}

func fixedNow(t *testing.T) {
	t.Helper()
	orig := now
	now = func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) }
	t.Cleanup(func() { now = orig })
}

func TestSave(t *testing.T) {
	fixedNow(t)
	dir := filepath.Join(t.TempDir(), "uploads")

	path, err := Save(dir, "Q1 Loans.xlsx", strings.NewReader("data"), 0)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Q1_Loans_20240305140709.xlsx"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(b))
}

func TestSave_SameNameSameSecond(t *testing.T) {
	fixedNow(t)
	dir := t.TempDir()

	var paths []string
	for _, body := range []string{"first", "second", "third"} {
		path, err := Save(dir, "loans.xlsx", strings.NewReader(body), 0)
		require.NoError(t, err)
		paths = append(paths, path)
	}
	assert.Equal(t, []string{
		filepath.Join(dir, "loans_20240305140709.xlsx"),
		filepath.Join(dir, "loans_20240305140709_1.xlsx"),
		filepath.Join(dir, "loans_20240305140709_2.xlsx"),
	}, paths)

	b, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "first", string(b))
	b, err = os.ReadFile(paths[2])
	require.NoError(t, err)
	assert.Equal(t, "third", string(b))
}

func TestSave_Errors(t *testing.T) {
	fixedNow(t)
	dir := t.TempDir()

	tests := []struct {
		name     string
		filename string
		body     string
		max      int64
		want     error
	}{
		{"empty name", "///", "x", 10, ErrEmptyName},
		{"legacy xls", "book.xls", "x", 10, ErrUnsupported},
		{"no extension", "book", "x", 10, ErrUnsupported},
		{"too large", "big.csv", "0123456789A", 10, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Save(dir, tt.filename, strings.NewReader(tt.body), tt.max)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave nothing behind")
}

func TestSave_ExactLimit(t *testing.T) {
	fixedNow(t)
	_, err := Save(t.TempDir(), "ok.csv", strings.NewReader("0123456789"), 10)
	require.NoError(t, err)
}
