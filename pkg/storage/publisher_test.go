package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharePublisherPublish(t *testing.T) {
	shareDir := t.TempDir()
	publisher, err := NewSharePublisher(shareDir, "https://share.example.com/approved/")
	require.NoError(t, err)

	source := filepath.Join(t.TempDir(), "stored.pdf")
	require.NoError(t, os.WriteFile(source, []byte("annual report"), 0o644))

	url, err := publisher.Publish(context.Background(), source, "f1", "Annual Report 2026.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://share.example.com/approved/f1_Annual_Report_2026.pdf", url)

	copied, err := os.ReadFile(filepath.Join(shareDir, "f1_Annual_Report_2026.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "annual report", string(copied))
}

func TestSharePublisherMissingSource(t *testing.T) {
	publisher, err := NewSharePublisher(t.TempDir(), "https://share.example.com")
	require.NoError(t, err)

	_, err = publisher.Publish(context.Background(), "/nowhere/missing.pdf", "f1", "missing.pdf")
	require.Error(t, err)
}

func TestSharePublisherRequiresShareDir(t *testing.T) {
	_, err := NewSharePublisher("", "https://share.example.com")
	require.Error(t, err)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"budget (final) v2.xlsx", "budget__final__v2.xlsx"},
		{"", "file"},
		{"///", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), tt.in)
	}
}

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	path, err := store.SaveStream("2026/08/f1.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, store.Path("2026/08/f1.pdf"), path)

	file, err := store.Open(path)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	buf := make([]byte, 5)
	_, err = file.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	require.NoError(t, store.Remove(context.Background(), path))
	_, err = store.Open(path)
	require.Error(t, err)
}

func TestLocalStorageRemoveMissingIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Remove(context.Background(), "never-written.pdf"))
}
