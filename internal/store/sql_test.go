package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianadrielbraun/qrlinks/internal/config"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCreateAndGetLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateLink(ctx, Link{
		ID:        "abc",
		Name:      "Docs",
		TargetURL: "https://example.com/docs",
		LogoMode:  LogoCustom,
		Logo:      Blob{Data: []byte{1, 2, 3}, Mime: "image/png"},
		CreatedAt: t0,
	})
	require.NoError(t, err)

	l, err := s.GetLink(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "Docs", l.Name)
	assert.Equal(t, "https://example.com/docs", l.TargetURL)
	assert.Equal(t, LogoCustom, l.LogoMode)
	assert.Equal(t, []byte{1, 2, 3}, l.Logo.Data)
	assert.Equal(t, "image/png", l.Logo.Mime)
	assert.True(t, l.CreatedAt.Equal(t0))
	assert.True(t, l.UpdatedAt.Equal(t0))
}

func TestGetLinkNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetLink(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatesAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateLink(ctx, Link{ID: "a", TargetURL: "https://a.example", CreatedAt: t0}))

	later := t0.Add(time.Hour)
	require.NoError(t, s.UpdateTargetURL(ctx, "a", "https://b.example", later))
	require.NoError(t, s.UpdateName(ctx, "a", "Renamed", later))

	l, err := s.GetLink(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "https://b.example", l.TargetURL)
	assert.Equal(t, "Renamed", l.Name)
	assert.Equal(t, LogoDefault, l.LogoMode)
	assert.True(t, l.UpdatedAt.Equal(later))

	require.NoError(t, s.UpdateName(ctx, "a", "", later))
	l, err = s.GetLink(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, l.Name)

	assert.ErrorIs(t, s.UpdateTargetURL(ctx, "nope", "https://x.example", later), ErrNotFound)
	assert.ErrorIs(t, s.UpdateName(ctx, "nope", "x", later), ErrNotFound)

	require.NoError(t, s.DeleteLink(ctx, "a"))
	assert.ErrorIs(t, s.DeleteLink(ctx, "a"), ErrNotFound)
}

func TestListLinksPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, s.CreateLink(ctx, Link{
			ID:        fmt.Sprintf("l%02d", i),
			TargetURL: "https://example.com",
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}

	p1, err := s.ListLinks(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, p1.TotalCount)
	assert.Equal(t, 2, p1.TotalPages)
	require.Len(t, p1.Links, 10)
	assert.Equal(t, "l11", p1.Links[0].ID)
	assert.Empty(t, p1.Links[0].Logo.Data)

	p2, err := s.ListLinks(ctx, 2, 10)
	require.NoError(t, err)
	require.Len(t, p2.Links, 2)
	assert.Equal(t, "l00", p2.Links[1].ID)
}

func TestListLinksEmpty(t *testing.T) {
	s := newTestStore(t)
	p, err := s.ListLinks(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.TotalPages)
	assert.Empty(t, p.Links)
}

func TestSettingBlobUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetSettingBlob(ctx, SiteLogoKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutSettingBlob(ctx, SiteLogoKey, Blob{Data: []byte("one"), Mime: "image/png"}))
	require.NoError(t, s.PutSettingBlob(ctx, SiteLogoKey, Blob{Data: []byte("two"), Mime: "image/webp"}))

	b, err := s.GetSettingBlob(ctx, SiteLogoKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), b.Data)
	assert.Equal(t, "image/webp", b.Mime)
}

func TestRebind(t *testing.T) {
	q := "UPDATE links SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, "UPDATE links SET a = $1, b = $2 WHERE id = $3", postgresDialect.rebind(q))
}

func TestParseLogoMode(t *testing.T) {
	for in, want := range map[string]LogoMode{"": LogoDefault, "default": LogoDefault, "Custom": LogoCustom, " none ": LogoNone} {
		got, err := ParseLogoMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseLogoMode("uploaded")
	assert.ErrorIs(t, err, ErrInvalidLogoMode)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mysql"})
	assert.Error(t, err)
}

func TestOpenSQLiteFile(t *testing.T) {
	path := t.TempDir() + "/nested/qr.db"
	s, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.CreateLink(context.Background(), Link{ID: "x", TargetURL: "https://x.example", CreatedAt: t0}))
}
