package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound signals that no row matched the given id or key.
	ErrNotFound = errors.New("not found")
	// ErrInvalidLogoMode signals a logo mode outside the defined set.
	ErrInvalidLogoMode = errors.New("invalid logo mode")
)

// LogoMode selects which logo, if any, a link's QR code carries.
type LogoMode string

const (
	// LogoDefault uses the site logo on the colored QR.
	LogoDefault LogoMode = "default"
	// LogoCustom uses the link's own logo on the plain QR.
	LogoCustom LogoMode = "custom"
	// LogoNone renders a plain QR without logo.
	LogoNone LogoMode = "none"
)

// ParseLogoMode maps form input to a LogoMode. Empty input means default.
func ParseLogoMode(s string) (LogoMode, error) {
	switch LogoMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", LogoDefault:
		return LogoDefault, nil
	case LogoCustom:
		return LogoCustom, nil
	case LogoNone:
		return LogoNone, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLogoMode, s)
	}
}

// Link is a short link and the settings for its QR code.
type Link struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	TargetURL string    `json:"target_url"`
	LogoMode  LogoMode  `json:"logo_mode"`
	Logo      Blob      `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Blob is binary data with its MIME type.
type Blob struct {
	Data []byte
	Mime string
}

// Empty reports whether the blob carries no data.
func (b Blob) Empty() bool { return len(b.Data) == 0 }

// Page is one page of links, newest update first.
type Page struct {
	Links      []Link `json:"links"`
	Page       int    `json:"page"`
	PerPage    int    `json:"per_page"`
	TotalCount int    `json:"total_count"`
	TotalPages int    `json:"total_pages"`
}

// Store persists links and settings.
type Store interface {
	ListLinks(ctx context.Context, page, perPage int) (Page, error)
	CreateLink(ctx context.Context, l Link) error
	GetLink(ctx context.Context, id string) (Link, error)
	UpdateTargetURL(ctx context.Context, id, targetURL string, now time.Time) error
	UpdateName(ctx context.Context, id, name string, now time.Time) error
	DeleteLink(ctx context.Context, id string) error
	GetSettingBlob(ctx context.Context, key string) (Blob, error)
	PutSettingBlob(ctx context.Context, key string, b Blob) error
	Close() error
}

// SiteLogoKey is the settings key of the site-wide logo.
const SiteLogoKey = "logo"

// timeLayout keeps stored timestamps fixed-width so text ordering matches
// time ordering.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
