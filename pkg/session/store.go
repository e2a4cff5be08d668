// pkg/session/store.go
package session

import (
	"strconv"
	"time"
)

// Storage keys. The token set lives in durable storage under these names.
const (
	keyAccessToken  = "shopify_customer_token"
	keyRefreshToken = "shopify_refresh_token"
	keyTokenExpiry  = "shopify_token_expiry"
	keyLocale       = "selected_locale"
)

// Store owns the current customer token pair. A token is never considered
// valid past its recorded expiry; the refresh token is the sole means of
// renewal and carries no client-side expiry of its own.
type Store struct {
	storage Storage
	now     func() time.Time
}

type StoreOption func(*Store)

// WithClock injects the time source used for expiry decisions.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(storage Storage, opts ...StoreOption) *Store {
	s := &Store{storage: storage, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AccessToken returns the stored access token, "" when logged out.
func (s *Store) AccessToken() string {
	v, _ := s.storage.Get(keyAccessToken)
	return v
}

// RefreshToken returns the stored refresh token, "" when logged out.
func (s *Store) RefreshToken() string {
	v, _ := s.storage.Get(keyRefreshToken)
	return v
}

// SetTokens records a fresh pair. Expiry is stored absolute, in epoch
// milliseconds, computed from expiresIn seconds.
func (s *Store) SetTokens(accessToken, refreshToken string, expiresIn int) error {
	if err := s.storage.Set(keyAccessToken, accessToken); err != nil {
		return err
	}
	if err := s.storage.Set(keyRefreshToken, refreshToken); err != nil {
		return err
	}
	expiry := s.now().UnixMilli() + int64(expiresIn)*1000
	return s.storage.Set(keyTokenExpiry, strconv.FormatInt(expiry, 10))
}

// Clear drops the token set. Locale survives a logout.
func (s *Store) Clear() {
	_ = s.storage.Delete(keyAccessToken)
	_ = s.storage.Delete(keyRefreshToken)
	_ = s.storage.Delete(keyTokenExpiry)
}

// Expired reports whether the access token must not be used: no expiry was
// ever recorded, or now is past it.
func (s *Store) Expired() bool {
	v, ok := s.storage.Get(keyTokenExpiry)
	if !ok {
		return true
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return true
	}
	return s.now().UnixMilli() > ms
}

func (s *Store) Locale() string {
	v, _ := s.storage.Get(keyLocale)
	return v
}

func (s *Store) SetLocale(locale string) error {
	return s.storage.Set(keyLocale, locale)
}
