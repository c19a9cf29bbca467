package shared

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FlashMessage is a toast shown once on the next rendered page.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager keeps dashboard sessions in Redis. The cookie carries the
// session id and an HMAC of it, so ids that were not issued here are ignored.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session is the per-request view of one dashboard session.
type Session struct {
	ID string

	data      sessionData
	retired   string
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionData struct {
	Values    map[string]string `json:"values,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Role      string            `json:"role,omitempty"`
	PartnerID int64             `json:"partner_id,omitempty"`
	Flashes   []FlashMessage    `json:"flashes,omitempty"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load returns the session named by the request cookie. A missing, forged or
// expired cookie yields a fresh session with a new id.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return freshSession(), nil
	}
	if err != nil {
		return nil, err
	}
	id, ok := sm.verify(cookie.Value)
	if !ok {
		return freshSession(), nil
	}

	raw, err := sm.client.Get(ctx, sm.redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return freshSession(), nil
	}
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: id}
	if err := json.Unmarshal(raw, &sess.data); err != nil {
		return nil, err
	}
	return sess, nil
}

// Commit persists the session and writes the cookie. A destroyed session is
// removed from Redis and its cookie expired.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.retired != "" {
		if err := sm.client.Del(ctx, sm.redisKey(sess.retired)).Err(); err != nil {
			return err
		}
		sess.retired = ""
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.redisKey(sess.ID)).Err(); err != nil {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1, time.Time{}))
		return nil
	}

	if sess.dirty || sess.isNew {
		data, err := json.Marshal(sess.data)
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sm.redisKey(sess.ID), data, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
		sess.isNew = false
	}

	http.SetCookie(w, sm.cookie(sm.sign(sess.ID), 0, time.Now().Add(sm.ttl)))
	return nil
}

// Destroy marks the session for deletion at commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

func (sm *SessionManager) cookie(value string, maxAge int, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expires,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
}

func (sm *SessionManager) sign(id string) string {
	return id + "." + sm.mac(id)
}

func (sm *SessionManager) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(sm.mac(id))) {
		return "", false
	}
	return id, true
}

func (sm *SessionManager) mac(id string) string {
	h := hmac.New(sha256.New, sm.secret)
	h.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (sm *SessionManager) redisKey(id string) string {
	return "referral:session:" + id
}

type sessionKey struct{}

// ContextWithSession attaches the request's session.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the session attached by the session
// middleware, or nil outside it.
func SessionFromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionKey{}).(*Session); ok {
		return sess
	}
	return nil
}

func freshSession() *Session {
	return &Session{ID: uuid.NewString(), isNew: true, dirty: true}
}

// Renew moves the session to a new id. The old id is dropped from Redis at
// commit, so an id planted before login is useless afterwards.
func (s *Session) Renew() {
	if s.retired == "" && !s.isNew {
		s.retired = s.ID
	}
	s.ID = uuid.NewString()
	s.dirty = true
}

// Set stores a key-value pair.
func (s *Session) Set(key, value string) {
	if s.data.Values == nil {
		s.data.Values = make(map[string]string)
	}
	s.data.Values[key] = value
	s.dirty = true
}

// Get retrieves a value.
func (s *Session) Get(key string) string {
	return s.data.Values[key]
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	if _, ok := s.data.Values[key]; !ok {
		return
	}
	delete(s.data.Values, key)
	s.dirty = true
}

// SetUser associates the session with a backend identity and its role.
func (s *Session) SetUser(id, role string) {
	s.data.UserID = id
	s.data.Role = role
	s.dirty = true
}

// User returns the current user ID.
func (s *Session) User() string {
	return s.data.UserID
}

// Role returns the dashboard role bound at login.
func (s *Session) Role() string {
	return s.data.Role
}

// SetPartner binds the signed-in partner record.
func (s *Session) SetPartner(id int64) {
	s.data.PartnerID = id
	s.dirty = true
}

// PartnerID returns the bound partner record, or 0 when there is none.
func (s *Session) PartnerID() int64 {
	return s.data.PartnerID
}

// Reset drops the identity and every stored value while keeping the cookie,
// so a flash can still reach the next page.
func (s *Session) Reset() {
	s.data.Values = nil
	s.data.UserID = ""
	s.data.Role = ""
	s.data.PartnerID = 0
	s.dirty = true
}

// Destroyed reports whether the session was marked for deletion.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(msg FlashMessage) {
	s.data.Flashes = append(s.data.Flashes, msg)
	s.dirty = true
}

// PopFlash removes and returns the oldest flash message.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.data.Flashes) == 0 {
		return nil
	}
	msg := s.data.Flashes[0]
	s.data.Flashes = s.data.Flashes[1:]
	s.dirty = true
	return &msg
}
