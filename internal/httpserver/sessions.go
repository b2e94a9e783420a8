package httpserver

import (
	"fmt"
	"net/http"
	"sync"

	"storefront-core/internal/service/storefront"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	SessionHeader = "X-Storefront-Session"
	SessionCookie = "storefront_session"

	sessionCookieMaxAge = 30 * 24 * 60 * 60
	storefrontKey       = "storefront"
)

// Factory builds the storefront for a session id. Persistent state is read
// back from the session repository, so a rebuilt storefront resumes the cart.
type Factory func(sessionID string) *storefront.Storefront

// Sessions caches live storefronts by session id.
type Sessions struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *storefront.Storefront]
	build Factory
}

func NewSessions(size int, build Factory) (*Sessions, error) {
	if build == nil {
		return nil, fmt.Errorf("sessions: factory is required")
	}
	cache, err := lru.New[string, *storefront.Storefront](size)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	return &Sessions{cache: cache, build: build}, nil
}

// Get returns the cached storefront for id or builds a new one.
func (s *Sessions) Get(id string) *storefront.Storefront {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sf, ok := s.cache.Get(id); ok {
		return sf
	}
	sf := s.build(id)
	s.cache.Add(id, sf)
	return sf
}

func (s *Sessions) Len() int {
	return s.cache.Len()
}

// sessionMiddleware resolves the session id from the header or cookie and
// issues a new one when it is missing or malformed.
func sessionMiddleware(sessions *Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			id, _ = c.Cookie(SessionCookie)
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(SessionHeader, id)
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, id, sessionCookieMaxAge, "/", "", false, true)
		c.Set(storefrontKey, sessions.Get(id))
		c.Next()
	}
}

func storefrontFrom(c *gin.Context) *storefront.Storefront {
	return c.MustGet(storefrontKey).(*storefront.Storefront)
}
