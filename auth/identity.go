package auth

import (
	"github.com/folkengine/goname"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/tcriess/lightspeed-poker/config"
	"github.com/tcriess/lightspeed-poker/globals"
)

const defaultCacheSize = 1024

// Identity is what the transport hands to the engine for a new connection:
// a stable user id (verified or generated), a display name suggestion and the
// session token that lets the connection reclaim its participant after a
// drop.
type Identity struct {
	UserId       string
	Nick         string
	SessionToken string
}

// IdentityProvider resolves connections to identities. Verified users come
// from OIDC; everyone else gets a generated guest identity. Resolved
// identities are kept in a bounded LRU keyed by session token, so a
// reconnecting guest keeps its name even if its room's hub was evicted in
// between.
type IdentityProvider struct {
	cfg   *config.Config
	cache *lru.Cache
}

func NewIdentityProvider(cfg *config.Config) (*IdentityProvider, error) {
	size := cfg.RoomConfig.SessionCacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &IdentityProvider{cfg: cfg, cache: cache}, nil
}

// Resolve determines the identity for a connection. A known session token
// short-circuits to the cached identity; otherwise an OIDC id token is
// verified if present, and failing both, a fresh guest identity is minted.
func (ip *IdentityProvider) Resolve(idToken, oidcProvider, sessionToken string) *Identity {
	if sessionToken != "" {
		if cached, ok := ip.cache.Get(sessionToken); ok {
			return cached.(*Identity)
		}
	}
	userId := ""
	if idToken != "" {
		var err error
		userId, err = Authenticate(idToken, oidcProvider, ip.cfg)
		if err != nil {
			globals.AppLogger.Warn("id token rejected, continuing as guest", "error", err)
			userId = ""
		}
	}
	nick := userId
	if userId == "" {
		nick = goname.New(goname.FantasyMap).FirstLast() + " (guest)"
		userId = uuid.NewString()
	}
	identity := &Identity{
		UserId:       userId,
		Nick:         nick,
		SessionToken: uuid.NewString(),
	}
	ip.cache.Add(identity.SessionToken, identity)
	return identity
}
