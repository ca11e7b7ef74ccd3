// SPDX-License-Identifier: MIT

package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/mediagate/mediagate/internal/errs"
	"github.com/mediagate/mediagate/internal/fetch"
)

// guestTokenTTL bounds reuse of one activation token. Upstream expires them
// after roughly three hours; staying under that keeps mid-request rejects rare.
const guestTokenTTL = 2 * time.Hour

// guestTokens mints and caches the X-Guest-Token that TweetResultByRestId
// accepts in place of account credentials. The current token survives
// restarts on disk so a redeploy does not burn another activation call.
type guestTokens struct {
	client      *fetch.Client
	logger      zerolog.Logger
	activateURL string
	path        string

	mu      sync.Mutex
	token   string
	expires time.Time
}

type guestTokenState struct {
	Token     string    `json:"token"`
	FetchedAt time.Time `json:"fetchedAt"`
}

func newGuestTokens(client *fetch.Client, logger zerolog.Logger) *guestTokens {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return &guestTokens{
		client:      client,
		logger:      logger,
		activateURL: "https://api.x.com/1.1/guest/activate.json",
		path:        filepath.Join(base, "mediagate", "twitter-guest.json"),
	}
}

// Token returns a usable activation token, minting a fresh one when the
// cached token is missing or past its TTL.
func (g *guestTokens) Token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if g.token != "" && now.Before(g.expires) {
		return g.token, nil
	}
	if st, ok := g.restore(); ok && now.Before(st.FetchedAt.Add(guestTokenTTL)) {
		g.token = st.Token
		g.expires = st.FetchedAt.Add(guestTokenTTL)
		return g.token, nil
	}

	token, err := g.activate(ctx)
	if err != nil {
		return "", err
	}
	g.token = token
	g.expires = now.Add(guestTokenTTL)
	g.persist(guestTokenState{Token: token, FetchedAt: now})
	return token, nil
}

// Invalidate drops the cached token after upstream rejected it.
func (g *guestTokens) Invalidate() {
	g.mu.Lock()
	g.token = ""
	g.expires = time.Time{}
	g.mu.Unlock()
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		g.logger.Debug().Err(err).Msg("stale guest token file not removed")
	}
}

func (g *guestTokens) activate(ctx context.Context) (string, error) {
	bearer, _ := url.QueryUnescape(bearerToken)
	resp, err := g.client.FetchText(ctx, g.activateURL, fetch.Options{
		Method:  http.MethodPost,
		Headers: map[string]string{"Authorization": "Bearer " + bearer},
	})
	if err != nil {
		return "", errs.Wrap(err, errs.CodeExtractionFailed, "guest token activation failed")
	}
	var payload struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.Unmarshal([]byte(resp.Data), &payload); err != nil || payload.GuestToken == "" {
		return "", errs.E(errs.CodeExtractionFailed, "activation response carries no guest token")
	}
	g.logger.Debug().Msg("activated guest token")
	return payload.GuestToken, nil
}

func (g *guestTokens) restore() (guestTokenState, bool) {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return guestTokenState{}, false
	}
	var st guestTokenState
	if err := json.Unmarshal(data, &st); err != nil || st.Token == "" {
		return guestTokenState{}, false
	}
	return st, true
}

// persist writes the token atomically; a crash mid-write must never leave a
// torn file for the next boot to choke on. Persistence is best effort, the
// in-memory token keeps working either way.
func (g *guestTokens) persist(st guestTokenState) {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o700); err != nil {
		g.logger.Debug().Err(err).Msg("guest token cache dir unavailable")
		return
	}
	pending, err := renameio.NewPendingFile(g.path)
	if err != nil {
		g.logger.Debug().Err(err).Msg("guest token not persisted")
		return
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			g.logger.Debug().Err(err).Msg("cleanup pending guest token file")
		}
	}()

	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if _, err := pending.Write(data); err != nil {
		g.logger.Debug().Err(err).Msg("guest token not persisted")
		return
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		g.logger.Debug().Err(err).Msg("guest token not persisted")
	}
}
