package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tortshark/backend/internal/models"
	"github.com/tortshark/backend/internal/platforms"
)

func seedGoogleCredential(t *testing.T, c *Container, userID uuid.UUID, accessToken string, expiresAt time.Time) {
	t.Helper()

	enc, iv, err := c.Vault.Seal("stored-refresh")
	require.NoError(t, err)

	cred := &models.OAuthCredential{
		ID:              uuid.New(),
		UserID:          userID,
		Platform:        models.PlatformGoogleAds,
		AccessToken:     accessToken,
		RefreshTokenEnc: enc,
		RefreshTokenIV:  iv,
		ExpiresAt:       expiresAt,
	}
	require.NoError(t, c.DB.Create(cred).Error)
}

func googleClientFor(tokenURL string) *platforms.GoogleAdsClient {
	return platforms.NewGoogleAdsClient(platforms.GoogleAdsConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     tokenURL,
	})
}

func TestGetValidAccessTokenRefreshesOnceUnderConcurrency(t *testing.T) {
	var refreshCalls int64
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		fmt.Fprint(w, `{"access_token": "fresh-token", "expires_in": 3600, "token_type": "Bearer"}`)
	}))
	defer tokenServer.Close()

	container := newTestContainer(t, nil)
	container.GoogleAds = googleClientFor(tokenServer.URL)

	userID := uuid.New()
	seedGoogleCredential(t, container, userID, "stale-token", time.Now().Add(-time.Hour))

	const callers = 5
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = container.Token.GetValidAccessToken(
				context.Background(), userID, models.PlatformGoogleAds)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "fresh-token", tokens[i])
	}
	// One caller wins the credential lock and refreshes; the rest read the
	// token it stored.
	assert.EqualValues(t, 1, atomic.LoadInt64(&refreshCalls))
}

func TestGetValidAccessTokenSkipsRefreshWhenFresh(t *testing.T) {
	var refreshCalls int64
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCalls, 1)
		fmt.Fprint(w, `{"access_token": "fresh-token", "expires_in": 3600}`)
	}))
	defer tokenServer.Close()

	container := newTestContainer(t, nil)
	container.GoogleAds = googleClientFor(tokenServer.URL)

	userID := uuid.New()
	seedGoogleCredential(t, container, userID, "still-good", time.Now().Add(time.Hour))

	token, err := container.Token.GetValidAccessToken(context.Background(), userID, models.PlatformGoogleAds)
	require.NoError(t, err)
	assert.Equal(t, "still-good", token)
	assert.Zero(t, atomic.LoadInt64(&refreshCalls))
}

func TestGetValidAccessTokenNotConnected(t *testing.T) {
	container := newTestContainer(t, nil)

	_, err := container.Token.GetValidAccessToken(context.Background(), uuid.New(), models.PlatformGoogleAds)
	assert.ErrorIs(t, err, ErrNotConnected)
}
