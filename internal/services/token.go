package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tortshark/backend/internal/audit"
	"github.com/tortshark/backend/internal/locks"
	"github.com/tortshark/backend/internal/logger"
	"github.com/tortshark/backend/internal/models"
)

var (
	ErrNotConnected  = errors.New("platform is not connected")
	ErrNotOAuth      = errors.New("platform uses a static API key, not OAuth")
	ErrRefreshFailed = errors.New("token refresh failed, reconnect required")
)

// TokenService owns OAuth credential storage and refresh. Refresh tokens are
// sealed with the vault before they touch the database; refreshes for one
// (user, platform) pair are serialized behind a credential lock so concurrent
// syncs never race the token endpoint.
type TokenService struct {
	container *Container
}

func NewTokenService(container *Container) *TokenService {
	return &TokenService{container: container}
}

// ConnectGoogle completes the OAuth callback: exchanges the authorization code
// and stores the resulting grant for the user.
func (s *TokenService) ConnectGoogle(ctx context.Context, userID uuid.UUID, code, redirectURI string) (*models.OAuthCredential, error) {
	token, err := s.container.GoogleAds.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == "" {
		// Google only returns the refresh token on first consent; without it a
		// stored connection would die as soon as the access token expires.
		return nil, fmt.Errorf("authorization response missing refresh token, revoke access and reconnect")
	}

	enc, iv, err := s.container.Vault.Seal(token.RefreshToken)
	if err != nil {
		return nil, err
	}

	cred := &models.OAuthCredential{
		UserID:          userID,
		Platform:        models.PlatformGoogleAds,
		AccessToken:     token.AccessToken,
		RefreshTokenEnc: enc,
		RefreshTokenIV:  iv,
		ExpiresAt:       time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
		Scope:           token.Scope,
	}

	var existing models.OAuthCredential
	err = s.container.DB.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, models.PlatformGoogleAds).
		First(&existing).Error
	switch {
	case err == nil:
		cred.ID = existing.ID
		cred.CreatedAt = existing.CreatedAt
		err = s.container.DB.WithContext(ctx).Save(cred).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		cred.ID = uuid.New()
		err = s.container.DB.WithContext(ctx).Create(cred).Error
	}
	if err != nil {
		return nil, err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionConnect,
		Platform:   string(models.PlatformGoogleAds),
		EntityType: "oauth_credential",
		EntityID:   cred.ID.String(),
		Result:     audit.ResultSuccess,
	})

	return cred, nil
}

// GetValidAccessToken returns a usable access token for the user's connection,
// refreshing it first when it is expired or about to expire. Concurrent
// callers serialize on the credential lock and at most one of them performs
// the refresh; the rest read the token it stored.
func (s *TokenService) GetValidAccessToken(ctx context.Context, userID uuid.UUID, platform models.Platform) (string, error) {
	if platform != models.PlatformGoogleAds {
		return "", ErrNotOAuth
	}

	var accessToken string
	lockKey := fmt.Sprintf("%s:%s", userID, platform)
	err := locks.WithLockRetry(ctx, s.container.Locks, locks.ResourceCredential, lockKey,
		30*time.Second, 10*time.Second, func() error {
			cred, err := s.loadCredential(ctx, userID, platform)
			if err != nil {
				return err
			}

			if !cred.Expired(time.Now()) {
				accessToken = cred.AccessToken
				return nil
			}

			refreshed, err := s.refresh(ctx, cred)
			if err != nil {
				return err
			}
			accessToken = refreshed
			return nil
		})
	return accessToken, err
}

// ForceRefresh refreshes the credential immediately regardless of expiry and
// returns the updated record. Settings-page "refresh now" path.
func (s *TokenService) ForceRefresh(ctx context.Context, userID uuid.UUID, platform models.Platform) (*models.OAuthCredential, error) {
	if platform != models.PlatformGoogleAds {
		return nil, ErrNotOAuth
	}

	var cred *models.OAuthCredential
	lockKey := fmt.Sprintf("%s:%s", userID, platform)
	err := locks.WithLockRetry(ctx, s.container.Locks, locks.ResourceCredential, lockKey,
		30*time.Second, 10*time.Second, func() error {
			loaded, err := s.loadCredential(ctx, userID, platform)
			if err != nil {
				return err
			}
			if _, err := s.refresh(ctx, loaded); err != nil {
				return err
			}
			cred, err = s.loadCredential(ctx, userID, platform)
			return err
		})
	return cred, err
}

// AnyValidAccessToken finds any connected credential for the platform and
// returns a valid token for it. Scheduled syncs have no triggering user, so
// they ride on whichever team member connected the platform.
func (s *TokenService) AnyValidAccessToken(ctx context.Context, platform models.Platform) (string, error) {
	var cred models.OAuthCredential
	err := s.container.DB.WithContext(ctx).
		Where("platform = ?", platform).
		Order("created_at ASC").
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotConnected
		}
		return "", err
	}
	return s.GetValidAccessToken(ctx, cred.UserID, platform)
}

func (s *TokenService) loadCredential(ctx context.Context, userID uuid.UUID, platform models.Platform) (*models.OAuthCredential, error) {
	var cred models.OAuthCredential
	err := s.container.DB.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, platform).
		First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}
	return &cred, nil
}

func (s *TokenService) refresh(ctx context.Context, cred *models.OAuthCredential) (string, error) {
	log := logger.FromContext(ctx)

	refreshToken, err := s.container.Vault.Open(cred.RefreshTokenEnc, cred.RefreshTokenIV)
	if err != nil {
		return "", err
	}

	token, err := s.container.GoogleAds.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		log.Warn().Err(err).
			Str("platform", string(cred.Platform)).
			Str("user_id", cred.UserID.String()).
			Msg("Token refresh rejected by provider")
		s.container.Audit.Log(ctx, audit.Entry{
			UserID:       &cred.UserID,
			Action:       audit.ActionRefresh,
			Platform:     string(cred.Platform),
			EntityType:   "oauth_credential",
			EntityID:     cred.ID.String(),
			Result:       audit.ResultFailed,
			ErrorMessage: err.Error(),
		})
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	updates := map[string]interface{}{
		"access_token": token.AccessToken,
		"expires_at":   time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}
	// Google occasionally rotates the refresh token; keep the newest one.
	if token.RefreshToken != "" {
		enc, iv, sealErr := s.container.Vault.Seal(token.RefreshToken)
		if sealErr == nil {
			updates["refresh_token_enc"] = enc
			updates["refresh_token_iv"] = iv
		}
	}
	if err := s.container.DB.WithContext(ctx).Model(cred).Updates(updates).Error; err != nil {
		return "", err
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &cred.UserID,
		Action:     audit.ActionRefresh,
		Platform:   string(cred.Platform),
		EntityType: "oauth_credential",
		EntityID:   cred.ID.String(),
		Result:     audit.ResultSuccess,
	})

	return token.AccessToken, nil
}

// Revoke drops the stored connection. The upstream grant is not touched; the
// user can revoke it from their Google account.
func (s *TokenService) Revoke(ctx context.Context, userID uuid.UUID, platform models.Platform) error {
	result := s.container.DB.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, platform).
		Delete(&models.OAuthCredential{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotConnected
	}

	s.container.Audit.Log(ctx, audit.Entry{
		UserID:     &userID,
		Action:     audit.ActionRevoke,
		Platform:   string(platform),
		EntityType: "oauth_credential",
		Result:     audit.ResultSuccess,
	})
	return nil
}

// ConnectionStatus is the per-platform connection state for the settings page.
type ConnectionStatus struct {
	Platform  models.Platform `json:"platform"`
	Connected bool            `json:"connected"`
	AuthType  string          `json:"auth_type"` // oauth or api_key
	Email     string          `json:"email,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Connections reports every platform's connection state for the user. Keyed
// platforms count as connected when their client is configured.
func (s *TokenService) Connections(ctx context.Context, userID uuid.UUID) ([]ConnectionStatus, error) {
	statuses := []ConnectionStatus{
		{Platform: models.PlatformGoogleAds, AuthType: "oauth"},
		{Platform: models.PlatformLeadProsper, AuthType: "api_key", Connected: s.container.LeadProsper != nil},
		{Platform: models.PlatformHyros, AuthType: "api_key", Connected: s.container.Hyros != nil},
		{Platform: models.PlatformClickMagick, AuthType: "api_key", Connected: s.container.ClickMagick != nil},
	}

	var cred models.OAuthCredential
	err := s.container.DB.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, models.PlatformGoogleAds).
		First(&cred).Error
	if err == nil {
		statuses[0].Connected = true
		statuses[0].Email = cred.Email
		expires := cred.ExpiresAt
		statuses[0].ExpiresAt = &expires
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return statuses, nil
}
