package middleware

import (
	"context"
	"errors"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"battle-chat/internal/gamesession"
	"battle-chat/internal/models"
	"battle-chat/internal/repositories"
)

const userContextKey = "user"

// ErrEmptyUID is raised when the platform asserts an identity without a
// uid. Nothing can be reconciled against that.
var ErrEmptyUID = errors.New("empty uid in asserted identity")

// Session credentials must be plain alphanumerics. Anything else is
// rejected before the platform is ever contacted.
var alnumPattern = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Credentials is the session triple plus optional device tokens,
// accepted from query params or cookies.
type Credentials struct {
	SessionKey      string
	SessionValue    string
	AuthDeviceID    string
	IOSDeviceID     string
	AndroidDeviceID string
}

// CredentialsFromRequest extracts credentials, query params winning over
// cookies.
func CredentialsFromRequest(c *gin.Context) Credentials {
	get := func(name string) string {
		if v := c.Query(name); v != "" {
			return v
		}
		if v, err := c.Cookie(name); err == nil {
			return v
		}
		return ""
	}
	return Credentials{
		SessionKey:      get("sessionKey"),
		SessionValue:    get("sessionValue"),
		AuthDeviceID:    get("authDeviceId"),
		IOSDeviceID:     get("iosDeviceId"),
		AndroidDeviceID: get("androidDeviceId"),
	}
}

// WellFormed reports whether the session triple is present and purely
// alphanumeric. Callers must not contact the platform otherwise.
func (cr Credentials) WellFormed() bool {
	return alnumPattern.MatchString(cr.SessionKey) &&
		alnumPattern.MatchString(cr.SessionValue) &&
		alnumPattern.MatchString(cr.AuthDeviceID)
}

// Authorize validates the session triple against the game platform and
// reconciles the asserted identity into a local user, stored on the
// request context.
func Authorize(validator gamesession.Validator, users repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		creds := CredentialsFromRequest(c)
		if creds.SessionKey == "" || creds.SessionValue == "" || creds.AuthDeviceID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session credentials"})
			return
		}
		if !creds.WellFormed() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed credentials"})
			return
		}

		identity, err := validator.Validate(c.Request.Context(), creds.SessionKey, creds.SessionValue, creds.AuthDeviceID)
		if err != nil {
			log.Debug().Err(err).Msg("session validation failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
			return
		}
		identity.IOSDeviceID = creds.IOSDeviceID
		identity.AndroidDeviceID = creds.AndroidDeviceID

		user, err := ReconcileUser(c.Request.Context(), users, identity)
		if err != nil {
			if errors.Is(err, ErrEmptyUID) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid identity"})
				return
			}
			log.Error().Err(err).Str("uid", identity.UID).Msg("user reconciliation failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not load user"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// ReconcileUser syncs the local user record with a freshly asserted
// identity: create on first sight, overwrite on drift, and skip the
// write entirely when nothing changed.
func ReconcileUser(ctx context.Context, users repositories.UserRepository, identity gamesession.Identity) (models.User, error) {
	if identity.UID == "" {
		return models.User{}, ErrEmptyUID
	}

	user, err := users.GetByUID(ctx, identity.UID)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return users.Create(ctx, models.User{
			UID:             identity.UID,
			Name:            identity.Name,
			Avatar:          identity.Avatar,
			IOSDeviceID:     identity.IOSDeviceID,
			AndroidDeviceID: identity.AndroidDeviceID,
		})
	}
	if err != nil {
		return models.User{}, err
	}

	changed := false
	if user.Name != identity.Name {
		user.Name = identity.Name
		changed = true
	}
	if user.Avatar != identity.Avatar {
		user.Avatar = identity.Avatar
		changed = true
	}
	// device tokens are only asserted when the client sends them
	if identity.IOSDeviceID != "" && user.IOSDeviceID != identity.IOSDeviceID {
		user.IOSDeviceID = identity.IOSDeviceID
		changed = true
	}
	if identity.AndroidDeviceID != "" && user.AndroidDeviceID != identity.AndroidDeviceID {
		user.AndroidDeviceID = identity.AndroidDeviceID
		changed = true
	}

	if !changed {
		return user, nil
	}
	if err := users.Update(ctx, user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// UserFromContext returns the reconciled user placed by Authorize.
func UserFromContext(c *gin.Context) models.User {
	if val, ok := c.Get(userContextKey); ok {
		if user, ok := val.(models.User); ok {
			return user
		}
	}
	return models.User{}
}
