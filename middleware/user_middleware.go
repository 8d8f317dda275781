package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/owenfield/recall-api/auth"
	"github.com/owenfield/recall-api/models"
)

type contextKey string

// UserKey is the request-context key holding the synced *models.User.
const UserKey contextKey = "user"

// SyncUserMiddleware verifies the session token, ensures the user exists in
// the DB, and attaches it to the request context.
func SyncUserMiddleware(db *gorm.DB, logger *zap.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := auth.VerifyToken(tokenString)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var user models.User
		result := db.Where("subject = ?", claims.Subject).First(&user)

		if result.Error != nil {
			// User does not exist, create a new one
			user = models.User{
				Subject:  claims.Subject,
				Nickname: claims.Nickname,
			}
			createResult := db.Create(&user)
			if createResult.Error != nil {
				http.Error(w, "Failed to create user", http.StatusInternalServerError)
				logger.Error("user creation failed", zap.Error(createResult.Error))
				return
			}
			logger.Info("created new user", zap.String("nickname", user.Nickname))
		} else {
			// User exists, update nickname only if non-empty and changed
			if claims.Nickname != "" && user.Nickname != claims.Nickname {
				user.Nickname = claims.Nickname
				saveResult := db.Save(&user)
				if saveResult.Error != nil {
					http.Error(w, "Failed to update user", http.StatusInternalServerError)
					logger.Error("user update failed", zap.Error(saveResult.Error))
					return
				}
			}
		}

		// Add user to context for downstream handlers
		ctx := context.WithValue(r.Context(), UserKey, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// bearerToken pulls the token from the Authorization header or, failing that,
// the session cookie.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie("token"); err == nil {
		return cookie.Value
	}
	return ""
}
