package utils

import (
	"net/http"

	"github.com/owenfield/recall-api/middleware"
	"github.com/owenfield/recall-api/models"
)

// GetUser returns the user the middleware attached to the request context.
func GetUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(middleware.UserKey).(*models.User)
	return user, ok
}
