package middleware

import (
	"github.com/Is0cre/growtent/auth"

	"github.com/rs/zerolog"
)

type MiddlewareManager struct {
	auth *auth.AuthModule
	log  zerolog.Logger
}

func NewMiddlewareManager(auth *auth.AuthModule, log zerolog.Logger) *MiddlewareManager {
	return &MiddlewareManager{
		auth: auth,
		log:  log,
	}
}
