package middleware

import (
	"github.com/Niiaks/ticketcore/internal/server"
	"github.com/newrelic/go-agent/v3/newrelic"
)

type Middlewares struct {
	Global          *Global
	ContextEnhancer *ContextEnhancer
	Tracing         *Tracing
	Auth            *Auth
}

func NewMiddlewares(s *server.Server, identities IdentityStore) *Middlewares {
	var nrApp *newrelic.Application

	if s.LoggerService != nil {
		nrApp = s.LoggerService.GetApplication()
	}

	return &Middlewares{
		Global:          NewGlobal(s),
		ContextEnhancer: NewContextEnhancer(s),
		Tracing:         NewTracing(nrApp),
		Auth:            NewAuth(s.Config.Auth.JWTSecret, s.Config.Auth.CookieName, identities),
	}
}
