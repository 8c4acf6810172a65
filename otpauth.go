// Package otpauth is passwordless sign-in by one-time email codes: a code
// ledger, a user store, HS256 session tokens and ownership checks for the
// resources those users create.
package otpauth

import (
	"github.com/tech-arch1tect/otpauth/app"
	"github.com/tech-arch1tect/otpauth/config"
)

type App = app.App

// New starts a builder with the core auth stack already wired in.
func New() *app.AppBuilder {
	return app.NewApp()
}

func NewWithConfig(cfg *config.Config) *app.AppBuilder {
	return app.NewApp().WithConfig(cfg)
}
