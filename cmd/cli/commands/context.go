package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/evercare/careshift/internal/config"
	"github.com/evercare/careshift/pkg/core/cascade"
	"github.com/evercare/careshift/pkg/httpapi"
	"github.com/evercare/careshift/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Database *postgres.DB
	Engine   *cascade.Engine
	Verifier httpapi.TokenVerifier
	Logger   *zap.Logger
	Ctx      context.Context
}
