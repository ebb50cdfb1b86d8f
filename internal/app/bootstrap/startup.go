// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/voluntahub/internal/app/store/users"
	"github.com/dalemusser/voluntahub/internal/app/system/auth"
	"github.com/dalemusser/voluntahub/internal/app/system/timeouts"
	"github.com/dalemusser/voluntahub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
//
// VoluntaHub applies timeout overrides, makes sure the configured admin
// account exists, and starts the realtime connection sweeper.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		cur := timeouts.Current()
		logger.Info("timeouts configured from environment",
			zap.Duration("ping", cur.Ping),
			zap.Duration("short", cur.Short),
			zap.Duration("medium", cur.Medium),
			zap.Duration("long", cur.Long),
		)
	}

	if appCfg.AdminEmail != "" {
		hasher, err := auth.NewHasher(appCfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("password hasher: %w", err)
		}
		ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "admin bootstrap")
		defer cancel()
		if err := ensureAdmin(ctx, userstore.New(deps.MongoDatabase), hasher, appCfg, logger); err != nil {
			logger.Error("admin bootstrap failed", zap.String("email", appCfg.AdminEmail), zap.Error(err))
			return err
		}
	} else {
		logger.Warn("admin_email not set; no admin account is bootstrapped")
	}

	if deps.Sweeper != nil {
		deps.Sweeper.Start()
	}
	return nil
}

// adminAccounts is the part of the user store the admin bootstrap needs.
type adminAccounts interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error
}

// ensureAdmin makes appCfg.AdminEmail an ADMIN. An existing account is
// promoted and keeps its password; otherwise a new account is created, which
// requires appCfg.AdminPassword.
func ensureAdmin(ctx context.Context, users adminAccounts, hasher *auth.Hasher, appCfg AppConfig, logger *zap.Logger) error {
	existing, err := users.GetByEmail(ctx, appCfg.AdminEmail)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			logger.Debug("admin account present", zap.String("email", existing.Email))
			return nil
		}
		if err := users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		logger.Info("promoted existing user to admin", zap.String("email", existing.Email))
		return nil

	case errors.Is(err, mongo.ErrNoDocuments):
		// create below

	default:
		return fmt.Errorf("look up admin: %w", err)
	}

	if appCfg.AdminPassword == "" {
		return errors.New("admin_password is required to create the admin account")
	}
	hash, err := hasher.Hash(appCfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	created, err := users.Create(ctx, models.User{
		Name:         appCfg.AdminName,
		Email:        appCfg.AdminEmail,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	logger.Info("created admin account", zap.String("email", created.Email), zap.String("id", created.ID.Hex()))
	return nil
}
