package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/arvicollection/authcore/internal/auth/http"
	"github.com/arvicollection/authcore/internal/auth/notify"
	"github.com/arvicollection/authcore/internal/auth/service"
	"github.com/arvicollection/authcore/internal/auth/store"
	"github.com/arvicollection/authcore/internal/auth/store/drivers/documents"
	"github.com/arvicollection/authcore/internal/docstore"
	"github.com/arvicollection/authcore/internal/docstore/drivers/file"
	redisdocs "github.com/arvicollection/authcore/internal/docstore/drivers/redis"
	"github.com/arvicollection/authcore/internal/docstore/drivers/sqlite"
	"github.com/arvicollection/authcore/pkg/cryptox"
	"github.com/arvicollection/authcore/pkg/jwtx"
	"github.com/arvicollection/authcore/pkg/slogx"

	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Services are the operations the storefront calls in-process.
type Services struct {
	Credentials *service.CredentialService
	MFA         *service.MFAService
	Login       *service.LoginService
	Sessions    *service.SessionService
}

// Application encapsulates the auth core with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	codec   *cryptox.Codec
	hasher  *cryptox.Hasher
	signer  *jwtx.Signer
	limiter *notify.RateLimiter

	services            Services
	housekeepingService *service.HousekeepingService

	// Ops HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	ephemeral, err := app.initSecrets()
	if err != nil {
		return nil, err
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.signer, err = LoadSessionSigner(cfg.SessionKeyFile, app.codec, !ephemeral, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize session key: %w", err)
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Services returns the credential and MFA operations.
func (app *Application) Services() Services {
	return app.services
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth core starting", "port", app.cfg.Port, "store", app.cfg.StoreDriver)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth core...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.services.MFA.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("auth core stopped")
	return nil
}

// initSecrets loads the field encryption key and the password pepper. It
// reports whether the master key is ephemeral.
func (app *Application) initSecrets() (bool, error) {
	prod := app.cfg.Production()

	key, ephemeral, err := cryptox.LoadMasterKey(app.cfg.MasterKeyPath, app.cfg.MasterKey, prod)
	if err != nil {
		return false, fmt.Errorf("failed to load master key: %w", err)
	}
	if ephemeral {
		app.logger.Warn("no master key configured; encrypted fields will not survive a restart")
	}
	app.codec, err = cryptox.NewCodec(key)
	if err != nil {
		return false, err
	}

	pepper, err := cryptox.LoadOrGeneratePepper(app.cfg.PepperFile, app.cfg.PasswordPepper, prod)
	if err != nil {
		return false, fmt.Errorf("failed to load password pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper)

	return ephemeral, nil
}

// initStore opens the configured document store driver.
func (app *Application) initStore() error {
	opts := docstore.Options{Logger: app.logger}

	var docs docstore.Store
	switch app.cfg.StoreDriver {
	case DriverSQLite:
		db, err := sqlite.Open(app.cfg.DatabaseFile, opts)
		if err != nil {
			return fmt.Errorf("failed to open sqlite store: %w", err)
		}
		app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
		docs = db
	case DriverRedis:
		client := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
		docs = redisdocs.New(client, app.cfg.RedisPrefix, opts)
	default:
		db, err := file.Open(app.cfg.DataDir, opts)
		if err != nil {
			return fmt.Errorf("failed to open file store: %w", err)
		}
		docs = db
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := docs.Ping(ctx); err != nil {
		_ = docs.Close()
		return fmt.Errorf("store is not reachable: %w", err)
	}

	app.db = documents.New(docs, app.codec)
	return nil
}

// senders picks the notification transports. Without SMTP every code is
// logged instead of delivered; SMS always goes to the log.
func (app *Application) senders() (notify.EmailSender, notify.SMSSender) {
	logSender := &notify.LogSender{
		Logger:      app.logger,
		AppName:     app.cfg.AppName,
		RevealCodes: app.cfg.Env == "dev",
	}

	var email notify.EmailSender = logSender
	if app.cfg.SMTPHost != "" {
		email = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.SMTPFrom,
			AppName:  app.cfg.AppName,
		})
	} else {
		app.logger.Warn("SMTP_HOST not set; email codes are logged, not sent")
	}

	app.limiter = notify.NewRateLimiter(app.cfg.SendLimit, app.cfg.SendWindow)
	throttled := &notify.Throttled{Email: email, SMS: logSender, Limiter: app.limiter}
	return throttled, throttled
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	email, sms := app.senders()

	sessions := &service.SessionService{
		Store:    app.db,
		Signer:   app.signer,
		Verifier: jwtx.NewVerifier(app.cfg.Issuer, 30*time.Second, nil, app.signer.PublicKey()),
		Issuer:   app.cfg.Issuer,
		TTL:      app.cfg.SessionTTL,
	}
	mfa := &service.MFAService{
		Store:  app.db,
		Hasher: app.hasher,
		Email:  email,
		SMS:    sms,
		Issuer: app.cfg.Issuer,
	}

	app.services = Services{
		Credentials: &service.CredentialService{Hasher: app.hasher},
		MFA:         mfa,
		Login: &service.LoginService{
			Store:        app.db,
			Hasher:       app.hasher,
			MFA:          mfa,
			Sessions:     sessions,
			MaxAttempts:  app.cfg.MaxLoginAttempts,
			LockDuration: app.cfg.LockDuration,
		},
		Sessions: sessions,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.RetentionPeriod,
	)
	app.housekeepingService.Limiter = app.limiter
}

// initHTTP initializes the ops router and server
func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(app.db, app.signer, BuildVersion, app.logger)

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
