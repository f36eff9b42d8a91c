package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-router"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	contacts "github.com/mvaldes/go-contacts"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	ctx := context.Background()

	cfg, err := contacts.NewAppConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := sql.Open(sqliteshim.ShimName, cfg.Persistence.GetDSN())
	if err != nil {
		log.Fatal(err)
	}

	persistence.RegisterModel((*contacts.User)(nil))
	persistence.RegisterModel((*contacts.Contact)(nil))
	persistence.RegisterModel((*contacts.RevokedToken)(nil))
	persistence.RegisterModel((*contacts.SubjectRevocation)(nil))

	client, err := persistence.New(cfg.Persistence, db, sqlitedialect.New())
	if err != nil {
		log.Fatal(err)
	}

	migrationsFS, err := fs.Sub(contacts.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		log.Fatal(err)
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		log.Fatal(err)
	}

	if err := client.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	revocations := contacts.NewBunRevocationRegistry(client.DB())

	repo := contacts.NewRepositoryManager(client.DB(),
		contacts.WithManagerContactsOptions(
			contacts.WithContactsRegion(cfg.Contacts.PhoneRegion),
		),
		contacts.WithManagerUsersOptions(
			contacts.WithUsersStateMachineOptions(
				contacts.WithStateMachineRevocations(revocations, cfg.Auth.GetTokenPolicy().RefreshTTL),
			),
		),
	)

	if err := repo.Validate(); err != nil {
		log.Fatal(err)
	}

	provider := contacts.NewUserProvider(userTrackerAdapter{users: repo.Users()})

	auther := contacts.NewAuthenticator(provider, repo.Users(), repo.Revocations(), cfg.Auth).
		WithNotifier(contacts.NewLogNotifier(nil)).
		WithTxRunner(repo.RunInTx)

	httpAuth, err := contacts.NewHTTPAuthenticator(auther, auther.TokenService(), repo.Revocations(), repo.Users(), cfg.Auth)
	if err != nil {
		log.Fatal(err)
	}

	var app *fiber.App
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		app = router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
		}))
		return app
	})

	contacts.RegisterAuthRoutes(srv.Router().Group("/"),
		contacts.WithControllerAuth(auther),
		contacts.WithControllerAuther(httpAuth),
	)

	guard := httpAuth.ProtectedRoute(contacts.WriteError)
	controller := contacts.NewContactsController(repo, cfg.Auth.GetContextKey())
	contacts.RegisterContactRoutes(srv.Router().Group("/"), controller, guard)

	if err := setupAvatars(ctx, cfg, app, auther, repo); err != nil {
		// The service stays useful without object storage; avatar routes
		// simply do not mount.
		log.Printf("avatar storage unavailable: %v", err)
	}

	srv.Serve(cfg.Server.Address)

	WaitExitSignal()
}

// userTrackerAdapter narrows the repository surface to what the provider
// consumes.
type userTrackerAdapter struct {
	users contacts.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*contacts.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *contacts.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a userTrackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *contacts.User) error {
	return a.users.TrackSuccessfulLogin(ctx, user)
}

func setupAvatars(ctx context.Context, cfg *contacts.AppConfig, app *fiber.App, auther *contacts.Auther, repo contacts.RepositoryManager) error {
	mc, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		return err
	}

	store, err := contacts.NewMinioAvatarStore(ctx, mc, cfg.Storage.Bucket)
	if err != nil {
		return err
	}

	handler := contacts.NewAvatarHandler(auther.TokenService(), repo.Revocations(), repo.Users(), store)
	contacts.RegisterAvatarRoutes(app, handler)

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
