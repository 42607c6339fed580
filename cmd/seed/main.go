// seed creates the initial admin account when it does not exist yet.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/ojinta/portfolio/go-services/internal/database"
	"github.com/ojinta/portfolio/go-services/internal/models"
	"github.com/ojinta/portfolio/go-services/internal/users"
	"github.com/ojinta/portfolio/go-services/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	if err := run(os.Args[1:]); err != nil {
		logger.Fatalf("seed: %v", err)
	}
}

type options struct {
	mongoURI string
	database string
	username string
	email    string
	role     string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	fs.StringVar(&o.mongoURI, "mongo-uri", os.Getenv("MONGODB_URI"), "MongoDB connection string")
	fs.StringVar(&o.database, "database", envOr("MONGODB_DATABASE", "portfolio"), "database name")
	fs.StringVar(&o.username, "username", "admin", "admin username")
	fs.StringVar(&o.email, "email", "", "admin email")
	fs.StringVar(&o.role, "role", models.RoleAdmin, "account role")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.mongoURI == "" {
		return o, errors.New("--mongo-uri or MONGODB_URI is required")
	}
	if o.email == "" {
		return o, errors.New("--email is required")
	}
	return o, nil
}

func run(args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		return errors.New("ADMIN_PASSWORD must be set")
	}

	ctx := context.Background()
	client, err := database.ConnectMongo(ctx, o.mongoURI, database.DefaultTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(ctx) }()

	repo := users.NewMongoUserRepository(client.Database(o.database).Collection(database.UsersCollection))
	if err := repo.EnsureIndexes(ctx); err != nil {
		return err
	}
	created, err := ensureAdmin(ctx, users.NewService(repo), o, password)
	if err != nil {
		return err
	}
	if created {
		logger.Infof("admin user created: %s", o.username)
	} else {
		logger.Infof("using existing admin user: %s", o.username)
	}
	return nil
}

// ensureAdmin creates the account unless the username is already taken.
func ensureAdmin(ctx context.Context, svc *users.Service, o options, password string) (bool, error) {
	_, err := svc.FindByUsername(ctx, o.username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, users.ErrUserNotFound) {
		return false, fmt.Errorf("lookup %s: %w", o.username, err)
	}
	if _, err := svc.CreateUser(ctx, o.username, o.email, password, o.role); err != nil {
		return false, err
	}
	return true, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
