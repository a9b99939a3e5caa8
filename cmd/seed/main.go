// Command seed loads users and books from a YAML fixture through the regular services.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"library_api/internal/config"
	"library_api/internal/logger"
	"library_api/internal/models"
	"library_api/internal/repository"
	"library_api/internal/repository/db"
	"library_api/internal/service"
	"library_api/internal/storage"

	"gopkg.in/yaml.v3"
)

type fixture struct {
	Users []seedUser `yaml:"users"`
	Books []seedBook `yaml:"books"`
}

type seedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type seedBook struct {
	Title       string `yaml:"title"`
	Author      string `yaml:"author"`
	Description string `yaml:"description"`
	Owner       string `yaml:"owner"`
}

type report struct {
	UsersCreated, UsersSkipped int
	BooksCreated, BooksSkipped int
}

// seedActor performs role changes on behalf of the fixture.
var seedActor = &models.User{Username: "seed", Role: models.RoleAdmin}

func main() {
	file := flag.String("file", "seed.yml", "path to the YAML fixture")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.LogLevel).Named("seed")

	fx, err := readFixture(*file)
	if err != nil {
		log.Fatalw("failed to read fixture", "file", *file, "err", err)
	}

	conn, err := db.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Fatalw("failed to open database", "err", err)
	}
	defer func() { _ = conn.Close() }()

	repos := repository.NewRepository(conn, repository.DialectFor(cfg.DB.Driver))
	services := service.NewService(repos, storage.NewLocalCovers(cfg.Storage.CoversDir), service.Config{
		Auth: service.AuthConfig{SigningKey: cfg.Auth.SigningKey, TokenTTL: cfg.Auth.TokenTTL},
		Log:  log.Named("activity"),
	})

	rep, err := seed(context.Background(), services, repos.Users, fx)
	if err != nil {
		log.Fatalw("seeding failed", "err", err)
	}
	log.Infow("seed complete",
		"users_created", rep.UsersCreated, "users_skipped", rep.UsersSkipped,
		"books_created", rep.BooksCreated, "books_skipped", rep.BooksSkipped,
	)
}

func readFixture(path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fx, nil
}

func seed(ctx context.Context, svc *service.Service, users repository.UserRepo, fx *fixture) (report, error) {
	var rep report

	for _, su := range fx.Users {
		existing, err := users.GetByUsername(ctx, su.Username)
		if err != nil {
			return rep, fmt.Errorf("lookup user %q: %w", su.Username, err)
		}
		if existing != nil {
			rep.UsersSkipped++
			continue
		}

		u, err := svc.SignUp(ctx, service.SignUpInput{Username: su.Username, Email: su.Email, Password: su.Password})
		if err != nil {
			return rep, fmt.Errorf("create user %q: %w", su.Username, err)
		}
		rep.UsersCreated++

		if role := strings.ToLower(strings.TrimSpace(su.Role)); role != "" && role != u.Role {
			if _, err := svc.SetRole(ctx, seedActor, u.ID, role); err != nil {
				return rep, fmt.Errorf("set role of %q: %w", su.Username, err)
			}
		}
	}

	for _, sb := range fx.Books {
		owner, err := users.GetByUsername(ctx, sb.Owner)
		if err != nil {
			return rep, fmt.Errorf("lookup owner %q: %w", sb.Owner, err)
		}
		if owner == nil {
			return rep, fmt.Errorf("book %q: unknown owner %q", sb.Title, sb.Owner)
		}

		profile, err := svc.Profile(ctx, owner)
		if err != nil {
			return rep, err
		}
		if ownsTitle(profile.Books, sb.Title) {
			rep.BooksSkipped++
			continue
		}

		nb := service.NewBook{Title: sb.Title, Author: sb.Author}
		if sb.Description != "" {
			nb.Description = &sb.Description
		}
		if _, err := svc.CreateBook(ctx, owner, nb); err != nil {
			return rep, fmt.Errorf("create book %q: %w", sb.Title, err)
		}
		rep.BooksCreated++
	}
	return rep, nil
}

func ownsTitle(books []models.Book, title string) bool {
	for _, b := range books {
		if strings.EqualFold(b.Title, title) {
			return true
		}
	}
	return false
}
