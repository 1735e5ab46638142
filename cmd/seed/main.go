package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"tablebooking/internal/config"
	"tablebooking/internal/database"
	"tablebooking/internal/domain"
	"tablebooking/internal/logging"
	"tablebooking/internal/modules/tables"
	"tablebooking/internal/pkg/apperr"
	"tablebooking/internal/pkg/jwt"
	"tablebooking/internal/repository"
)

// catalog lists partners before the tables that name them, since a table can
// only be linked to partners that already exist.
var catalog = []tables.CreateTableRequest{
	{Number: 1, Floor: domain.FloorGround, CapacityMin: 1, CapacityMax: 2},
	{Number: 2, Floor: domain.FloorGround, CapacityMin: 1, CapacityMax: 2},
	{Number: 3, Floor: domain.FloorGround, CapacityMin: 2, CapacityMax: 4},
	{Number: 4, Floor: domain.FloorGround, CapacityMin: 2, CapacityMax: 4, CombinableWith: []int{3}},
	{Number: 5, Floor: domain.FloorGround, CapacityMin: 4, CapacityMax: 6},
	{Number: 6, Floor: domain.FloorGround, CapacityMin: 4, CapacityMax: 8},
	{Number: 10, Floor: domain.FloorMezzanine, CapacityMin: 2, CapacityMax: 4},
	{Number: 11, Floor: domain.FloorMezzanine, CapacityMin: 2, CapacityMax: 4, CombinableWith: []int{10}},
	{Number: 12, Floor: domain.FloorMezzanine, CapacityMin: 6, CapacityMax: 10, IsVIP: true},
	{Number: 15, Floor: domain.FloorMezzanine, CapacityMin: 4, CapacityMax: 6},
	{Number: 16, Floor: domain.FloorMezzanine, CapacityMin: 3, CapacityMax: 6, CombinableWith: []int{15}},
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	token := flag.String("token", "", "also print a signed token for this role (staff or admin)")
	flag.Parse()

	if err := run(*configPath, *token); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run(configPath, tokenRole string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, logCloser, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return err
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	db, err := database.Connect(cfg.Database.DSN, log)
	if err != nil {
		return err
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := repository.NewStore(db, repository.StoreOptions{Timeout: cfg.Store.Timeout})
	svc := tables.NewService(store, nil, logging.Component(log, "seed"))

	created, skipped, err := seedTables(context.Background(), svc, log)
	if err != nil {
		return err
	}
	log.Info().Int("created", created).Int("skipped", skipped).Msg("table catalog seeded")

	if tokenRole == "" {
		return nil
	}
	if tokenRole != jwt.RoleStaff && tokenRole != jwt.RoleAdmin {
		return fmt.Errorf("unknown role %q", tokenRole)
	}
	tok, err := jwt.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).GenerateToken("seed-"+tokenRole, tokenRole)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Println(tok)
	return nil
}

// seedTables creates the catalog, leaving tables that already exist untouched.
func seedTables(ctx context.Context, svc *tables.Service, log *zerolog.Logger) (created, skipped int, err error) {
	for _, req := range catalog {
		_, err := svc.CreateTable(ctx, req)
		var verr *apperr.ValidationError
		switch {
		case err == nil:
			created++
		case errors.As(err, &verr) && verr.Field == "number" && verr.Rule == "unique":
			skipped++
			log.Debug().Int("number", req.Number).Msg("table exists")
		default:
			return created, skipped, fmt.Errorf("create table %d: %w", req.Number, err)
		}
	}
	return created, skipped, nil
}
