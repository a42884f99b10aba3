package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/linemk/storefront/internal/config"
)

const migrationTable = "schema_migrations"

// buildMigrateDSN добавляет к DSN имя таблицы версий мигратора
func buildMigrateDSN(dbCfg config.DatabaseConfig, table string) string {
	return fmt.Sprintf("%s&x-migrations-table=%s", dbCfg.DSN(), table)
}

func main() {
	var (
		migrationsPathFlag string
		down               bool
	)
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back all migrations")

	// MustLoad сам вызывает flag.Parse
	cfg := config.MustLoad()

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	log.Printf("applying migrations from %s to %s:%d/%s", migrationsPath, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	m, err := migrate.New("file://"+migrationsPath, buildMigrateDSN(cfg.Database, migrationTable))
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	apply := m.Up
	if down {
		apply = m.Down
	}
	if err := apply(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migration failed: %v", err)
		}
		fmt.Println("No migrations to apply")
	} else {
		log.Println("Migrations applied successfully")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := printTables(db); err != nil {
		log.Fatalf("failed to list tables: %v", err)
	}
}

func printTables(db *sql.DB) error {
	rows, err := db.Query(`
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public'
		ORDER BY table_name
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	fmt.Println("Current tables in the database:")
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return err
		}
		fmt.Println(" -", tableName)
	}
	return rows.Err()
}
