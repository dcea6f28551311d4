// Package main is a repair tool for dirty migration state in the IAM database.
// Dirty state occurs when the golang-migrate runner marks a migration version
// as in-progress (dirty=true) but the migration process was interrupted by a
// crash or timeout before it could complete. Clearing the flag lets the
// migration runner retry cleanly on the next server startup instead of
// refusing to start with a "Dirty database version" error.
//
// Usage:
//
//	fix-migration [-force-version N]
//
// Without flags the tool only clears the dirty flag. -force-version also
// rewrites the recorded version, for when a partially applied migration was
// rolled back by hand.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	forceVersion := flag.Int("force-version", -1, "also set the recorded migration version")
	flag.Parse()

	if err := run(*forceVersion); err != nil {
		log.Fatal(err)
	}
}

func run(forceVersion int) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	version, dirty, err := migrationState(db)
	if err != nil {
		return err
	}
	log.Printf("Current migration state: version=%d, dirty=%v", version, dirty)

	switch {
	case forceVersion >= 0:
		log.Printf("Forcing migration state to version=%d, dirty=false", forceVersion)
		if _, err := db.Exec("UPDATE schema_migrations SET version = $1, dirty = false", forceVersion); err != nil {
			return fmt.Errorf("forcing migration version: %w", err)
		}
	case dirty:
		log.Println("Clearing dirty flag...")
		if _, err := db.Exec("UPDATE schema_migrations SET dirty = false"); err != nil {
			return fmt.Errorf("clearing dirty flag: %w", err)
		}
	default:
		log.Println("Migration state is already clean, nothing to do")
		return nil
	}

	version, dirty, err = migrationState(db)
	if err != nil {
		return err
	}
	log.Printf("Final migration state: version=%d, dirty=%v", version, dirty)
	return nil
}

func openDB() (*sql.DB, error) {
	password := os.Getenv("DATABASE_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dsn := fmt.Sprintf("host=localhost port=5432 user=iam password=%s dbname=platform_iam sslmode=disable", password)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

func migrationState(db *sql.DB) (version int, dirty bool, err error) {
	err = db.QueryRow("SELECT version, dirty FROM schema_migrations LIMIT 1").Scan(&version, &dirty)
	if err != nil {
		return 0, false, fmt.Errorf("reading schema_migrations: %w", err)
	}
	return version, dirty, nil
}
