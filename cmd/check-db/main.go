// Package main is a diagnostic tool for testing database connectivity and
// inspecting live IAM data. It connects to the database, summarizes the
// principals, roles, resources, and assignments tables, and prints the result
// to stdout. The binary exits with a non-zero code on any failure so it can be
// embedded in health checks or CI/CD pipeline steps to gate deployments on a
// reachable, populated database.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"
)

func main() {
	dbPassword := os.Getenv("DATABASE_PASSWORD")
	if dbPassword == "" {
		dbPassword = "iam"
	}

	connStr := fmt.Sprintf("host=localhost port=5432 user=iam password=%s dbname=platform_iam sslmode=disable", dbPassword)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	fmt.Println("=== PRINCIPALS ===")
	rows, err := db.Query("SELECT id, email, is_active, is_super_admin FROM principals ORDER BY created_at")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, email string
		var active, super bool
		if err := rows.Scan(&id, &email, &active, &super); err != nil {
			log.Printf("Warning: failed to scan principal row: %v", err)
			continue
		}
		flags := ""
		if super {
			flags = " [super-admin]"
		}
		if !active {
			flags += " [inactive]"
		}
		fmt.Printf("Principal: %s (ID: %s)%s\n", email, id, flags)
	}

	fmt.Println("\n=== ROLES ===")
	rows2, err := db.Query("SELECT name, verbs, is_system FROM roles ORDER BY name")
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	defer rows2.Close()

	for rows2.Next() {
		var name, verbs string
		var system bool
		if err := rows2.Scan(&name, &verbs, &system); err != nil {
			log.Printf("Warning: failed to scan role row: %v", err)
			continue
		}
		kind := "custom"
		if system {
			kind = "system"
		}
		fmt.Printf("Role: %s (%s) verbs=%s\n", name, kind, verbs)
	}

	fmt.Println("\n=== SUMMARY ===")
	for _, table := range []string{"resources", "assignments", "api_keys", "refresh_tokens", "audit_logs"} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			log.Fatalf("Count failed for %s: %v", table, err)
		}
		fmt.Printf("%s: %d rows\n", table, count)
	}
}
