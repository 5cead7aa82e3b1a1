package main

import (
	"log"
	"os"

	"persona-rag-be/internal/model"
	"persona-rag-be/pkg/database"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDB(dsn, true)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// Extensions GORM AutoMigrate cannot create itself.
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	if err := db.AutoMigrate(&model.Fragment{}); err != nil {
		log.Fatal("Error: AutoMigrate failed:", err)
	}

	// ANN index for the cosine search arm. ivfflat needs data to build
	// useful lists, so failure on an empty table is non-fatal.
	indexSQL := `CREATE INDEX IF NOT EXISTS idx_fragments_embedding
		ON fragments USING ivfflat (embedding_value vector_cosine_ops) WITH (lists = 100);`
	if err := db.Exec(indexSQL).Error; err != nil {
		log.Printf("Warn: Failed to create vector index: %v", err)
	}

	// Lexical arm scans content with ILIKE; trigram index keeps it sane.
	trgmSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pg_trgm;`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_content_trgm
			ON fragments USING gin (content gin_trgm_ops);`,
	}
	for _, sql := range trgmSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to create trigram index: %v", err)
		}
	}

	log.Println("Migration complete.")
}
