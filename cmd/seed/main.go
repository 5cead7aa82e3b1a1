package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"persona-rag-be/internal/config"
	"persona-rag-be/internal/entity"
	"persona-rag-be/internal/repository/implementation"
	"persona-rag-be/pkg/database"
	"persona-rag-be/pkg/embedding"
	"persona-rag-be/pkg/utils"

	"github.com/google/uuid"
)

// Seeds a persona's corpus from a directory of plain-text files. Each
// file becomes overlapping fragments with embeddings, attributed to the
// file's relative path so critic feedback can cite it.
func main() {
	var (
		dir         = flag.String("dir", "", "directory of .txt/.md source files (required)")
		personaName = flag.String("persona", "", "persona the corpus belongs to (required)")
		sourceType  = flag.String("source-type", "essay", "essay, book, dialogue or note")
		chunkSize   = flag.Int("chunk-size", 1500, "chunk size in characters")
		overlap     = flag.Int("overlap", 200, "chunk overlap in characters")
	)
	flag.Parse()

	if *dir == "" || *personaName == "" {
		flag.Usage()
		os.Exit(2)
	}

	switch entity.SourceType(*sourceType) {
	case entity.SourceEssay, entity.SourceBook, entity.SourceDialogue, entity.SourceNote:
	default:
		log.Fatalf("Error: unknown source type %q", *sourceType)
	}

	cfg := config.Load()

	db, err := database.NewGormDB(cfg.Database.Connection, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	repo := implementation.NewFragmentRepository(db)

	var embedder embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embedder = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaEmbedModel)
	} else {
		embedder = embedding.NewGeminiProvider(cfg.Ai.GeminiApiKey)
	}

	ctx := context.Background()
	totalFragments := 0

	err = filepath.WalkDir(*dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		content := strings.TrimSpace(string(raw))
		if content == "" {
			return nil
		}

		rel, err := filepath.Rel(*dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}

		chunks := utils.SplitText(content, *chunkSize, *overlap)
		log.Printf("[INFO] %s: %d chunks", rel, len(chunks))

		fragments := make([]*entity.Fragment, 0, len(chunks))
		embeddings := make([][]float32, 0, len(chunks))
		for i, chunk := range chunks {
			vector, err := embedder.Embed(ctx, chunk, embedding.TaskDocument)
			if err != nil {
				log.Fatalf("Error: embedding chunk %d of %s: %v", i, rel, err)
			}
			fragments = append(fragments, &entity.Fragment{
				Id:         uuid.New(),
				Persona:    *personaName,
				Content:    chunk,
				SourceType: entity.SourceType(*sourceType),
				SourceFile: rel,
				ChunkIndex: i,
				CreatedAt:  time.Now(),
			})
			embeddings = append(embeddings, vector)
		}

		if err := repo.CreateBulk(ctx, fragments, embeddings); err != nil {
			log.Fatalf("Error: storing fragments for %s: %v", rel, err)
		}
		totalFragments += len(fragments)
		return nil
	})
	if err != nil {
		log.Fatal("Error: walking source directory:", err)
	}

	log.Printf("[SUCCESS] Seeded %d fragments for persona %q", totalFragments, *personaName)
}
