package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"persona-rag-be/internal/bootstrap"
	"persona-rag-be/internal/config"
	"persona-rag-be/internal/dto"
	"persona-rag-be/pkg/database"

	"github.com/fatih/color"
)

// One-shot CLI: ask a persona a question, or hand it a document to
// critique, without standing up the HTTP server.
func main() {
	var (
		personaName = flag.String("persona", "", "persona to answer as (required)")
		query       = flag.String("query", "", "question to ask")
		critic      = flag.Bool("critic", false, "critique a document instead of answering")
		docPath     = flag.String("doc", "", "document file to critique (with -critic)")
	)
	flag.Parse()

	if *personaName == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *critic && *docPath == "" {
		log.Fatal("Error: -critic requires -doc")
	}
	if !*critic && *query == "" {
		log.Fatal("Error: -query is required unless -critic is set")
	}

	cfg := config.Load()
	gormDB, err := database.NewGormDB(cfg.Database.Connection, false)
	if err != nil {
		log.Fatalf("Unable to connect to GORM DB: %v", err)
	}
	container := bootstrap.NewContainer(gormDB, cfg)

	ctx := context.Background()

	var result *dto.RespondResult
	if *critic {
		raw, err := os.ReadFile(*docPath)
		if err != nil {
			log.Fatalf("Error: reading document: %v", err)
		}
		result, err = container.RespondService.Critique(ctx, &dto.CritiqueRequest{
			Persona:  *personaName,
			Document: string(raw),
		})
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	} else {
		result, err = container.RespondService.Respond(ctx, &dto.RespondRequest{
			Persona: *personaName,
			Query:   *query,
		})
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
	}

	printResult(*personaName, result)
	if result.Degraded {
		os.Exit(1)
	}
}

func printResult(personaName string, result *dto.RespondResult) {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	warn := color.New(color.FgYellow)

	header.Printf("%s ", personaName)
	dim.Printf("(%s mode, %d iterations)\n\n", result.Mode, result.Iterations)

	fmt.Println(result.Response)

	if len(result.Feedback) > 0 {
		fmt.Println()
		header.Println("Feedback:")
		for i, item := range result.Feedback {
			severity := color.New(severityColor(item.Severity)).Sprint(item.Severity)
			fmt.Printf("%d. [%s/%s] %s\n   %s\n", i+1, item.Type, severity, item.Title, item.Content)
			if len(item.CorpusSources) > 0 {
				dim.Printf("   sources: %v\n", item.CorpusSources)
			}
		}
	}

	if len(result.ToolCalls) > 0 {
		fmt.Println()
		dim.Printf("tool calls: %d\n", len(result.ToolCalls))
	}

	if result.Degraded {
		fmt.Println()
		warn.Printf("degraded: %s\n", result.Err)
	}
}

func severityColor(severity string) color.Attribute {
	switch severity {
	case "high":
		return color.FgRed
	case "medium":
		return color.FgYellow
	default:
		return color.FgGreen
	}
}
