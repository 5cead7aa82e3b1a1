package bootstrap

import (
	"log"
	"time"

	"persona-rag-be/internal/config"
	"persona-rag-be/internal/controller"
	"persona-rag-be/internal/pkg/logger"
	"persona-rag-be/internal/repository/implementation"
	"persona-rag-be/internal/service"
	"persona-rag-be/pkg/agent"
	"persona-rag-be/pkg/embedding"
	"persona-rag-be/pkg/llm/factory"
	"persona-rag-be/pkg/persona"
	"persona-rag-be/pkg/pipeline"
	"persona-rag-be/pkg/rag/rank"
	"persona-rag-be/pkg/rag/reason"
	"persona-rag-be/pkg/rag/retrieve"
	"persona-rag-be/pkg/rag/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	RespondController controller.IRespondController

	// Services (exposed for CLIs and for main.go to run)
	RespondService  service.IRespondService
	ConsumerService service.IConsumerService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
	publisher := pipeline.NewStagePublisher(pubSub, cfg.App.EventTopicName)

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaEmbedModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbedModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Ai.GeminiApiKey)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}

	completionProvider, err := factory.NewCompletionProvider(
		cfg.Ai.CompletionBackend,
		cfg.Ai.CompletionModel,
		cfg.Ai.CompletionBaseURL,
		cfg.Ai.CompletionApiKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize completion provider: %v", err)
	}
	log.Printf("[INFO] Using Completion Backend: %s (%s), native tools: %v",
		cfg.Ai.CompletionBackend, cfg.Ai.CompletionModel, completionProvider.SupportsTools())

	// 4. Retrieval stack
	fragmentRepo := implementation.NewFragmentRepository(db)

	searchTool := search.NewCorpusSearchTool(fragmentRepo, embeddingProvider, search.Config{
		DefaultK:            cfg.Retrieval.DefaultK,
		MaxK:                cfg.Retrieval.MaxK,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		Rank: rank.Config{
			SemanticWeight:  cfg.Retrieval.SemanticWeight,
			RRFConstant:     cfg.Retrieval.RRFConstant,
			BothArmsBonus:   rank.DefaultConfig().BothArmsBonus,
			MinLexicalRatio: rank.DefaultConfig().MinLexicalRatio,
		},
	}, sysLogger)

	retriever := retrieve.NewRetriever(searchTool, cfg.Retrieval.MaxK, sysLogger)

	stylePackBuilder := search.NewStylePackBuilder(
		searchTool,
		cfg.Agent.StylePackSize,
		time.Duration(cfg.Agent.StylePackTTLMinutes)*time.Minute,
		sysLogger,
	)

	checker := reason.NewChecker(
		searchTool,
		completionProvider,
		cfg.Ai.CheckModel,
		cfg.Agent.IncrementalReasoning.MaxConcepts,
		sysLogger,
	)

	// 5. Personas + agent loop
	personaStore := persona.NewStore(cfg.Agent.PersonaDir)

	tools := []agent.Tool{agent.NewSearchCorpusTool(searchTool)}
	if cfg.Agent.IncrementalReasoning.Enabled {
		tools = append(tools, agent.NewCheckReasoningTool(checker))
	}
	registry := agent.NewToolRegistry(tools...)

	prompts := agent.NewPromptBuilder(personaStore, &agent.StylePackSource{
		Builder: stylePackBuilder,
		Enabled: cfg.Agent.StylePackEnabled,
	}, sysLogger)

	backend := agent.NewProviderBackend(completionProvider)
	loop := agent.NewLoop(backend, registry, prompts, agent.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		ForceToolUse:  cfg.Agent.ForceToolUse,
	}, sysLogger)

	// 6. Staged pipeline
	pl := pipeline.New(
		pipeline.NewPlanner(completionProvider, cfg.Retrieval.MaxK, sysLogger),
		retriever,
		pipeline.NewEvaluator(completionProvider, cfg.Retrieval.MaxK, cfg.Pipeline.FallbackScore, sysLogger),
		pipeline.NewSynthesizer(completionProvider, cfg.Pipeline.ContentBudgetChars, cfg.Pipeline.StyleBudgetChars, sysLogger),
		pipeline.NewWorldviewPlanner(completionProvider, cfg.Pipeline.WorldviewMaxK, sysLogger),
		pipeline.NewStyleExtractor(completionProvider, pipeline.StyleConfig{
			MaxSamples:     cfg.Pipeline.StyleMaxSamples,
			MaxSampleChars: cfg.Pipeline.StyleMaxSampleChars,
			MinChunkChars:  cfg.Pipeline.StyleMinChunkChars,
		}, sysLogger),
		pipeline.NewCriticReader(completionProvider, cfg.Pipeline.CriticEvidenceMaxK, sysLogger),
		personaStore,
		publisher,
		pipeline.Config{
			MaxRetrievalLoops: cfg.Retrieval.MaxRetrievalLoops,
			WorldviewMaxK:     cfg.Pipeline.WorldviewMaxK,
			EvidenceMaxK:      cfg.Pipeline.CriticEvidenceMaxK,
		},
		sysLogger,
	)

	// 7. Services + controllers
	respondService := service.NewRespondService(completionProvider, loop, pl, personaStore, sysLogger)
	consumerService := service.NewConsumerService(pubSub, cfg.App.EventTopicName, sysLogger)

	return &Container{
		RespondController: controller.NewRespondController(respondService, sysLogger),
		RespondService:    respondService,
		ConsumerService:   consumerService,
		Logger:            sysLogger,
	}
}
