package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Retrieval RetrievalConfig
	Agent     AgentConfig
	Pipeline  PipelineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	EventTopicName     string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaEmbedModel  string
	GeminiApiKey      string

	// Completion backend. "openai" covers any OpenAI-compatible endpoint
	// (DeepSeek, Moonshot, Hermes) selected via base URL.
	CompletionBackend string
	CompletionBaseURL string
	CompletionApiKey  string
	CompletionModel   string
	CheckModel        string // cheaper model for reasoning checks
	Temperature       float64
	MaxTokens         int
}

type RetrievalConfig struct {
	DefaultK            int
	MaxK                int
	SimilarityThreshold float64
	SemanticWeight      float64
	RRFConstant         int
	MaxRetrievalLoops   int
}

type AgentConfig struct {
	MaxIterations        int
	ForceToolUse         bool
	PersonaDir           string
	StylePackEnabled     bool
	StylePackSize        int
	StylePackTTLMinutes  int
	IncrementalReasoning IncrementalReasoningConfig
}

type IncrementalReasoningConfig struct {
	Enabled     bool
	MaxConcepts int
}

type PipelineConfig struct {
	ContentBudgetChars  int
	StyleBudgetChars    int
	WorldviewMaxK       int
	CriticEvidenceMaxK  int
	StyleMaxSamples     int
	StyleMaxSampleChars int
	StyleMinChunkChars  int
	FallbackScore       float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			EventTopicName:     getEnv("PIPELINE_EVENT_TOPIC_NAME", "PIPELINE_STAGE_EVENTS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaEmbedModel:  getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			GeminiApiKey:      getEnv("GOOGLE_GEMINI_API_KEY", ""),
			CompletionBackend: getEnv("COMPLETION_BACKEND", "ollama"),
			CompletionBaseURL: getEnv("COMPLETION_BASE_URL", ""),
			CompletionApiKey:  getEnv("COMPLETION_API_KEY", ""),
			CompletionModel:   getEnv("COMPLETION_MODEL", "llama3"),
			CheckModel:        getEnv("CHECK_MODEL", ""),
			Temperature:       getEnvAsFloat("COMPLETION_TEMPERATURE", 0.7),
			MaxTokens:         getEnvAsInt("COMPLETION_MAX_TOKENS", 4096),
		},
		Retrieval: RetrievalConfig{
			DefaultK:            getEnvAsInt("RETRIEVAL_DEFAULT_K", 5),
			MaxK:                getEnvAsInt("RETRIEVAL_MAX_K", 20),
			SimilarityThreshold: getEnvAsFloat("RETRIEVAL_SIMILARITY_THRESHOLD", 0.7),
			SemanticWeight:      getEnvAsFloat("RETRIEVAL_SEMANTIC_WEIGHT", 0.7),
			RRFConstant:         getEnvAsInt("RETRIEVAL_RRF_CONSTANT", 60),
			MaxRetrievalLoops:   getEnvAsInt("RETRIEVAL_MAX_LOOPS", 3),
		},
		Agent: AgentConfig{
			MaxIterations:       getEnvAsInt("AGENT_MAX_ITERATIONS", 20),
			ForceToolUse:        getEnvAsBool("AGENT_FORCE_TOOL_USE", true),
			PersonaDir:          getEnv("PERSONA_DIR", "./personas"),
			StylePackEnabled:    getEnvAsBool("STYLE_PACK_ENABLED", true),
			StylePackSize:       getEnvAsInt("STYLE_PACK_SIZE", 10),
			StylePackTTLMinutes: getEnvAsInt("STYLE_PACK_TTL_MINUTES", 15),
			IncrementalReasoning: IncrementalReasoningConfig{
				Enabled:     getEnvAsBool("INCREMENTAL_REASONING_ENABLED", false),
				MaxConcepts: getEnvAsInt("INCREMENTAL_REASONING_MAX_CONCEPTS", 5),
			},
		},
		Pipeline: PipelineConfig{
			ContentBudgetChars:  getEnvAsInt("PIPELINE_CONTENT_BUDGET_CHARS", 8000),
			StyleBudgetChars:    getEnvAsInt("PIPELINE_STYLE_BUDGET_CHARS", 4000),
			WorldviewMaxK:       getEnvAsInt("PIPELINE_WORLDVIEW_MAX_K", 40),
			CriticEvidenceMaxK:  getEnvAsInt("PIPELINE_CRITIC_EVIDENCE_MAX_K", 25),
			StyleMaxSamples:     getEnvAsInt("PIPELINE_STYLE_MAX_SAMPLES", 25),
			StyleMaxSampleChars: getEnvAsInt("PIPELINE_STYLE_MAX_SAMPLE_CHARS", 30000),
			StyleMinChunkChars:  getEnvAsInt("PIPELINE_STYLE_MIN_CHUNK_CHARS", 100),
			FallbackScore:       getEnvAsFloat("PIPELINE_FALLBACK_SCORE", 0.6),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := strings.ToLower(getEnv(key, ""))
	switch strValue {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}
