package model

// ================ Config ================
type RouterModelConfig struct {
	Model       string  `envconfig:"ROUTER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"ROUTER_MAX_TOKENS" default:"32"`
	Temperature float32 `envconfig:"ROUTER_TEMPERATURE" default:"0"`
}

type AgentModelConfig struct {
	Model       string  `envconfig:"AGENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"AGENT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"AGENT_TEMPERATURE" default:"0.1"`
}

type EmbeddingConfig struct {
	Model string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
}

type WebSearchConfig struct {
	APIKey     string `envconfig:"TAVILY_API_KEY"`
	Endpoint   string `envconfig:"TAVILY_ENDPOINT" default:"https://api.tavily.com/search"`
	MaxResults int    `envconfig:"TAVILY_MAX_RESULTS" default:"3"`
	TimeoutSec int    `envconfig:"TAVILY_TIMEOUT_SEC" default:"15"`
}

type CorpusConfig struct {
	CodeRulesPath string `envconfig:"CORPUS_CODE_RULES" default:"./vector_store/docs/code_rules/coding_rules.txt"`
	ReportsDir    string `envconfig:"CORPUS_REPORTS_DIR" default:"./vector_store/docs/reports"`
	EmployeesPath string `envconfig:"CORPUS_EMPLOYEES" default:"./vector_store/docs/employee_info/employees.txt"`
	ChunkSize     int    `envconfig:"CORPUS_CHUNK_SIZE" default:"800"`
	ChunkOverlap  int    `envconfig:"CORPUS_CHUNK_OVERLAP" default:"150"`
}

type RetrievalConfig struct {
	CodeRulesK      int `envconfig:"RETRIEVAL_CODE_RULES_K" default:"3"`
	DocumentK       int `envconfig:"RETRIEVAL_DOCUMENT_K" default:"3"`
	DocumentSources int `envconfig:"DOCUMENT_SOURCES_LIMIT" default:"5"`
	GuideK          int `envconfig:"RETRIEVAL_GUIDE_K" default:"5"`
	GuideSources    int `envconfig:"GUIDE_SOURCES_LIMIT" default:"3"`
	EmployeesK      int `envconfig:"RETRIEVAL_EMPLOYEES_K" default:"3"`
}

type HistoryConfig struct {
	Backend  string `envconfig:"HISTORY_BACKEND" default:"memory"`
	MaxTurns int    `envconfig:"HISTORY_MAX_TURNS" default:"100"`
	TTL      string `envconfig:"HISTORY_TTL" default:"24h"`
}

// ConversationDefaults is the base template every request state starts from.
type ConversationDefaults struct {
	ThreadID       string `envconfig:"DEFAULT_THREAD_ID" default:"default"`
	ProjectName    string `envconfig:"DEFAULT_PROJECT_NAME" default:"차세대 한국형 스마트팜 개발"`
	ProjectContext string `envconfig:"DEFAULT_PROJECT_CONTEXT" default:"스마트팜 기술개발 프로젝트"`
}

type ServerConfig struct {
	Addr           string   `envconfig:"HTTP_ADDR" default:":8000"`
	DownloadRoot   string   `envconfig:"DOWNLOAD_ROOT" default:"."`
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	ShutdownSec    int      `envconfig:"HTTP_SHUTDOWN_SEC" default:"10"`
}
