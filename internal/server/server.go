package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/sleuth/internal/collab"
	"github.com/agenthands/sleuth/internal/config"
	"github.com/agenthands/sleuth/internal/core"
	"github.com/agenthands/sleuth/internal/core/memory"
	"github.com/agenthands/sleuth/internal/core/model"
	"github.com/agenthands/sleuth/internal/driver"
	"github.com/agenthands/sleuth/internal/llm"
	"github.com/agenthands/sleuth/internal/store"
)

type Server struct {
	Engine *core.Engine
}

func NewServer() *Server {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.toml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s: %v. Using built-in defaults", cfgPath, err)
		cfg = config.Default()
	}

	// Override config with env vars if present
	if envProvider := os.Getenv("LLM_PROVIDER"); envProvider != "" {
		cfg.LLM.Provider = envProvider
	}
	if envModel := os.Getenv("LLM_MODEL"); envModel != "" {
		cfg.LLM.Model = envModel
	}
	if envAPIKey := os.Getenv("LLM_API_KEY"); envAPIKey != "" {
		cfg.LLM.APIKey = envAPIKey
	}
	if envBaseURL := os.Getenv("LLM_BASE_URL"); envBaseURL != "" {
		cfg.LLM.BaseURL = envBaseURL
	}
	if envURI := os.Getenv("MEMGRAPH_URI"); envURI != "" {
		cfg.Memgraph.URI = envURI
		cfg.Memgraph.User = os.Getenv("MEMGRAPH_USER")
		cfg.Memgraph.Password = os.Getenv("MEMGRAPH_PASSWORD")
	}
	if envBackend := os.Getenv("STORAGE_BACKEND"); envBackend != "" {
		cfg.Storage.Backend = envBackend
	}
	if envPath := os.Getenv("STORAGE_PATH"); envPath != "" {
		cfg.Storage.Path = envPath
	}

	var caseStore store.CaseStore
	switch cfg.Storage.Backend {
	case "badger":
		caseStore, err = store.OpenBadger(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("Failed to open badger store: %v", err)
		}
	default:
		caseStore = store.NewMemStore()
	}

	// The LLM collaborator is optional: without one, classification falls
	// back to heuristics and consolidation to truncation.
	var llmClient llm.LLMClient
	if cfg.LLM.Provider != "" {
		llmClient, err = llm.NewClient(context.Background(), cfg.LLM)
		if err != nil {
			log.Fatalf("Failed to initialize LLM client: %v", err)
		}
	}

	// The graph is optional too: insights are persisted when available.
	var graph driver.GraphDriver
	if cfg.Memgraph.URI != "" {
		d, err := driver.NewMemgraphDriver(cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			log.Fatalf("Failed to connect to Memgraph: %v", err)
		}
		if err := d.BuildIndices(context.Background()); err != nil {
			log.Printf("Failed to build graph indices: %v", err)
		}
		graph = d
	}

	mem := memory.NewManager(cfg.Memory, collab.NewSummarizer(llmClient, cfg.Prompts), graph)
	classifier := collab.NewClassifier(llmClient, cfg.Prompts)

	return &Server{
		Engine: core.NewEngine(cfg, caseStore, classifier, mem),
	}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/cases", s.CreateCase)
	r.GET("/cases/:id", s.GetCase)
	r.POST("/cases/:id/turns", s.SubmitTurn)
	r.POST("/cases/:id/close", s.CloseCase)
	r.POST("/cases/:id/reopen", s.ReopenCase)
	r.GET("/cases/:id/memory", s.Recall)

	return r
}

type CreateCaseRequest struct {
	Owner string `json:"owner"`
}

func (s *Server) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner is required"})
		return
	}

	created, err := s.Engine.OpenCase(c.Request.Context(), req.Owner)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) GetCase(c *gin.Context) {
	state, err := s.Engine.GetState(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) SubmitTurn(c *gin.Context) {
	var in model.TurnInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	res, err := s.Engine.SubmitTurn(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		// A rejected turn still carries the last committed state.
		if res != nil && errors.Is(err, model.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, res)
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) CloseCase(c *gin.Context) {
	if err := s.Engine.CloseCase(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

func (s *Server) ReopenCase(c *gin.Context) {
	if err := s.Engine.Reopen(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reopened"})
}

func (s *Server) Recall(c *gin.Context) {
	seq, err := s.Engine.Recall(c.Request.Context(), c.Param("id"), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}

	entries := []model.MemoryEntry{}
	for entry := range seq {
		entries = append(entries, entry)
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidTransition), errors.Is(err, core.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrStorageUnavailable):
		log.Printf("storage failure: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		log.Printf("unhandled error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
