package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"labelscan-backend/internal/analyses"
	"labelscan-backend/internal/llm"
	"labelscan-backend/internal/llm/openai"
	"labelscan-backend/internal/ocr"
	"labelscan-backend/internal/preprocess"
	"labelscan-backend/internal/rules"
	"labelscan-backend/internal/shared/config"
	"labelscan-backend/internal/shared/server/middleware"
	"labelscan-backend/internal/shared/server/respond"
	"labelscan-backend/internal/shared/storage/db"
	localstore "labelscan-backend/internal/shared/storage/object/local"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	// Dependencies
	store := localstore.New(filepath.Join(cfg.DataDir, "images"))
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var repo analyses.Repo
	if sqlDB != nil {
		repo = &analyses.PGRepo{DB: sqlDB}
	} else {
		repo = analyses.NewMemoryRepo()
	}

	svc := &analyses.Service{
		Repo:       repo,
		Store:      store,
		Pre:        preprocess.New(preprocessConfig(cfg.Preprocess)),
		OCR:        buildOCR(cfg.OCR),
		Rules:      rules.NewEngine(cfg.RulesPath),
		LLM:        buildLLM(cfg.LLM),
		MinTextLen: cfg.OCR.MinTextLen,
		MaxTextLen: cfg.OCR.MaxTextLen,
	}
	handler := analyses.NewHandler(svc, store, cfg.MaxUploadBytes)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	handler.RegisterRoutes(api)

	return r
}

func preprocessConfig(cfg config.PreprocessConfig) preprocess.Config {
	return preprocess.Config{
		Enabled:           cfg.Enabled,
		MinWidth:          cfg.MinWidth,
		MaxWidth:          cfg.MaxWidth,
		CLAHE:             cfg.CLAHE,
		Denoise:           cfg.Denoise,
		Sharpen:           cfg.Sharpen,
		AdaptiveThreshold: cfg.AdaptiveThreshold,
		Close:             cfg.Close,
		Deskew:            cfg.Deskew,
	}
}

func buildOCR(cfg config.OCRConfig) ocr.Provider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if cfg.Provider == "remote" {
		remote, err := ocr.NewRemote(cfg.RemoteURL, timeout)
		if err != nil {
			log.Printf("remote ocr misconfigured, falling back to tesseract: %v", err)
		} else {
			return remote
		}
	}
	return ocr.NewTesseract(cfg.Language, cfg.PageSegMode, timeout)
}

func buildLLM(cfg config.LLMConfig) llm.Client {
	client, err := openai.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, time.Duration(cfg.TimeoutSeconds)*time.Second)
	if err != nil {
		log.Printf("llm not configured: %v", err)
		return llm.PlaceholderClient{}
	}
	return client
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
