package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"invoice-backend/pkg/ai"
	"invoice-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

// RuntimeConfig holds the LLM settings that can change without a restart
type RuntimeConfig struct {
	OpenAIAPIBase string `json:"openai_api_base"`
	OpenAIModel   string `json:"openai_model"`
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model"`
}

var (
	runtimeConfig     RuntimeConfig
	runtimeConfigLock sync.RWMutex
)

// InitRuntimeConfig initializes runtime config from static config
func InitRuntimeConfig(cfg *config.Config) {
	runtimeConfigLock.Lock()
	defer runtimeConfigLock.Unlock()
	runtimeConfig = RuntimeConfig{
		OpenAIAPIBase: cfg.OpenAIAPIBase,
		OpenAIModel:   cfg.OpenAIModel,
		OllamaBaseURL: cfg.OllamaBaseURL,
		OllamaModel:   cfg.OllamaModel,
	}
}

func currentRuntimeConfig() RuntimeConfig {
	runtimeConfigLock.RLock()
	defer runtimeConfigLock.RUnlock()
	return runtimeConfig
}

func GetRuntimeOpenAIBaseURL() string { return currentRuntimeConfig().OpenAIAPIBase }
func GetRuntimeOpenAIModel() string   { return currentRuntimeConfig().OpenAIModel }
func GetRuntimeOllamaBaseURL() string { return currentRuntimeConfig().OllamaBaseURL }
func GetRuntimeOllamaModel() string   { return currentRuntimeConfig().OllamaModel }

// UpdateLLMSettingsRequest changes only the fields that are set.
type UpdateLLMSettingsRequest struct {
	OpenAIAPIBase string `json:"openai_api_base"`
	OpenAIModel   string `json:"openai_model"`
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model"`
}

// GetLLMSettings returns the current LLM configuration
// GET /api/settings/llm
func GetLLMSettings(c *gin.Context) {
	c.JSON(http.StatusOK, currentRuntimeConfig())
}

// UpdateLLMSettings updates LLM configuration at runtime
// PUT /api/settings/llm
func UpdateLLMSettings(c *gin.Context) {
	var req UpdateLLMSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, u := range []string{req.OpenAIAPIBase, req.OllamaBaseURL} {
		if u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "base URL must start with http:// or https://"})
			return
		}
	}

	runtimeConfigLock.Lock()
	if req.OpenAIAPIBase != "" {
		runtimeConfig.OpenAIAPIBase = strings.TrimRight(req.OpenAIAPIBase, "/")
	}
	if req.OpenAIModel != "" {
		runtimeConfig.OpenAIModel = req.OpenAIModel
	}
	if req.OllamaBaseURL != "" {
		runtimeConfig.OllamaBaseURL = strings.TrimRight(req.OllamaBaseURL, "/")
	}
	if req.OllamaModel != "" {
		runtimeConfig.OllamaModel = req.OllamaModel
	}
	updated := runtimeConfig
	runtimeConfigLock.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"message":  "LLM settings updated successfully",
		"settings": updated,
	})
}

// PingOllama checks that the configured Ollama server answers
// POST /api/settings/llm/test
func PingOllama(c *gin.Context) {
	svc := ai.NewOllamaServiceWithGetters(GetRuntimeOllamaBaseURL, GetRuntimeOllamaModel, 5*time.Second)
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"connected": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "ollama_base_url": GetRuntimeOllamaBaseURL()})
}
