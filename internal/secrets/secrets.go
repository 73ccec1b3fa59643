// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and contact details from a directory of
// plain-text files. The filename is the key name and the trimmed contents
// are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/proxima/pkg/types"
)

// Key file names.
const (
	OpenAlexEmail   = "openalex-email"
	GeminiAPIKey    = "gemini-api-key"
	OpenAIAPIKey    = "openai-api-key"
	AnthropicAPIKey = "anthropic-api-key"
	EmbeddingAPIKey = "embedding-api-key"
)

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory
// yields empty Secrets. Unreadable and empty files are skipped; unreadable
// ones are logged.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Get returns the value of name and whether it was present.
func (s Secrets) Get(name string) (string, bool) {
	v, ok := s[name]
	return v, ok
}

func (s Secrets) OpenAlexEmail() (string, bool)   { return s.Get(OpenAlexEmail) }
func (s Secrets) GeminiAPIKey() (string, bool)    { return s.Get(GeminiAPIKey) }
func (s Secrets) OpenAIAPIKey() (string, bool)    { return s.Get(OpenAIAPIKey) }
func (s Secrets) AnthropicAPIKey() (string, bool) { return s.Get(AnthropicAPIKey) }

// LLMAPIKey returns the key for the given provider.
func (s Secrets) LLMAPIKey(p types.LLMProvider) (string, bool) {
	switch p {
	case types.LLMGoogleAI, "":
		return s.GeminiAPIKey()
	case types.LLMOpenAI:
		return s.OpenAIAPIKey()
	case types.LLMAnthropic:
		return s.AnthropicAPIKey()
	}
	return "", false
}

// Apply fills configuration values that are still empty. Values already set
// by file, environment, or flag are left alone.
func (s Secrets) Apply(cfg *types.Config) {
	if cfg.OpenAlex.Mailto == "" {
		if v, ok := s.OpenAlexEmail(); ok {
			cfg.OpenAlex.Mailto = v
		}
	}
	if cfg.LLM.APIKey == "" {
		if v, ok := s.LLMAPIKey(cfg.LLM.Provider); ok {
			cfg.LLM.APIKey = v
		}
	}
	if cfg.Embedding.APIKey == "" {
		if v, ok := s.Get(EmbeddingAPIKey); ok {
			cfg.Embedding.APIKey = v
		}
	}
}
