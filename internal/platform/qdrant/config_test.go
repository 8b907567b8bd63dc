package qdrant

import (
	"errors"
	"testing"
)

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name     string
		cfg      Config
		wantCode ConfigErrorCode
	}{
		{
			name: "valid",
			cfg:  Config{URL: "http://qdrant:6333", Collection: "guildmind", VectorDim: 1536},
		},
		{
			name:     "missing url",
			cfg:      Config{Collection: "guildmind", VectorDim: 1536},
			wantCode: ConfigErrorMissingURL,
		},
		{
			name:     "relative url",
			cfg:      Config{URL: "qdrant:6333", Collection: "guildmind", VectorDim: 1536},
			wantCode: ConfigErrorInvalidURL,
		},
		{
			name:     "missing collection",
			cfg:      Config{URL: "http://qdrant:6333", VectorDim: 1536},
			wantCode: ConfigErrorMissingCollection,
		},
		{
			name:     "missing dim",
			cfg:      Config{URL: "http://qdrant:6333", Collection: "guildmind"},
			wantCode: ConfigErrorMissingVectorDim,
		},
		{
			name:     "negative dim",
			cfg:      Config{URL: "http://qdrant:6333", Collection: "guildmind", VectorDim: -4},
			wantCode: ConfigErrorInvalidVectorDim,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateConfig(c.cfg, true)
			if c.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Code != c.wantCode {
				t.Fatalf("got code=%s want=%s", ce.Code, c.wantCode)
			}
		})
	}
}

func TestResolveConfigFromEnvDefaultsCollection(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://localhost:6333")
	t.Setenv("QDRANT_COLLECTION", "")
	t.Setenv("VECTOR_DIM", "768")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Collection != "guildmind" {
		t.Fatalf("default collection: got %q", cfg.Collection)
	}
	if cfg.VectorDim != 768 {
		t.Fatalf("vector dim: got %d", cfg.VectorDim)
	}
}
