package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/guildmind-backend/internal/pkg/ctxutil"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/openai"
)

const captionSystemPrompt = "You describe images for a searchable chat archive. " +
	"Summarize what the image shows in a few factual sentences: subjects, any visible text, " +
	"diagrams or screenshots and what they depict. No speculation beyond what is visible."

// Captioner turns an image into searchable text via the vision
// collaborator. The description becomes the image's single document
// chunk.
type Captioner interface {
	DescribeImage(ctx context.Context, imageURL string) (string, error)
}

type captioner struct {
	log    *logger.Logger
	openai openai.Client
}

func NewCaptioner(log *logger.Logger, client openai.Client) (Captioner, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		return nil, fmt.Errorf("openai client required")
	}
	return &captioner{
		log:    log.With("service", "Captioner"),
		openai: client,
	}, nil
}

func (c *captioner) DescribeImage(ctx context.Context, imageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctxutil.Default(ctx), 60*time.Second)
	defer cancel()

	text, err := c.openai.GenerateTextWithImages(ctx, captionSystemPrompt,
		"Describe this image for retrieval.",
		[]openai.ImageInput{{ImageURL: imageURL, Detail: "low"}},
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
