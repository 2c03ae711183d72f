package filegen

import (
	"context"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/llm/azureopenai"
	"github.com/tagus/enterprise-agents/pkg/logging"
)

// ImageTool generates an image from a prompt and stores it
type ImageTool struct {
	generator interfaces.ImageGenerator
	uploader  Uploader
	options   interfaces.ImageOptions
	logger    logging.Logger
}

// ImageOption configures an ImageTool
type ImageOption func(*ImageTool)

// WithImageOptions overrides size, quality and style
func WithImageOptions(opts interfaces.ImageOptions) ImageOption {
	return func(t *ImageTool) {
		t.options = opts
	}
}

// WithImageLogger sets the logger
func WithImageLogger(logger logging.Logger) ImageOption {
	return func(t *ImageTool) {
		t.logger = logger
	}
}

// NewImageTool creates an ImageTool
func NewImageTool(generator interfaces.ImageGenerator, uploader Uploader, opts ...ImageOption) *ImageTool {
	t := &ImageTool{
		generator: generator,
		uploader:  uploader,
		options:   interfaces.ImageOptions{Size: "1024x1024", Quality: "standard", Style: "vivid"},
		logger:    logging.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Generate creates the image and uploads it under the user's session
func (t *ImageTool) Generate(ctx context.Context, prompt, userID, sessionID string) Result {
	img, err := t.generator.GenerateImage(ctx, prompt, t.options)
	if err != nil {
		t.logger.Error(ctx, "Unable to generate image", map[string]interface{}{"error": err.Error()})
		if azureopenai.IsContentFiltered(err) {
			return failure(ImageRejectedMessage)
		}
		return failure(ImageFailedMessage)
	}

	blobURL, err := t.uploader.UploadUserImage(ctx, userID, sessionID, img.Base64)
	if err != nil {
		t.logger.Error(ctx, "Unable to upload image", map[string]interface{}{"error": err.Error()})
		return failure(ImageFailedMessage)
	}

	t.logger.Info(ctx, "Image generated successfully", map[string]interface{}{"blob_url": blobURL})
	res := success(blobURL)
	res.RevisedPrompt = img.RevisedPrompt
	return res
}
