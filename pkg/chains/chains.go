// Package chains holds the prompt templates and the single-purpose LLM calls
// (graders, classifier, rewriters, summarizers and responders) used by the
// agent workflows.
package chains

import (
	"context"
	"fmt"
	"strings"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/llm/azureopenai"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/structuredoutput"
)

// Input is the conversational context shared by most chains
type Input struct {
	Query             string
	Username          string
	Timestamp         string
	EnterpriseContext string
	ImageContext      string
	History           []interfaces.Message
	Images            []interfaces.ImagePart
	WebSearch         bool
}

// profile is a sampling preset for one kind of call
type profile struct {
	temperature float64
	maxTokens   int
}

var (
	graderProfile     = profile{temperature: 0, maxTokens: 750}
	chatProfile       = profile{temperature: 0.15, maxTokens: 2000}
	helperProfile     = profile{temperature: 0, maxTokens: 2000}
	longHelperProfile = profile{temperature: 0.1, maxTokens: 10000}
	topicProfile      = profile{temperature: 0, maxTokens: 30}
)

func (p profile) options(extra ...interfaces.GenerateOption) []interfaces.GenerateOption {
	opts := []interfaces.GenerateOption{
		interfaces.WithTemperature(p.temperature),
		interfaces.WithMaxTokens(p.maxTokens),
	}
	return append(opts, extra...)
}

// Chains runs prompts against a chat model
type Chains struct {
	llm    interfaces.LLM
	vision interfaces.LLM
	logger logging.Logger
}

// Option configures Chains
type Option func(*Chains)

// WithLogger sets the logger
func WithLogger(logger logging.Logger) Option {
	return func(c *Chains) {
		c.logger = logger
	}
}

// WithVisionLLM uses a separate deployment for image understanding
func WithVisionLLM(llm interfaces.LLM) Option {
	return func(c *Chains) {
		c.vision = llm
	}
}

// New creates Chains on top of llm
func New(llm interfaces.LLM, options ...Option) *Chains {
	c := &Chains{
		llm:    llm,
		logger: logging.New(),
	}
	for _, option := range options {
		option(c)
	}
	if c.vision == nil {
		c.vision = llm
	}
	return c
}

// IsContentFiltered reports whether err is a provider content-policy rejection
func IsContentFiltered(err error) bool {
	return azureopenai.IsContentFiltered(err)
}

// text runs a plain text completion
func (c *Chains) text(ctx context.Context, p profile, system, human string, history []interfaces.Message) (string, error) {
	opts := p.options(interfaces.WithSystemMessage(system))
	if len(history) > 0 {
		opts = append(opts, interfaces.WithMessages(history))
	}
	out, err := c.llm.Generate(ctx, human, opts...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// structured runs a completion constrained to the schema of v and decodes it into v
func (c *Chains) structured(ctx context.Context, p profile, system, human string, history []interfaces.Message, format *interfaces.ResponseFormat, v interface{}) error {
	opts := p.options(
		interfaces.WithSystemMessage(system),
		interfaces.WithResponseFormat(*format),
	)
	if len(history) > 0 {
		opts = append(opts, interfaces.WithMessages(history))
	}
	out, err := c.llm.Generate(ctx, human, opts...)
	if err != nil {
		return err
	}
	if err := structuredoutput.Decode(format, out, v); err != nil {
		return fmt.Errorf("%s: %w", format.Name, err)
	}
	return nil
}
