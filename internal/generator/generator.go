package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pagesmith-deployment/internal/llm"
	"pagesmith-deployment/internal/logger"
	"pagesmith-deployment/internal/models"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// Generator produces one round's artifact from a brief. It retries the
// primary provider with exponential backoff before trying the fallback.
type Generator struct {
	primary  llm.Provider
	fallback llm.Provider

	attempts    int
	backoffBase time.Duration
	backoffCap  time.Duration

	logger *logrus.Entry
}

// New creates a generator. fallback may be nil when no secondary provider
// is configured.
func New(primary, fallback llm.Provider, attempts int, backoffBase, backoffCap time.Duration) *Generator {
	return &Generator{
		primary:     primary,
		fallback:    fallback,
		attempts:    attempts,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
		logger:      logger.WithModule("generator"),
	}
}

// Generate builds the prompt and runs the provider chain. prior is the
// previous round's artifact when revising, nil on the initial build.
func (g *Generator) Generate(ctx context.Context, brief string, checks []string, attachmentSummaries []string, prior *models.GeneratedArtifact) (*models.GeneratedArtifact, error) {
	prompt := buildPrompt(brief, checks, attachmentSummaries, prior)

	attemptsPerProvider := map[string]int{}
	providers := []llm.Provider{g.primary}
	if g.fallback != nil {
		providers = append(providers, g.fallback)
	}

	var lastErr error
	for _, provider := range providers {
		artifact, attempts, err := g.generateWith(ctx, provider, prompt)
		attemptsPerProvider[provider.Name()] = attempts
		if err == nil {
			return artifact, nil
		}
		lastErr = err
		g.logger.WithFields(logrus.Fields{
			"provider": provider.Name(),
			"attempts": attempts,
		}).WithError(err).Warn("Provider exhausted")
	}

	return nil, &models.GenerationError{Cause: lastErr, AttemptsPerProvider: attemptsPerProvider}
}

// generateWith runs one provider: transport failures retry with backoff up
// to the attempt budget, a parse failure gets exactly one fresh completion
// before the provider is considered exhausted.
func (g *Generator) generateWith(ctx context.Context, provider llm.Provider, prompt string) (*models.GeneratedArtifact, int, error) {
	attempts := 0

	completeOnce := func() (string, error) {
		var output string
		backoff := retry.WithMaxRetries(uint64(g.attempts-1),
			retry.WithCappedDuration(g.backoffCap, retry.NewExponential(g.backoffBase)))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			attempts++
			text, err := provider.Complete(ctx, prompt)
			if err != nil {
				var transient *llm.TransientError
				if errors.As(err, &transient) {
					return retry.RetryableError(err)
				}
				return err
			}
			output = text
			return nil
		})
		return output, err
	}

	output, err := completeOnce()
	if err != nil {
		return nil, attempts, err
	}

	artifact, err := parseArtifact(output)
	if err != nil {
		g.logger.WithField("provider", provider.Name()).WithError(err).Warn("Unparsable completion, retrying once")
		output, err = completeOnce()
		if err != nil {
			return nil, attempts, err
		}
		artifact, err = parseArtifact(output)
		if err != nil {
			return nil, attempts, err
		}
	}

	return artifact, attempts, nil
}

const (
	htmlMarker   = "===INDEX.HTML==="
	readmeMarker = "===README.MD==="
)

func buildPrompt(brief string, checks []string, attachmentSummaries []string, prior *models.GeneratedArtifact) string {
	var b strings.Builder

	b.WriteString("You are building a single-page web application that will be served as a static index.html file.\n\n")
	if prior != nil {
		b.WriteString("This is a revision of an existing application. Current source:\n\n")
		b.WriteString(prior.HTML)
		b.WriteString("\n\nApply the following revision request to the application above:\n")
	} else {
		b.WriteString("Build request:\n")
	}
	b.WriteString(brief)
	b.WriteString("\n")

	if len(checks) > 0 {
		b.WriteString("\nThe application must satisfy these acceptance criteria:\n")
		for i, check := range checks {
			fmt.Fprintf(&b, "%d. %s\n", i+1, check)
		}
	}

	for _, summary := range attachmentSummaries {
		b.WriteString("\n")
		b.WriteString(summary)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nRespond with exactly two sections. The line %s followed by the complete index.html, then the line %s followed by a README describing the application. No other text.\n", htmlMarker, readmeMarker)

	return b.String()
}

// parseArtifact splits a completion into its artifact fields. Missing or
// empty sections mean the output was malformed or truncated.
func parseArtifact(output string) (*models.GeneratedArtifact, error) {
	htmlIdx := strings.Index(output, htmlMarker)
	readmeIdx := strings.Index(output, readmeMarker)
	if htmlIdx < 0 || readmeIdx < 0 || readmeIdx < htmlIdx {
		return nil, fmt.Errorf("completion missing artifact markers")
	}

	html := strings.TrimSpace(output[htmlIdx+len(htmlMarker) : readmeIdx])
	readme := strings.TrimSpace(output[readmeIdx+len(readmeMarker):])

	html = stripCodeFence(html)
	readme = stripCodeFence(readme)

	if html == "" {
		return nil, fmt.Errorf("completion produced empty source")
	}
	if readme == "" {
		readme = "Generated single-page application."
	}

	return &models.GeneratedArtifact{HTML: html, Readme: readme}, nil
}

// stripCodeFence removes a surrounding markdown fence that models often
// add despite instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}
