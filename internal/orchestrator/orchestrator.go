package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"pagesmith-deployment/internal/github"
	"pagesmith-deployment/internal/logger"
	"pagesmith-deployment/internal/models"

	"github.com/sirupsen/logrus"
)

// State names for the build/revise pipeline. Errored is an absorbing state
// reachable from every step.
type State string

const (
	StateReceived            State = "received"
	StateAttachmentsResolved State = "attachments_resolved"
	StateRevisionCtxFetched  State = "revision_context_fetched"
	StateGenerated           State = "generated"
	StatePublished           State = "published"
	StateHostingResolved     State = "hosting_resolved"
	StateNotified            State = "notified"
	StateDone                State = "done"
	StateErrored             State = "errored"
)

// Resolver normalizes attachments and renders prompt summaries.
type Resolver interface {
	Resolve(refs []models.AttachmentRef) []models.AttachmentRef
	Summaries(refs []models.AttachmentRef) []string
}

// Generator produces one round's artifact.
type Generator interface {
	Generate(ctx context.Context, brief string, checks []string, attachmentSummaries []string, prior *models.GeneratedArtifact) (*models.GeneratedArtifact, error)
}

// RepoManager drives the hosting repository for a (task, round) pair.
type RepoManager interface {
	EnsureRepository(ctx context.Context, task string, round int) (*models.RepoState, error)
	Publish(ctx context.Context, state *models.RepoState, artifact *models.GeneratedArtifact) (string, error)
	ActivateHosting(ctx context.Context, state *models.RepoState) (*models.RepoState, error)
	FetchArtifact(ctx context.Context, task string, round int) (*models.GeneratedArtifact, error)
}

// Notifier delivers the result payload to the caller's evaluation URL.
type Notifier interface {
	Notify(ctx context.Context, evaluationURL string, payload *models.ResultPayload) *models.NotificationResult
}

// Orchestrator sequences the pipeline and holds the build/revise state
// machine. One Run call processes one request start to finish; concurrent
// Runs share no mutable state.
type Orchestrator struct {
	resolver Resolver
	gen      Generator
	repos    RepoManager
	notifier Notifier
	logger   *logrus.Entry
}

func New(resolver Resolver, gen Generator, repos RepoManager, notifier Notifier) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		gen:      gen,
		repos:    repos,
		notifier: notifier,
		logger:   logger.WithModule("orchestrator"),
	}
}

// Run executes the pipeline to a terminal state. The returned payload is
// always non-nil; the NotificationResult reports callback delivery and is
// nil when the request carried no evaluation URL.
func (o *Orchestrator) Run(ctx context.Context, req *models.DeploymentRequest) (*models.ResultPayload, *models.NotificationResult) {
	log := o.logger.WithFields(logrus.Fields{"task": req.Task, "round": req.Round})
	o.transition(log, StateReceived)

	// Received -> AttachmentsResolved. Unsupported attachments are flagged,
	// never fatal.
	refs := o.resolver.Resolve(req.Attachments)
	summaries := o.resolver.Summaries(refs)
	o.transition(log, StateAttachmentsResolved)

	// Round 1 skips revision context. A round >= 2 without a prior round
	// is a caller-input problem, not a provider outage.
	var prior *models.GeneratedArtifact
	if req.Round >= 2 {
		var err error
		prior, err = o.repos.FetchArtifact(ctx, req.Task, req.Round-1)
		if err != nil {
			if errors.Is(err, github.ErrNotFound) {
				err = &models.RevisionError{Task: req.Task, Round: req.Round}
			}
			return o.errored(ctx, log, req, models.StepRevisionCtx, err)
		}
		o.transition(log, StateRevisionCtxFetched)
	}

	artifact, err := o.gen.Generate(ctx, req.Brief, req.Checks, summaries, prior)
	if err != nil {
		return o.errored(ctx, log, req, models.StepGeneration, err)
	}
	o.transition(log, StateGenerated)

	state, err := o.repos.EnsureRepository(ctx, req.Task, req.Round)
	if err != nil {
		return o.errored(ctx, log, req, models.StepRepository, err)
	}

	commitSHA, err := o.repos.Publish(ctx, state, artifact)
	if err != nil {
		return o.errored(ctx, log, req, models.StepPublish, err)
	}
	o.transition(log, StatePublished)

	state, hostErr := o.repos.ActivateHosting(ctx, state)
	if hostErr != nil && !errors.Is(hostErr, models.ErrHostingTimeout) {
		return o.errored(ctx, log, req, models.StepHosting, hostErr)
	}
	o.transition(log, StateHostingResolved)

	payload := &models.ResultPayload{
		Status:           "success",
		Task:             req.Task,
		Round:            req.Round,
		Nonce:            req.Nonce,
		RepoURL:          state.HTMLURL,
		PagesURL:         state.PagesURL,
		CommitSHA:        commitSHA,
		HostingConfirmed: state.Hosting == models.HostingActive,
	}
	switch {
	case errors.Is(hostErr, models.ErrHostingTimeout):
		payload.Message = "deployed; hosting activation not yet confirmed within budget"
	case state.Hosting != models.HostingActive:
		payload.Message = fmt.Sprintf("deployed; hosting status %s", state.Hosting)
	default:
		payload.Message = "deployed"
	}

	notifResult := o.notify(ctx, log, req, payload)
	o.transition(log, StateNotified)

	o.transition(log, StateDone)
	return payload, notifResult
}

// errored builds the terminal error payload and attempts a best-effort
// failure notification before returning.
func (o *Orchestrator) errored(ctx context.Context, log *logrus.Entry, req *models.DeploymentRequest, step string, err error) (*models.ResultPayload, *models.NotificationResult) {
	log.WithFields(logrus.Fields{"step": step, "error_kind": models.ErrorKind(err)}).WithError(err).Error("Pipeline errored")

	payload := &models.ResultPayload{
		Status:    "error",
		Message:   err.Error(),
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		Step:      step,
		ErrorKind: models.ErrorKind(err),
	}

	notifResult := o.notify(ctx, log, req, payload)
	o.transition(log, StateErrored)
	return payload, notifResult
}

func (o *Orchestrator) notify(ctx context.Context, log *logrus.Entry, req *models.DeploymentRequest, payload *models.ResultPayload) *models.NotificationResult {
	if req.EvaluationURL == "" {
		return nil
	}
	result := o.notifier.Notify(ctx, req.EvaluationURL, payload)
	if !result.Delivered {
		log.WithField("attempts", result.Attempts).Warn("Result notification not delivered")
	}
	return result
}

func (o *Orchestrator) transition(log *logrus.Entry, state State) {
	log.WithField("state", state).Debug("Pipeline transition")
}
