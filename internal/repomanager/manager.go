package repomanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pagesmith-deployment/internal/github"
	"pagesmith-deployment/internal/logger"
	"pagesmith-deployment/internal/models"

	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	indexFile   = "index.html"
	readmeFile  = "README.md"
	licenseFile = "LICENSE"
)

// RepoName derives the repository identifier for a (task, round) pair.
// It is a pure function of its inputs: retried and duplicate requests
// converge on the same repository.
func RepoName(task string, round int) string {
	return fmt.Sprintf("%s-round-%d", task, round)
}

// Manager maps (task, round) pairs to hosting repositories and drives
// publication and static-hosting activation.
type Manager struct {
	api github.API

	attempts    int
	backoffBase time.Duration
	backoffCap  time.Duration

	pollInterval time.Duration
	pollBudget   time.Duration

	// injectable for tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	logger *logrus.Entry
}

func NewManager(api github.API, attempts int, backoffBase, backoffCap, pollInterval, pollBudget time.Duration) *Manager {
	return &Manager{
		api:          api,
		attempts:     attempts,
		backoffBase:  backoffBase,
		backoffCap:   backoffCap,
		pollInterval: pollInterval,
		pollBudget:   pollBudget,
		now:          time.Now,
		sleep:        sleepCtx,
		logger:       logger.WithModule("repomanager"),
	}
}

// EnsureRepository looks up the deterministic repository for (task, round)
// and creates it only if absent. An existing repository is never deleted
// or recreated, which is what lands revisions in the correct place.
func (m *Manager) EnsureRepository(ctx context.Context, task string, round int) (*models.RepoState, error) {
	name := RepoName(task, round)

	var state *models.RepoState
	err := m.withRetry(ctx, func(ctx context.Context) error {
		found, err := m.api.FindRepo(ctx, name)
		if err == nil {
			state = found
			return nil
		}
		if !errors.Is(err, github.ErrNotFound) {
			return err
		}
		created, err := m.api.CreateRepo(ctx, name)
		if err != nil {
			return err
		}
		state = created
		return nil
	})
	if err != nil {
		return nil, &models.RepositoryError{Repo: name, Cause: err}
	}

	m.logger.WithFields(logrus.Fields{"repo": name, "task": task, "round": round}).Info("Repository ensured")
	return state, nil
}

// Publish uploads the artifact, README and license in one logical update
// and returns the resulting commit SHA. Content-identical publishes still
// produce a fresh commit.
func (m *Manager) Publish(ctx context.Context, state *models.RepoState, artifact *models.GeneratedArtifact) (string, error) {
	license := artifact.License
	if license == "" {
		license = MITLicense
	}

	// index.html goes last so the page only becomes reachable once every
	// file it references is already in place.
	files := []struct {
		path    string
		content string
	}{
		{readmeFile, artifact.Readme},
		{licenseFile, license},
	}
	for name, content := range artifact.AuxFiles {
		files = append(files, struct {
			path    string
			content string
		}{name, content})
	}
	files = append(files, struct {
		path    string
		content string
	}{indexFile, artifact.HTML})

	var commitSHA string
	for _, f := range files {
		var sha string
		err := m.withRetry(ctx, func(ctx context.Context) error {
			var err error
			sha, err = m.api.UpsertFile(ctx, state.Name, f.path, fmt.Sprintf("Publish %s", f.path), f.content)
			return err
		})
		if err != nil {
			return "", &models.RepositoryError{Repo: state.Name, Cause: fmt.Errorf("upload %s: %w", f.path, err)}
		}
		commitSHA = sha
	}

	state.LastCommitSHA = commitSHA
	m.logger.WithFields(logrus.Fields{"repo": state.Name, "commit": commitSHA}).Info("Artifact published")
	return commitSHA, nil
}

// ActivateHosting requests static-hosting activation and polls status on a
// fixed interval until active, failed, or the wall-clock budget runs out.
// A timeout is reported with ErrHostingTimeout and the last observed state;
// it is not fatal to the pipeline.
func (m *Manager) ActivateHosting(ctx context.Context, state *models.RepoState) (*models.RepoState, error) {
	if err := m.requestActivation(ctx, state.Name); err != nil {
		// Polling below can still observe an activation from an
		// earlier request, so a failed request is not terminal yet.
		m.logger.WithField("repo", state.Name).WithError(err).Warn("Activation request failed, polling anyway")
	}

	deadline := m.now().Add(m.pollBudget)
	state.Hosting = models.HostingPending

	for {
		status, err := m.api.GetHostingStatus(ctx, state.Name)
		if err == nil {
			state.Hosting = status
			switch status {
			case models.HostingActive:
				m.logger.WithField("repo", state.Name).Info("Hosting active")
				return state, nil
			case models.HostingFailed:
				m.logger.WithField("repo", state.Name).Error("Hosting activation failed")
				return state, nil
			case models.HostingInactive:
				// Previous activation request was lost; issue a
				// fresh one and keep polling.
				if err := m.requestActivation(ctx, state.Name); err != nil {
					m.logger.WithField("repo", state.Name).WithError(err).Warn("Re-activation request failed")
				}
				state.Hosting = models.HostingPending
			}
		} else {
			m.logger.WithField("repo", state.Name).WithError(err).Warn("Hosting status check failed")
		}

		if m.now().Add(m.pollInterval).After(deadline) {
			return state, models.ErrHostingTimeout
		}
		if err := m.sleep(ctx, m.pollInterval); err != nil {
			return state, err
		}
	}
}

// FetchArtifact loads a previously published round's artifact, used as
// grounding context for revisions. Transient provider failures are retried
// like every other repository operation; github.ErrNotFound passes through
// untouched so callers can distinguish a missing round from a provider
// outage.
func (m *Manager) FetchArtifact(ctx context.Context, task string, round int) (*models.GeneratedArtifact, error) {
	name := RepoName(task, round)

	err := m.withRetry(ctx, func(ctx context.Context) error {
		_, err := m.api.FindRepo(ctx, name)
		return err
	})
	if err != nil {
		return nil, m.fetchError(name, err)
	}

	var html string
	err = m.withRetry(ctx, func(ctx context.Context) error {
		var err error
		html, err = m.api.GetFile(ctx, name, indexFile)
		return err
	})
	if err != nil {
		return nil, m.fetchError(name, err)
	}

	var readme string
	err = m.withRetry(ctx, func(ctx context.Context) error {
		var err error
		readme, err = m.api.GetFile(ctx, name, readmeFile)
		return err
	})
	if err != nil && !errors.Is(err, github.ErrNotFound) {
		return nil, &models.RepositoryError{Repo: name, Cause: err}
	}

	return &models.GeneratedArtifact{HTML: html, Readme: readme}, nil
}

func (m *Manager) fetchError(name string, err error) error {
	if errors.Is(err, github.ErrNotFound) {
		return err
	}
	return &models.RepositoryError{Repo: name, Cause: err}
}

// requestActivation issues the activation request with its own backoff,
// separate from the status polling loop.
func (m *Manager) requestActivation(ctx context.Context, repo string) error {
	return m.withRetry(ctx, func(ctx context.Context) error {
		return m.api.EnableStaticHosting(ctx, repo)
	})
}

// withRetry retries transient provider failures with exponential backoff.
func (m *Manager) withRetry(ctx context.Context, f func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(m.attempts-1),
		retry.WithCappedDuration(m.backoffCap, retry.NewExponential(m.backoffBase)))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := f(ctx)
		if err != nil {
			var transient *github.TransientError
			if errors.As(err, &transient) {
				return retry.RetryableError(err)
			}
		}
		return err
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
