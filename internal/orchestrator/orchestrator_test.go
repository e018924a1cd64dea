package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"pagesmith-deployment/internal/attachments"
	"pagesmith-deployment/internal/github"
	"pagesmith-deployment/internal/models"
)

type fakeGenerator struct {
	artifact  *models.GeneratedArtifact
	err       error
	lastPrior *models.GeneratedArtifact
	lastBrief string
	calls     int
}

func (g *fakeGenerator) Generate(ctx context.Context, brief string, checks []string, summaries []string, prior *models.GeneratedArtifact) (*models.GeneratedArtifact, error) {
	g.calls++
	g.lastBrief = brief
	g.lastPrior = prior
	return g.artifact, g.err
}

type fakeRepoManager struct {
	repos map[string]*models.GeneratedArtifact

	hostingResult models.HostingStatus
	hostingErr    error

	ensureCalls  []string
	publishCalls []string
	commits      int
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		repos:         map[string]*models.GeneratedArtifact{},
		hostingResult: models.HostingActive,
	}
}

func repoName(task string, round int) string {
	return fmt.Sprintf("%s-round-%d", task, round)
}

func (r *fakeRepoManager) EnsureRepository(ctx context.Context, task string, round int) (*models.RepoState, error) {
	name := repoName(task, round)
	r.ensureCalls = append(r.ensureCalls, name)
	if _, ok := r.repos[name]; !ok {
		r.repos[name] = nil
	}
	return &models.RepoState{
		Name:     name,
		Exists:   true,
		HTMLURL:  "https://github.com/octo/" + name,
		PagesURL: "https://octo.github.io/" + name + "/",
	}, nil
}

func (r *fakeRepoManager) Publish(ctx context.Context, state *models.RepoState, artifact *models.GeneratedArtifact) (string, error) {
	r.publishCalls = append(r.publishCalls, state.Name)
	r.repos[state.Name] = artifact
	r.commits++
	return fmt.Sprintf("commit-%d", r.commits), nil
}

func (r *fakeRepoManager) ActivateHosting(ctx context.Context, state *models.RepoState) (*models.RepoState, error) {
	state.Hosting = r.hostingResult
	return state, r.hostingErr
}

func (r *fakeRepoManager) FetchArtifact(ctx context.Context, task string, round int) (*models.GeneratedArtifact, error) {
	artifact, ok := r.repos[repoName(task, round)]
	if !ok || artifact == nil {
		return nil, github.ErrNotFound
	}
	return artifact, nil
}

type fakeNotifier struct {
	payloads  []*models.ResultPayload
	delivered bool
}

func (n *fakeNotifier) Notify(ctx context.Context, evaluationURL string, payload *models.ResultPayload) *models.NotificationResult {
	n.payloads = append(n.payloads, payload)
	return &models.NotificationResult{Attempts: 1, StatusCode: 200, Delivered: n.delivered}
}

func newTestOrchestrator(gen *fakeGenerator, repos *fakeRepoManager, notif *fakeNotifier) *Orchestrator {
	return New(attachments.NewResolver(), gen, repos, notif)
}

func TestRoundOneBuildSucceeds(t *testing.T) {
	gen := &fakeGenerator{artifact: &models.GeneratedArtifact{HTML: "<html>calc</html>", Readme: "calc"}}
	repos := newFakeRepoManager()
	notif := &fakeNotifier{delivered: true}
	o := newTestOrchestrator(gen, repos, notif)

	req := &models.DeploymentRequest{
		Task:          "calc-1",
		Round:         1,
		Brief:         "simple calculator",
		EvaluationURL: "https://example.com/notify",
	}
	result, notifResult := o.Run(context.Background(), req)

	if result.Status != "success" {
		t.Fatalf("Status = %q: %s", result.Status, result.Message)
	}
	if !result.HostingConfirmed {
		t.Error("hosting should be confirmed")
	}
	if result.RepoURL != "https://github.com/octo/calc-1-round-1" {
		t.Errorf("RepoURL = %q", result.RepoURL)
	}
	if result.CommitSHA == "" {
		t.Error("expected a commit SHA")
	}
	if len(repos.ensureCalls) != 1 || repos.ensureCalls[0] != "calc-1-round-1" {
		t.Errorf("ensureCalls = %v", repos.ensureCalls)
	}
	if len(notif.payloads) != 1 {
		t.Errorf("notifications = %d, want 1", len(notif.payloads))
	}
	if notifResult == nil || !notifResult.Delivered {
		t.Error("notification result should report delivery")
	}
	if gen.lastPrior != nil {
		t.Error("round 1 must not carry revision context")
	}
}

func TestRevisionUsesPriorRoundAsContext(t *testing.T) {
	gen := &fakeGenerator{artifact: &models.GeneratedArtifact{HTML: "<html>v2</html>", Readme: "v2"}}
	repos := newFakeRepoManager()
	repos.repos["calc-1-round-1"] = &models.GeneratedArtifact{HTML: "<html>v1 source</html>", Readme: "v1"}
	notif := &fakeNotifier{delivered: true}
	o := newTestOrchestrator(gen, repos, notif)

	req := &models.DeploymentRequest{Task: "calc-1", Round: 2, Brief: "add scientific mode"}
	result, _ := o.Run(context.Background(), req)

	if result.Status != "success" {
		t.Fatalf("Status = %q: %s", result.Status, result.Message)
	}
	if gen.lastPrior == nil || gen.lastPrior.HTML != "<html>v1 source</html>" {
		t.Errorf("generation context should include round-1 source, got %+v", gen.lastPrior)
	}
	if len(repos.publishCalls) != 1 || repos.publishCalls[0] != "calc-1-round-2" {
		t.Errorf("publish should target the round-2 repository, got %v", repos.publishCalls)
	}
	if artifact := repos.repos["calc-1-round-1"]; artifact.HTML != "<html>v1 source</html>" {
		t.Error("round-1 repository must not be mutated by a revision")
	}
}

func TestRevisionWithoutPriorRoundIsRevisionError(t *testing.T) {
	gen := &fakeGenerator{artifact: &models.GeneratedArtifact{HTML: "<html></html>"}}
	repos := newFakeRepoManager()
	notif := &fakeNotifier{delivered: true}
	o := newTestOrchestrator(gen, repos, notif)

	req := &models.DeploymentRequest{
		Task:          "calc-1",
		Round:         2,
		Brief:         "revise",
		EvaluationURL: "https://example.com/notify",
	}
	result, _ := o.Run(context.Background(), req)

	if result.Status != "error" {
		t.Fatalf("Status = %q", result.Status)
	}
	if result.ErrorKind != "RevisionError" {
		t.Errorf("ErrorKind = %q, want RevisionError", result.ErrorKind)
	}
	if result.Step != models.StepRevisionCtx {
		t.Errorf("Step = %q", result.Step)
	}
	if gen.calls != 0 {
		t.Error("generation must not run without revision context")
	}
	if len(repos.ensureCalls) != 0 || len(repos.publishCalls) != 0 {
		t.Error("no repository may be created or mutated on a RevisionError")
	}
	if len(notif.payloads) != 1 {
		t.Error("failure should still be notified best-effort")
	}
}

func TestGenerationFailureIsNotifiedAndFatal(t *testing.T) {
	gen := &fakeGenerator{err: &models.GenerationError{Cause: errors.New("both providers exhausted")}}
	repos := newFakeRepoManager()
	notif := &fakeNotifier{delivered: true}
	o := newTestOrchestrator(gen, repos, notif)

	req := &models.DeploymentRequest{
		Task:          "calc-1",
		Round:         1,
		Brief:         "calculator",
		EvaluationURL: "https://example.com/notify",
	}
	result, _ := o.Run(context.Background(), req)

	if result.Status != "error" {
		t.Fatalf("Status = %q", result.Status)
	}
	if result.ErrorKind != "GenerationError" {
		t.Errorf("ErrorKind = %q", result.ErrorKind)
	}
	if result.Step != models.StepGeneration {
		t.Errorf("Step = %q", result.Step)
	}
	if len(repos.ensureCalls) != 0 {
		t.Error("no repository may be created after a generation failure")
	}
	if len(notif.payloads) != 1 {
		t.Error("failure should be notified")
	}
	if notif.payloads[0].Step != models.StepGeneration {
		t.Errorf("notified step = %q", notif.payloads[0].Step)
	}
}

func TestHostingTimeoutStillSucceeds(t *testing.T) {
	gen := &fakeGenerator{artifact: &models.GeneratedArtifact{HTML: "<html></html>", Readme: "r"}}
	repos := newFakeRepoManager()
	repos.hostingResult = models.HostingPending
	repos.hostingErr = models.ErrHostingTimeout
	notif := &fakeNotifier{delivered: true}
	o := newTestOrchestrator(gen, repos, notif)

	req := &models.DeploymentRequest{
		Task:          "calc-1",
		Round:         1,
		Brief:         "calculator",
		EvaluationURL: "https://example.com/notify",
	}
	result, _ := o.Run(context.Background(), req)

	if result.Status != "success" {
		t.Fatalf("Status = %q: hosting timeout must not fail the request", result.Status)
	}
	if result.HostingConfirmed {
		t.Error("hosting must be reported as unconfirmed")
	}
	if !strings.Contains(result.Message, "not yet confirmed") {
		t.Errorf("Message = %q, want hosting-not-confirmed annotation", result.Message)
	}
}

func TestExhaustedNotificationDoesNotFailRequest(t *testing.T) {
	gen := &fakeGenerator{artifact: &models.GeneratedArtifact{HTML: "<html></html>", Readme: "r"}}
	repos := newFakeRepoManager()
	notif := &fakeNotifier{delivered: false}
	o := newTestOrchestrator(gen, repos, notif)

	req := &models.DeploymentRequest{
		Task:          "calc-1",
		Round:         1,
		Brief:         "calculator",
		EvaluationURL: "https://example.com/notify",
	}
	result, notifResult := o.Run(context.Background(), req)

	if result.Status != "success" {
		t.Fatalf("Status = %q", result.Status)
	}
	if notifResult == nil || notifResult.Delivered {
		t.Error("notification result should report the failed delivery")
	}
}

func TestNoEvaluationURLSkipsNotification(t *testing.T) {
	gen := &fakeGenerator{artifact: &models.GeneratedArtifact{HTML: "<html></html>", Readme: "r"}}
	repos := newFakeRepoManager()
	notif := &fakeNotifier{delivered: true}
	o := newTestOrchestrator(gen, repos, notif)

	req := &models.DeploymentRequest{Task: "calc-1", Round: 1, Brief: "calculator"}
	result, notifResult := o.Run(context.Background(), req)

	if result.Status != "success" {
		t.Fatalf("Status = %q", result.Status)
	}
	if notifResult != nil {
		t.Error("no notification result expected without an evaluation URL")
	}
	if len(notif.payloads) != 0 {
		t.Error("notifier must not be called without an evaluation URL")
	}
}
