// Package workflow runs a fixed sequence of agent steps over the provider
// router, publishing progress through the event hub. Progress advances on
// real step completion, one step at a time.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgeworks/forge-coordinator/internal/events"
	"github.com/forgeworks/forge-coordinator/internal/router"
)

// TextRouter is the routing capability a runner needs
type TextRouter interface {
	Route(ctx context.Context, prompt, role string) (*router.Result, error)
}

// Notifier is the hub surface the runner publishes through
type Notifier interface {
	PublishAgentStatus(status events.AgentStatus)
	PublishWorkflowProgress(progress events.WorkflowProgress)
	PublishMessage(agentID, agentName, role, message, messageType string)
	PublishWorkflowCompleted(workflowID, name string, totalFiles, totalAgents int)
}

// Step is one agent stage in a workflow
type Step struct {
	ID        string `json:"step_id"`
	AgentRole string `json:"agent_role"`
	AgentName string `json:"agent_name"`
	Task      string `json:"task_description"`
}

// Workflow is one sequential run
type Workflow struct {
	ID           string    `json:"workflow_id"`
	Name         string    `json:"name"`
	Requirements string    `json:"requirements"`
	Steps        []Step    `json:"steps"`
	Status       string    `json:"status"`
	Completed    []string  `json:"completed_steps"`
	StartedAt    time.Time `json:"started_at,omitempty"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
}

// DefaultSteps is the standard delivery pipeline
func DefaultSteps() []Step {
	return []Step{
		{ID: "step_1", AgentRole: "product_manager", AgentName: "Sarah Chen", Task: "Define requirements and scope"},
		{ID: "step_2", AgentRole: "architect", AgentName: "Marcus Rodriguez", Task: "Design system architecture"},
		{ID: "step_3", AgentRole: "engineer", AgentName: "Alex Thompson", Task: "Implement core functionality"},
		{ID: "step_4", AgentRole: "qa_engineer", AgentName: "Chris Lee", Task: "Quality assurance testing"},
		{ID: "step_5", AgentRole: "technical_writer", AgentName: "Maria Garcia", Task: "Create documentation"},
	}
}

// Runner owns the workflow registry and drives step execution
type Runner struct {
	router TextRouter
	hub    Notifier
	logger *slog.Logger

	mu        sync.Mutex
	workflows map[string]*Workflow
}

// NewRunner creates a runner
func NewRunner(tr TextRouter, hub Notifier, logger *slog.Logger) *Runner {
	return &Runner{
		router:    tr,
		hub:       hub,
		logger:    logger,
		workflows: make(map[string]*Workflow),
	}
}

// Create registers a workflow with the default steps and announces it
func (r *Runner) Create(name, requirements string) *Workflow {
	wf := &Workflow{
		ID:           "workflow_" + uuid.NewString()[:8],
		Name:         name,
		Requirements: requirements,
		Steps:        DefaultSteps(),
		Status:       events.WorkflowCreated,
	}

	r.mu.Lock()
	r.workflows[wf.ID] = wf
	r.mu.Unlock()

	r.hub.PublishWorkflowProgress(events.WorkflowProgress{
		WorkflowID:     wf.ID,
		Name:           wf.Name,
		Status:         events.WorkflowCreated,
		CurrentStep:    0,
		TotalSteps:     len(wf.Steps),
		CompletedSteps: []string{},
		PendingSteps:   stepIDs(wf.Steps),
	})
	return wf
}

// Get returns a point-in-time copy of a workflow. The live record keeps
// changing while the workflow runs.
func (r *Runner) Get(id string) (Workflow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[id]
	if !ok {
		return Workflow{}, false
	}
	cp := *wf
	cp.Steps = append([]Step{}, wf.Steps...)
	cp.Completed = append([]string{}, wf.Completed...)
	return cp, true
}

// Start executes the workflow's steps in order, blocking until done. Callers
// wanting async execution run it in a goroutine.
func (r *Runner) Start(ctx context.Context, id string) error {
	r.mu.Lock()
	wf, ok := r.workflows[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("workflow %s not found", id)
	}
	wf.Status = events.WorkflowRunning
	wf.StartedAt = time.Now()
	r.mu.Unlock()

	handoff := ""
	for i, step := range wf.Steps {
		r.hub.PublishWorkflowProgress(events.WorkflowProgress{
			WorkflowID:     wf.ID,
			Name:           wf.Name,
			Status:         events.WorkflowRunning,
			CurrentStep:    i + 1,
			TotalSteps:     len(wf.Steps),
			CompletedSteps: append([]string{}, wf.Completed...),
			PendingSteps:   stepIDs(wf.Steps[i:]),
			CurrentAgent:   fmt.Sprintf("%s (%s)", step.AgentName, step.AgentRole),
		})

		result, err := r.runStep(ctx, wf, step, handoff)
		if err != nil {
			r.failed(wf, i, step, err)
			return err
		}
		handoff = result

		r.mu.Lock()
		wf.Completed = append(wf.Completed, step.ID)
		r.mu.Unlock()
	}

	r.mu.Lock()
	wf.Status = events.WorkflowCompleted
	wf.FinishedAt = time.Now()
	r.mu.Unlock()

	r.hub.PublishWorkflowProgress(events.WorkflowProgress{
		WorkflowID:     wf.ID,
		Name:           wf.Name,
		Status:         events.WorkflowCompleted,
		CurrentStep:    len(wf.Steps),
		TotalSteps:     len(wf.Steps),
		CompletedSteps: append([]string{}, wf.Completed...),
		PendingSteps:   []string{},
	})
	r.hub.PublishWorkflowCompleted(wf.ID, wf.Name, 0, len(wf.Steps))
	r.logger.Info("workflow completed", "workflow", wf.ID, "steps", len(wf.Steps))
	return nil
}

// runStep executes one agent step against the router
func (r *Runner) runStep(ctx context.Context, wf *Workflow, step Step, handoff string) (string, error) {
	r.hub.PublishAgentStatus(events.AgentStatus{
		AgentID:     step.ID,
		AgentName:   step.AgentName,
		Role:        step.AgentRole,
		Status:      events.AgentWorking,
		CurrentTask: step.Task,
		Progress:    0,
	})
	r.hub.PublishMessage(step.ID, step.AgentName, step.AgentRole, "Starting: "+step.Task, "start")

	prompt := fmt.Sprintf("%s\n\nProject requirements: %s", step.Task, wf.Requirements)
	if handoff != "" {
		prompt += "\n\nOutput from the previous stage:\n" + handoff
	}

	res, err := r.router.Route(ctx, prompt, step.AgentRole)
	if err != nil {
		return "", fmt.Errorf("step %s failed: %w", step.ID, err)
	}

	r.hub.PublishAgentStatus(events.AgentStatus{
		AgentID:     step.ID,
		AgentName:   step.AgentName,
		Role:        step.AgentRole,
		Status:      events.AgentCompleted,
		CurrentTask: step.Task,
		Progress:    100,
	})
	r.hub.PublishMessage(step.ID, step.AgentName, step.AgentRole, "Completed: "+step.Task, "complete")
	return res.Text, nil
}

// failed marks the workflow failed and publishes the terminal state
func (r *Runner) failed(wf *Workflow, stepIdx int, step Step, err error) {
	r.mu.Lock()
	wf.Status = events.WorkflowFailed
	wf.FinishedAt = time.Now()
	r.mu.Unlock()

	r.logger.Error("workflow step failed", "workflow", wf.ID, "step", step.ID, "error", err)

	r.hub.PublishAgentStatus(events.AgentStatus{
		AgentID:     step.ID,
		AgentName:   step.AgentName,
		Role:        step.AgentRole,
		Status:      events.AgentError,
		CurrentTask: step.Task,
		Progress:    0,
	})
	r.hub.PublishWorkflowProgress(events.WorkflowProgress{
		WorkflowID:     wf.ID,
		Name:           wf.Name,
		Status:         events.WorkflowFailed,
		CurrentStep:    stepIdx + 1,
		TotalSteps:     len(wf.Steps),
		CompletedSteps: append([]string{}, wf.Completed...),
		PendingSteps:   stepIDs(wf.Steps[stepIdx:]),
	})
}

func stepIDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}
