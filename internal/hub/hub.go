// Package hub fans structured progress events out to live observers and
// replays a consistent state snapshot to observers that connect mid-session.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/forgeworks/forge-coordinator/internal/events"
	"github.com/forgeworks/forge-coordinator/internal/metrics"
)

// Observer is one connected subscriber. Send must be safe for sequential
// calls from the hub; a failing Send gets the observer removed.
type Observer interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

// Mirror receives a copy of every fanned-out frame, e.g. a Redis stream.
// Implementations must not block.
type Mirror interface {
	Publish(frameType string, frame []byte)
}

// Hub owns the connection registry and the last-write-wins state store.
// All mutation and fan-out is serialized on one mutex: a producer issuing
// updates in order is observed in order, and a connecting observer gets its
// snapshot before any later frame.
type Hub struct {
	mu        sync.Mutex
	observers map[string]Observer
	agents    map[string]events.AgentStatus
	workflows map[string]events.WorkflowProgress
	mirror    Mirror
	logger    *slog.Logger
}

// Option configures a Hub
type Option func(*Hub)

// WithMirror attaches a secondary event sink
func WithMirror(m Mirror) Option {
	return func(h *Hub) { h.mirror = m }
}

// New creates an empty hub
func New(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		observers: make(map[string]Observer),
		agents:    make(map[string]events.AgentStatus),
		workflows: make(map[string]events.WorkflowProgress),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect registers an observer and delivers the current-state snapshot.
// The snapshot and registration are atomic with respect to publishes, so the
// observer sees every record once: in the snapshot or as a later frame,
// never out of order.
func (h *Hub) Connect(obs Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observers[obs.ID()] = obs
	metrics.ActiveObservers.Set(float64(len(h.observers)))

	state := events.CurrentState{
		Type:      events.TypeCurrentState,
		Agents:    make([]events.AgentStatus, 0, len(h.agents)),
		Workflows: make([]events.WorkflowProgress, 0, len(h.workflows)),
		Timestamp: events.Now(),
	}
	for _, a := range h.agents {
		state.Agents = append(state.Agents, a)
	}
	for _, w := range h.workflows {
		state.Workflows = append(state.Workflows, w)
	}

	frame, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("failed to marshal snapshot", "error", err)
		return
	}
	if err := obs.Send(frame); err != nil {
		h.logger.Warn("snapshot delivery failed, dropping observer", "observer", obs.ID(), "error", err)
		h.removeLocked(obs.ID())
		return
	}
	h.logger.Info("observer connected", "observer", obs.ID(), "total", len(h.observers))
}

// Disconnect deregisters an observer. Idempotent.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

// removeLocked drops and closes an observer. Caller holds h.mu.
func (h *Hub) removeLocked(id string) {
	obs, ok := h.observers[id]
	if !ok {
		return
	}
	delete(h.observers, id)
	obs.Close()
	metrics.ActiveObservers.Set(float64(len(h.observers)))
	h.logger.Info("observer disconnected", "observer", id, "total", len(h.observers))
}

// ObserverCount returns the number of registered observers
func (h *Hub) ObserverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// PublishAgentStatus overwrites the agent's record and broadcasts it
func (h *Hub) PublishAgentStatus(status events.AgentStatus) {
	if status.LastUpdate == "" {
		status.LastUpdate = events.Now()
	}
	frame := events.AgentStatusFrame{
		Type:      events.TypeAgentStatus,
		Agent:     status,
		Timestamp: events.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.agents[status.AgentID] = status
	h.fanoutLocked(events.TypeAgentStatus, frame)
}

// PublishWorkflowProgress overwrites the workflow's record and broadcasts it
func (h *Hub) PublishWorkflowProgress(progress events.WorkflowProgress) {
	if progress.LastUpdate == "" {
		progress.LastUpdate = events.Now()
	}
	frame := events.WorkflowProgressFrame{
		Type:      events.TypeWorkflowProgress,
		Workflow:  progress,
		Timestamp: events.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.workflows[progress.WorkflowID] = progress
	h.fanoutLocked(events.TypeWorkflowProgress, frame)
}

// PublishMessage broadcasts an agent narration message. Stateless.
func (h *Hub) PublishMessage(agentID, agentName, role, message, messageType string) {
	frame := events.AgentMessageFrame{
		Type:        events.TypeAgentMessage,
		AgentID:     agentID,
		AgentName:   agentName,
		Role:        role,
		Message:     message,
		MessageType: messageType,
		Timestamp:   events.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanoutLocked(events.TypeAgentMessage, frame)
}

// PublishFileGenerated broadcasts a generated-file notification. Stateless.
func (h *Hub) PublishFileGenerated(agentID, agentName, role, filename, filePath, fileType string) {
	frame := events.FileGeneratedFrame{
		Type:      events.TypeFileGenerated,
		AgentID:   agentID,
		AgentName: agentName,
		Role:      role,
		Filename:  filename,
		FilePath:  filePath,
		FileType:  fileType,
		Timestamp: events.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanoutLocked(events.TypeFileGenerated, frame)
}

// PublishWorkflowCompleted broadcasts a workflow completion. Stateless.
func (h *Hub) PublishWorkflowCompleted(workflowID, name string, totalFiles, totalAgents int) {
	frame := events.WorkflowCompletedFrame{
		Type:        events.TypeWorkflowDone,
		WorkflowID:  workflowID,
		Name:        name,
		TotalFiles:  totalFiles,
		TotalAgents: totalAgents,
		Timestamp:   events.Now(),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.fanoutLocked(events.TypeWorkflowDone, frame)
}

// AgentState returns the stored record for an agent id
func (h *Hub) AgentState(agentID string) (events.AgentStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.agents[agentID]
	return s, ok
}

// WorkflowState returns the stored record for a workflow id
func (h *Hub) WorkflowState(workflowID string) (events.WorkflowProgress, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.workflows[workflowID]
	return w, ok
}

// fanoutLocked serializes one frame and delivers it to every observer.
// A failed delivery removes that observer and never blocks the rest.
// Caller holds h.mu.
func (h *Hub) fanoutLocked(frameType string, v interface{}) {
	frame, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to marshal frame", "type", frameType, "error", err)
		return
	}

	var failed []string
	for id, obs := range h.observers {
		if err := obs.Send(frame); err != nil {
			h.logger.Warn("delivery failed", "observer", id, "type", frameType, "error", err)
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		h.removeLocked(id)
	}

	metrics.EventsPublished.WithLabelValues(frameType).Inc()

	if h.mirror != nil {
		h.mirror.Publish(frameType, frame)
	}
}
