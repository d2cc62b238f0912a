package events

import "time"

// Frame type tags sent to observers. Every frame carries a Type and an
// RFC3339 timestamp so clients can dispatch without inspecting the payload.
const (
	TypeCurrentState     = "current_state"
	TypeAgentStatus      = "agent_status_update"
	TypeWorkflowProgress = "workflow_progress_update"
	TypeAgentMessage     = "agent_message"
	TypeFileGenerated    = "file_generated"
	TypeWorkflowDone     = "workflow_completed"
)

// Agent status values
const (
	AgentIdle      = "idle"
	AgentWorking   = "working"
	AgentCompleted = "completed"
	AgentError     = "error"
)

// Workflow status values
const (
	WorkflowCreated   = "created"
	WorkflowRunning   = "running"
	WorkflowCompleted = "completed"
	WorkflowFailed    = "failed"
)

// AgentStatus is the live record for one agent. One record per AgentID;
// a newer update replaces the prior one.
type AgentStatus struct {
	AgentID     string `json:"agent_id"`
	AgentName   string `json:"agent_name"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	CurrentTask string `json:"current_task"`
	Progress    int    `json:"progress"`
	LastUpdate  string `json:"last_update"`
}

// WorkflowProgress is the live record for one workflow. Same last-write-wins
// semantics as AgentStatus, keyed by WorkflowID.
type WorkflowProgress struct {
	WorkflowID     string   `json:"workflow_id"`
	Name           string   `json:"workflow_name"`
	Status         string   `json:"status"`
	CurrentStep    int      `json:"current_step"`
	TotalSteps     int      `json:"total_steps"`
	CompletedSteps []string `json:"completed_steps"`
	PendingSteps   []string `json:"pending_steps"`
	CurrentAgent   string   `json:"current_agent,omitempty"`
	LastUpdate     string   `json:"last_update"`
}

// CurrentState is the snapshot frame delivered to a newly connected observer
// before any live frames.
type CurrentState struct {
	Type      string             `json:"type"`
	Agents    []AgentStatus      `json:"agent_status"`
	Workflows []WorkflowProgress `json:"workflow_progress"`
	Timestamp string             `json:"timestamp"`
}

// AgentStatusFrame wraps an AgentStatus record for fan-out.
type AgentStatusFrame struct {
	Type      string      `json:"type"`
	Agent     AgentStatus `json:"agent"`
	Timestamp string      `json:"timestamp"`
}

// WorkflowProgressFrame wraps a WorkflowProgress record for fan-out.
type WorkflowProgressFrame struct {
	Type      string           `json:"type"`
	Workflow  WorkflowProgress `json:"workflow"`
	Timestamp string           `json:"timestamp"`
}

// AgentMessageFrame is a stateless progress/narration message from an agent.
type AgentMessageFrame struct {
	Type        string `json:"type"`
	AgentID     string `json:"agent_id"`
	AgentName   string `json:"agent_name"`
	Role        string `json:"role"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	Timestamp   string `json:"timestamp"`
}

// FileGeneratedFrame announces a file produced by an agent.
type FileGeneratedFrame struct {
	Type      string `json:"type"`
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	Role      string `json:"role"`
	Filename  string `json:"filename"`
	FilePath  string `json:"file_path"`
	FileType  string `json:"file_type"`
	Timestamp string `json:"timestamp"`
}

// WorkflowCompletedFrame announces a finished workflow.
type WorkflowCompletedFrame struct {
	Type        string `json:"type"`
	WorkflowID  string `json:"workflow_id"`
	Name        string `json:"workflow_name"`
	TotalFiles  int    `json:"total_files"`
	TotalAgents int    `json:"total_agents"`
	Timestamp   string `json:"timestamp"`
}

// Now returns the timestamp format used on every frame.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
