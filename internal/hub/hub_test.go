package hub

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/forge-coordinator/internal/events"
	"github.com/forgeworks/forge-coordinator/internal/logging"
)

type fakeObserver struct {
	id     string
	frames [][]byte
	fail   bool
	closed bool
}

func (f *fakeObserver) ID() string { return f.id }

func (f *fakeObserver) Send(frame []byte) error {
	if f.fail {
		return errors.New("send failed")
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeObserver) Close() error {
	f.closed = true
	return nil
}

func (f *fakeObserver) decode(t *testing.T, i int) map[string]interface{} {
	t.Helper()
	require.Greater(t, len(f.frames), i)
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(f.frames[i], &v))
	return v
}

func newHub() *Hub {
	return New(logging.WithComponent("test"))
}

func TestConnectDeliversSnapshotFirst(t *testing.T) {
	h := newHub()
	obs := &fakeObserver{id: "obs-1"}

	h.Connect(obs)

	require.Len(t, obs.frames, 1)
	frame := obs.decode(t, 0)
	assert.Equal(t, events.TypeCurrentState, frame["type"])
	assert.Empty(t, frame["agent_status"])
	assert.Empty(t, frame["workflow_progress"])
}

func TestLateJoinerSeesLatestStateOnly(t *testing.T) {
	h := newHub()

	h.PublishAgentStatus(events.AgentStatus{AgentID: "engineer", Status: events.AgentWorking, Progress: 10})
	h.PublishAgentStatus(events.AgentStatus{AgentID: "engineer", Status: events.AgentWorking, Progress: 80})
	h.PublishWorkflowProgress(events.WorkflowProgress{WorkflowID: "wf-1", Status: events.WorkflowRunning})

	obs := &fakeObserver{id: "late"}
	h.Connect(obs)

	require.Len(t, obs.frames, 1)
	var state events.CurrentState
	require.NoError(t, json.Unmarshal(obs.frames[0], &state))

	// one record per id, holding the newest write
	require.Len(t, state.Agents, 1)
	assert.Equal(t, 80, state.Agents[0].Progress)
	require.Len(t, state.Workflows, 1)
	assert.Equal(t, "wf-1", state.Workflows[0].WorkflowID)
}

func TestPublishFansOutInOrder(t *testing.T) {
	h := newHub()
	obs := &fakeObserver{id: "obs-1"}
	h.Connect(obs)

	h.PublishAgentStatus(events.AgentStatus{AgentID: "qa", Status: events.AgentWorking, Progress: 0})
	h.PublishMessage("qa", "Chris Lee", "QA Engineer", "Starting: review", "info")
	h.PublishAgentStatus(events.AgentStatus{AgentID: "qa", Status: events.AgentCompleted, Progress: 100})

	require.Len(t, obs.frames, 4) // snapshot + 3 live frames
	assert.Equal(t, events.TypeAgentStatus, obs.decode(t, 1)["type"])
	assert.Equal(t, events.TypeAgentMessage, obs.decode(t, 2)["type"])

	last := obs.decode(t, 3)
	agent := last["agent"].(map[string]interface{})
	assert.Equal(t, float64(100), agent["progress"])
}

func TestFailingObserverRemovedOthersUnaffected(t *testing.T) {
	h := newHub()
	good := &fakeObserver{id: "good"}
	bad := &fakeObserver{id: "bad"}
	h.Connect(good)
	h.Connect(bad)
	require.Equal(t, 2, h.ObserverCount())

	bad.fail = true
	h.PublishWorkflowCompleted("wf-1", "Build", 3, 5)

	assert.Equal(t, 1, h.ObserverCount())
	assert.True(t, bad.closed)
	require.Len(t, good.frames, 2)
	assert.Equal(t, events.TypeWorkflowDone, good.decode(t, 1)["type"])

	// subsequent publishes keep flowing to the survivor
	h.PublishMessage("pm", "Sarah Chen", "Product Manager", "done", "info")
	assert.Len(t, good.frames, 3)
}

func TestConnectFailedSnapshotDropsObserver(t *testing.T) {
	h := newHub()
	obs := &fakeObserver{id: "obs-1", fail: true}

	h.Connect(obs)

	assert.Zero(t, h.ObserverCount())
	assert.True(t, obs.closed)
}

func TestDisconnectIdempotent(t *testing.T) {
	h := newHub()
	obs := &fakeObserver{id: "obs-1"}
	h.Connect(obs)

	h.Disconnect("obs-1")
	h.Disconnect("obs-1")
	h.Disconnect("never-seen")

	assert.Zero(t, h.ObserverCount())
	assert.True(t, obs.closed)
}

func TestStateAccessors(t *testing.T) {
	h := newHub()

	_, ok := h.AgentState("engineer")
	assert.False(t, ok)

	h.PublishAgentStatus(events.AgentStatus{AgentID: "engineer", Status: events.AgentWorking, Progress: 50})
	got, ok := h.AgentState("engineer")
	require.True(t, ok)
	assert.Equal(t, 50, got.Progress)
	assert.NotEmpty(t, got.LastUpdate)

	h.PublishWorkflowProgress(events.WorkflowProgress{WorkflowID: "wf-1", Status: events.WorkflowFailed})
	wf, ok := h.WorkflowState("wf-1")
	require.True(t, ok)
	assert.Equal(t, events.WorkflowFailed, wf.Status)
}

type recordingMirror struct {
	types []string
}

func (m *recordingMirror) Publish(frameType string, frame []byte) {
	m.types = append(m.types, frameType)
}

func TestMirrorReceivesEveryFrame(t *testing.T) {
	mirror := &recordingMirror{}
	h := New(logging.WithComponent("test"), WithMirror(mirror))

	h.PublishAgentStatus(events.AgentStatus{AgentID: "a"})
	h.PublishFileGenerated("a", "Agent", "Role", "spec.txt", "/out/spec.txt", "text")
	h.PublishWorkflowCompleted("wf-1", "Build", 1, 1)

	assert.Equal(t, []string{
		events.TypeAgentStatus,
		events.TypeFileGenerated,
		events.TypeWorkflowDone,
	}, mirror.types)
}
