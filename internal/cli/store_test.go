package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scout-agent/internal/domain/entity"
	"scout-agent/internal/infrastructure/store"
)

type seeded struct {
	db       string
	blobs    string
	artifact string
}

// seedStore writes one finished run with two records and a screenshot, plus one run still in progress.
func seedStore(t *testing.T) seeded {
	dir := t.TempDir()
	s := seeded{db: filepath.Join(dir, "scout.db"), blobs: filepath.Join(dir, "artifacts")}
	ctx := context.Background()

	st, err := store.Open(s.db)
	require.NoError(t, err)
	defer st.Close()
	blobs, err := store.NewFileBlobStore(s.blobs)
	require.NoError(t, err)

	require.NoError(t, st.BeginRun(ctx, "run-done", "collect courses"))
	require.NoError(t, st.BeginRun(ctx, "run-live", "collect staff"))

	ref, err := blobs.Put(ctx, "run-done", []byte("jpeg"), "jpg")
	require.NoError(t, err)
	s.artifact = blobs.Path(ref)

	for _, rec := range []entity.StepRecord{
		{RunID: "run-done", Actor: entity.ActorOrchestrator, ChosenAction: "plan v1", ObservedStateDigest: "d1"},
		{RunID: "run-done", Actor: entity.ActorNavigateAgent, ChosenAction: "navigate", ReflectionText: "opening catalog", ObservedStateDigest: "d2", HeavyArtifactRef: ref},
		{RunID: "run-done", Actor: entity.ActorExtractAgent, ChosenAction: "submit_rows", ObservedStateDigest: "d3"},
	} {
		_, err := st.Append(ctx, rec)
		require.NoError(t, err)
	}

	_, err = st.Persist(ctx, "run-done", 2, []entity.Row{{"title": "Intro to Go"}, {"title": "Databases"}})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, st.FinishRun(ctx, &entity.RunReport{
		RunID:          "run-done",
		Goal:           "collect courses",
		Status:         entity.RunDone,
		Explanation:    "2 records persisted",
		PersistedCount: 2,
		Invocations:    2,
		StartedAt:      now.Add(-time.Minute),
		FinishedAt:     now,
	}))
	return s
}

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunsCommand_List(t *testing.T) {
	s := seedStore(t)

	out, err := execute(t, "runs", "--db", s.db)
	require.NoError(t, err)
	assert.Contains(t, out, "run-done")
	assert.Contains(t, out, "run-live")
	assert.Contains(t, out, "collect courses")
}

func TestRunsCommand_DetailJSON(t *testing.T) {
	s := seedStore(t)

	out, err := execute(t, "runs", "--db", s.db, "--run", "run-done", "--records", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Data.Report)
	assert.Equal(t, entity.RunDone, resp.Data.Status)
	assert.Equal(t, 2, resp.Data.Report.PersistedCount)
	assert.Len(t, resp.Data.Records, 2)
}

func TestRunsCommand_Unfinished(t *testing.T) {
	s := seedStore(t)

	out, err := execute(t, "runs", "--db", s.db, "--run", "run-live")
	require.NoError(t, err)
	assert.Contains(t, out, "has not finished")
}

func TestRunsCommand_UnknownRun(t *testing.T) {
	s := seedStore(t)

	_, err := execute(t, "runs", "--db", s.db, "--run", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestReplayCommand(t *testing.T) {
	s := seedStore(t)

	out, err := execute(t, "replay", "run-done", "--db", s.db, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "ORCHESTRATOR")
	assert.Contains(t, out, "opening catalog")
	assert.Contains(t, out, "artifact run-done/")
}

func TestReplayCommand_ActorFilterJSON(t *testing.T) {
	s := seedStore(t)

	out, err := execute(t, "replay", "run-done", "--db", s.db, "--actor", "EXTRACT_AGENT", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data []entity.StepRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 3, resp.Data[0].TurnIndex)
}

func TestReplayCommand_NoRecords(t *testing.T) {
	s := seedStore(t)

	_, err := execute(t, "replay", "run-live", "--db", s.db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompactCommand(t *testing.T) {
	s := seedStore(t)
	require.FileExists(t, s.artifact)

	out, err := execute(t, "compact", "run-done", "--db", s.db, "--blobs", s.blobs)
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 artifacts")

	_, statErr := os.Stat(s.artifact)
	assert.True(t, os.IsNotExist(statErr))

	st, err := store.Open(s.db)
	require.NoError(t, err)
	defer st.Close()
	steps, err := st.Steps(context.Background(), "run-done")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for _, step := range steps {
		assert.Empty(t, step.HeavyArtifactRef)
	}
}

func TestCompactCommand_RefusesLiveRun(t *testing.T) {
	s := seedStore(t)

	_, err := execute(t, "compact", "run-live", "--db", s.db, "--blobs", s.blobs)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrRunActive)
}

func TestFormatRow(t *testing.T) {
	assert.Equal(t, "credits=3  title=Intro", formatRow(entity.Row{"title": "Intro", "credits": 3}))
}
