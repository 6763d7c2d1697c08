package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgeproof/domain/core"
	"edgeproof/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func stage(runID core.RunID, name string, progress float64) ports.ProgressEvent {
	return ports.ProgressEvent{RunID: runID, Stage: name, Progress: progress, Timestamp: time.Now().UTC()}
}

func TestHub_ReplaysHistoryToLateClient(t *testing.T) {
	hub := NewHub(time.Second)
	defer hub.Close()

	hub.Publish(stage("run-1", "aligned", 0.05))
	hub.Publish(stage("run-2", "aligned", 0.05))
	hub.Publish(stage("run-1", ports.StageCompleted, 1))

	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/events/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "event:progress")
	assert.Contains(t, text, `"stage":"aligned"`)
	assert.Contains(t, text, `"stage":"completed"`)
	assert.NotContains(t, text, "run-2")
	assert.Less(t, strings.Index(text, `"stage":"aligned"`), strings.Index(text, `"stage":"completed"`))
}

func TestHub_StreamsLiveEvents(t *testing.T) {
	hub := NewHub(time.Second)
	defer hub.Close()

	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	done := make(chan string, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/v1/events/live")
		if err != nil {
			done <- ""
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		done <- string(body)
	}()

	require.Eventually(t, func() bool { return hub.ClientCount("live") == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(stage("live", "reality_check", 0.7))
	hub.Publish(stage("live", ports.StageCompleted, 1))

	select {
	case text := <-done:
		assert.Contains(t, text, `"stage":"reality_check"`)
		assert.Contains(t, text, `"stage":"completed"`)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not finish")
	}
	assert.Eventually(t, func() bool { return hub.ClientCount("live") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_HistoryEvictsOldestRun(t *testing.T) {
	hub := &Hub{history: make(map[core.RunID][]ports.ProgressEvent)}
	for i := 0; i <= historyRuns; i++ {
		hub.remember(stage(core.RunID(strings.Repeat("r", i+1)), "aligned", 0.05))
	}
	assert.Len(t, hub.history, historyRuns)
	_, kept := hub.history["r"]
	assert.False(t, kept)
}
