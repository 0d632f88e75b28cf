package cli

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const replyHits = `{"hits":{"total":{"value":2},"hits":[
	{"_id":"a","_score":1.5,"_source":{"name":"A1","lanes":2}},
	{"_id":"b","_score":0.5,"_source":{"name":"A1","lanes":4}}
]}}`

func TestCount_FullySupported(t *testing.T) {
	b, cfg := withBackend(t, `{"hits":{"total":{"value":120},"hits":[]}}`)

	out, err := execute(t, "", "--config", cfg, "count", "--layer", "roads",
		"--filter", filterName, "--offset", "100", "--limit", "50")
	require.NoError(t, err)
	assert.Equal(t, "20\n", out)

	reqs := b.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0], `"size":0`)
	assert.Contains(t, reqs[0], `"track_total_hits":true`)
}

func TestCount_PartialNeedsApproximate(t *testing.T) {
	b, cfg := withBackend(t, replyHits)

	out, err := execute(t, "", "--config", cfg, "--format", "json", "count", "--layer", "roads", "--filter", filterPartial)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeEvaluatorRequired)
	assert.Empty(t, b.requests())

	out, err = execute(t, "", "--config", cfg, "--format", "json", "count", "--layer", "roads",
		"--filter", filterPartial, "--approximate")
	require.NoError(t, err)
	data := decodeData(t, out)
	assert.Equal(t, float64(2), data["count"])
	assert.Equal(t, "roads", data["layer"])
}

func TestCount_BackendError(t *testing.T) {
	b, cfg := withBackend(t, `{"error":"boom"}`)
	b.mu.Lock()
	b.status = http.StatusInternalServerError
	b.mu.Unlock()

	out, err := execute(t, "", "--config", cfg, "count", "--layer", "roads")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Error [E005]")
	assert.Contains(t, out, "500")
}

func TestCount_BadBackendURL(t *testing.T) {
	cfg := testEnv(t, "ftp://example.com", false)

	_, err := execute(t, "", "--config", cfg, "count", "--layer", "roads")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSearch_JSON(t *testing.T) {
	b, cfg := withBackend(t, replyHits)

	out, err := execute(t, "", "--config", cfg, "--format", "json", "search", "--layer", "roads",
		"--filter", filterName, "--sort", "lanes:desc")
	require.NoError(t, err)

	var resp struct {
		Data SearchOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Hits, 2)
	assert.Equal(t, "a", resp.Data.Hits[0].ID)
	assert.Equal(t, 1.5, resp.Data.Hits[0].Score)
	assert.JSONEq(t, `{"name":"A1","lanes":2}`, string(resp.Data.Hits[0].Source))

	reqs := b.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0], `{"lanes":{"order":"desc"}}`)
}

func TestSearch_Text(t *testing.T) {
	_, cfg := withBackend(t, replyHits)

	out, err := execute(t, "", "--config", cfg, "search", "--layer", "roads")
	require.NoError(t, err)
	assert.Contains(t, out, "2 hit(s)")
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "Score")
}

func TestSearch_Empty(t *testing.T) {
	_, cfg := withBackend(t, `{"hits":{"total":0,"hits":[]}}`)

	out, err := execute(t, "", "--config", cfg, "search", "--layer", "roads")
	require.NoError(t, err)
	assert.Equal(t, "0 hit(s)\n\n", out)
}

func TestHistory_RecordsRuns(t *testing.T) {
	_, cfg := withBackend(t, replyHits)

	_, err := execute(t, "", "--config", cfg, "search", "--layer", "roads", "--filter", filterName)
	require.NoError(t, err)
	_, err = execute(t, "", "--config", cfg, "count", "--layer", "roads", "--filter", filterPartial, "--approximate")
	require.NoError(t, err)

	out, err := execute(t, "", "--config", cfg, "--format", "json", "history")
	require.NoError(t, err)

	var resp struct {
		Data []struct {
			Seq            int64  `json:"seq"`
			Layer          string `json:"layer"`
			Operation      string `json:"operation"`
			Fingerprint    string `json:"fingerprint"`
			FullySupported bool   `json:"fully_supported"`
			Hits           int64  `json:"hits"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)

	assert.Equal(t, int64(1), resp.Data[0].Seq)
	assert.Equal(t, "features", resp.Data[0].Operation)
	assert.True(t, resp.Data[0].FullySupported)
	assert.Equal(t, int64(2), resp.Data[0].Hits)

	assert.Equal(t, "count", resp.Data[1].Operation)
	assert.False(t, resp.Data[1].FullySupported)
	assert.Equal(t, "roads", resp.Data[1].Layer)

	out, err = execute(t, "", "--config", cfg, "--format", "json", "history", "--fingerprint", resp.Data[0].Fingerprint)
	require.NoError(t, err)
	var byFP struct {
		Data []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &byFP))
	assert.Len(t, byFP.Data, 1)

	out, err = execute(t, "", "--config", cfg, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "count")
	assert.NotContains(t, out, "features")
	assert.Contains(t, out, "⚠")
}

func TestHistory_Empty(t *testing.T) {
	_, cfg := withBackend(t, replyHits)

	out, err := execute(t, "", "--config", cfg, "history")
	require.NoError(t, err)
	assert.Equal(t, "No recorded compilations\n", out)

	out, err = execute(t, "", "--config", cfg, "--format", "json", "history")
	require.NoError(t, err)
	assert.Contains(t, out, `"data": []`)
}

func TestHistory_AuditDisabled(t *testing.T) {
	cfg := testEnv(t, "http://localhost:9200", false)

	_, err := execute(t, "", "--config", cfg, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLayers(t *testing.T) {
	cfg := testEnv(t, "http://localhost:9200", false)

	out, err := execute(t, "", "--config", cfg, "--format", "json", "layers")
	require.NoError(t, err)

	var resp struct {
		Data []LayerOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "roads", resp.Data[0].Name)
	assert.Equal(t, "gis", resp.Data[0].Index)
	require.Len(t, resp.Data[0].Attributes, 2)
	assert.Equal(t, "lanes", resp.Data[0].Attributes[1].Name)
	assert.Equal(t, "integer", resp.Data[0].Attributes[1].Type)

	out, err = execute(t, "", "--config", cfg, "layers")
	require.NoError(t, err)
	assert.Contains(t, out, "roads")
	assert.Contains(t, out, "integer")
}
