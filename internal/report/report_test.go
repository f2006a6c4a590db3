package report

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flo-mic/aibox/internal/host/hosttest"
)

func TestDigest(t *testing.T) {
	// sha256 of the empty string
	assert.Equal(t, "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Digest(nil))
}

func TestNew_AssignsUUID(t *testing.T) {
	a := New("nginx", time.Now())
	b := New("nginx", time.Now())

	_, err := uuid.Parse(a.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAddArtifact_ReplacesSamePath(t *testing.T) {
	r := New("nginx", time.Now())
	r.AddArtifact("/etc/nginx/nginx.conf", []byte("a"), 0644)
	r.AddArtifact("/etc/nginx/ssl/aibox.key", []byte("k"), 0600)
	r.AddArtifact("/etc/nginx/nginx.conf", []byte("b"), 0644)

	require.Len(t, r.Artifacts, 2)
	assert.Equal(t, Digest([]byte("b")), r.Artifacts[0].SHA256)
	assert.Equal(t, "0600", r.Artifacts[1].Mode)
}

func TestSaveLoad(t *testing.T) {
	f := hosttest.New()
	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	r := New("caddy", started)
	r.ServerIP = "192.168.1.50"
	r.AddStep("system-upgrade", Applied, "", 3*time.Second)
	r.AddStep("gpu-drivers", Skipped, "no GPU", 0)
	r.Finished = started.Add(time.Minute)

	require.NoError(t, Save(f, "/var/lib/aibox", r))
	assert.Equal(t, "/var/lib/aibox/last-run.json", Path("/var/lib/aibox"))
	assert.Contains(t, f.Content("/var/lib/aibox/last-run.json"), `"outcome": "skipped"`)

	loaded, err := Load(f, "/var/lib/aibox")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, r.ID, loaded.ID)
	assert.True(t, r.Started.Equal(loaded.Started))
	assert.Equal(t, r.Steps, loaded.Steps)
	assert.Equal(t, Applied, loaded.Outcome("system-upgrade"))
	assert.Equal(t, Outcome(""), loaded.Outcome("firewall"))
}

func TestLoad_Missing(t *testing.T) {
	r, err := Load(hosttest.New(), "/var/lib/aibox")
	require.NoError(t, err)
	assert.Nil(t, r)
}
