package fingerprint_test

import (
	"testing"

	"github.com/jheath/partsbin/internal/agent/fingerprint"
	"github.com/jheath/partsbin/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_IsDeterministic(t *testing.T) {
	fp := models.Fingerprint{"hostname": "bench-01", "os": "linux", "cpus": "8"}

	h1 := fingerprint.Hash(fp)
	h2 := fingerprint.Hash(fp)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "hex SHA-256")
}

func TestHash_IndependentOfInsertionOrder(t *testing.T) {
	a := models.Fingerprint{}
	a["os"] = "linux"
	a["hostname"] = "bench-01"

	b := models.Fingerprint{}
	b["hostname"] = "bench-01"
	b["os"] = "linux"

	assert.Equal(t, fingerprint.Hash(a), fingerprint.Hash(b))
}

func TestHash_ChangesWithAnySignal(t *testing.T) {
	base := models.Fingerprint{"hostname": "bench-01", "os": "linux"}
	changed := models.Fingerprint{"hostname": "bench-02", "os": "linux"}

	assert.NotEqual(t, fingerprint.Hash(base), fingerprint.Hash(changed))
}

func TestCollect_RunsAllProbes(t *testing.T) {
	probes := fingerprint.DefaultProbes()
	fp := fingerprint.Collect(probes)

	require.Len(t, fp, len(probes))
	assert.NotEmpty(t, fp["os"])
	assert.NotEmpty(t, fp["arch"])
	assert.NotEmpty(t, fp["cpus"])
}

func TestCollect_EmptySignalIsRecorded(t *testing.T) {
	probes := []fingerprint.Probe{
		{Name: "present", Collect: func() string { return "x" }},
		{Name: "missing", Collect: func() string { return "" }},
	}
	fp := fingerprint.Collect(probes)

	v, ok := fp["missing"]
	require.True(t, ok, "empty signals stay in the probe set")
	assert.Empty(t, v)
}
