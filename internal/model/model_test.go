package model

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sherlock/pkg/platform/sentinel"
)

func TestNewFeatures(t *testing.T) {
	a := NewFeatures(100, 2, true, "Amazon", "NYC")
	b := NewFeatures(100, 2, true, "Amazon", "NYC")

	assert.Equal(t, a, b, "hashing is stable")
	assert.GreaterOrEqual(t, a.MerchantBucket, 0)
	assert.Less(t, a.MerchantBucket, merchantBuckets)
	assert.Less(t, a.LocationBucket, locationBuckets)

	v, ok := a.Value(FeatureLocationChanged)
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = a.Value("device_age")
	assert.False(t, ok)
}

func TestLogistic(t *testing.T) {
	m, err := NewLogistic("v1", LogisticParams{
		Bias:    -4,
		Weights: map[string]float64{FeatureAmount: 0.0004, FeatureVelocity: 0.35},
	})
	require.NoError(t, err)

	t.Run("score is within range and deterministic", func(t *testing.T) {
		f := NewFeatures(100, 1, false, "m", "NYC")
		s1, err := m.Score(context.Background(), f)
		require.NoError(t, err)
		s2, err := m.Score(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, s1, s2)
		assert.InDelta(t, 2.63, s1, 0.05)
	})

	t.Run("large amounts saturate below 100", func(t *testing.T) {
		s, err := m.Score(context.Background(), NewFeatures(1e9, 1, false, "m", "NYC"))
		require.NoError(t, err)
		assert.LessOrEqual(t, s, 100.0)
		assert.Greater(t, s, 99.0)
	})

	t.Run("unknown feature is rejected", func(t *testing.T) {
		_, err := NewLogistic("v2", LogisticParams{Weights: map[string]float64{"ip_risk": 1}})
		require.Error(t, err)
	})

	t.Run("cancelled context fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Score(ctx, Features{})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestTreeEnsemble(t *testing.T) {
	t.Run("walks left below threshold and right at or above", func(t *testing.T) {
		m, err := NewTreeEnsemble("t1", TreeEnsembleParams{Trees: []Tree{{Nodes: []Node{
			{Feature: FeatureVelocity, Threshold: 3, Left: 1, Right: 2},
			{Leaf: true, Value: -10},
			{Leaf: true, Value: 10},
		}}}})
		require.NoError(t, err)

		low, err := m.Score(context.Background(), Features{Velocity: 2})
		require.NoError(t, err)
		high, err := m.Score(context.Background(), Features{Velocity: 3})
		require.NoError(t, err)

		assert.Less(t, low, 1.0)
		assert.Greater(t, high, 99.0)
	})

	t.Run("backward child pointers are rejected", func(t *testing.T) {
		_, err := NewTreeEnsemble("t2", TreeEnsembleParams{Trees: []Tree{{Nodes: []Node{
			{Feature: FeatureVelocity, Threshold: 3, Left: 0, Right: 1},
			{Leaf: true},
		}}}})
		require.Error(t, err)
	})

	t.Run("empty ensemble is rejected", func(t *testing.T) {
		_, err := NewTreeEnsemble("t3", TreeEnsembleParams{})
		require.Error(t, err)
	})
}

func TestHeuristic(t *testing.T) {
	m := NewHeuristic("h1")
	s, err := m.Score(context.Background(), Features{Velocity: 2, LocationChanged: true})
	require.NoError(t, err)
	assert.Equal(t, 80.0, s)

	s, err = m.Score(context.Background(), Features{Velocity: 20})
	require.NoError(t, err)
	assert.Equal(t, 100.0, s)
}

func TestBuiltinArtifactsBuild(t *testing.T) {
	reg := DefaultRegistry()
	for _, v := range []string{ChampionVersion, ChallengerVersion} {
		m, err := reg.Load(context.Background(), v)
		require.NoError(t, err, v)
		assert.Equal(t, v, m.Version())
	}

	champion, err := reg.Load(context.Background(), ChampionVersion)
	require.NoError(t, err)
	s, err := champion.Score(context.Background(), NewFeatures(100, 1, false, "m", "NYC"))
	require.NoError(t, err)
	assert.Less(t, s, 80.0, "ordinary transactions stay under the high risk threshold")
}

func TestFileRegistry(t *testing.T) {
	dir := t.TempDir()
	raw, err := json.Marshal(ChampionArtifact())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChampionVersion+".json"), raw, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o600))

	reg := NewFileRegistry(dir)

	t.Run("loads a valid artifact", func(t *testing.T) {
		m, err := reg.Load(context.Background(), ChampionVersion)
		require.NoError(t, err)
		assert.Equal(t, ChampionVersion, m.Version())
	})

	t.Run("missing version is not found", func(t *testing.T) {
		_, err := reg.Load(context.Background(), "champion-v9")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("malformed artifact fails", func(t *testing.T) {
		_, err := reg.Load(context.Background(), "broken")
		require.Error(t, err)
	})

	t.Run("path traversal is rejected", func(t *testing.T) {
		_, err := reg.Load(context.Background(), "../etc/passwd")
		require.Error(t, err)
	})
}
