package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectBestArtifact(t *testing.T) {
	best, err := SelectBestArtifact([]string{
		"models/a_20230101.pkl",
		"models/a_20230202.pkl",
		"models/z_20990101.txt",
		"models/a_20221231.pkl",
	}, ".pkl")
	require.NoError(t, err)
	assert.Equal(t, "models/a_20230202.pkl", best)
}

func TestSelectBestArtifactComparesFileNames(t *testing.T) {
	best, err := SelectBestArtifact([]string{"z/m_1.model", "a/m_2.model"}, ".model")
	require.NoError(t, err)
	assert.Equal(t, "a/m_2.model", best)
}

func TestSelectBestArtifactNone(t *testing.T) {
	_, err := SelectBestArtifact(nil, ".model")
	assert.ErrorIs(t, err, ErrNoModelArtifacts)

	_, err = SelectBestArtifact([]string{"readme.md", "model.onnx"}, ".model")
	assert.ErrorIs(t, err, ErrNoModelArtifacts)
}
