//go:build integration

package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/epd-normalizer/pkg/indicators"
	"github.com/ekaya-inc/epd-normalizer/pkg/testhelpers"
)

func TestVocabularyRepository_SeedIsIdempotent(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	ctx := engineDB.Scope(t)
	repo := NewVocabularyRepository()

	vocab, err := indicators.LoadVocabulary()
	require.NoError(t, err)

	_, _, err = repo.Seed(ctx, vocab.Indicators, vocab.Modules)
	require.NoError(t, err)

	// Other tests may have seeded already, so only the second run is asserted exactly.
	insertedIndicators, insertedModules, err := repo.Seed(ctx, vocab.Indicators, vocab.Modules)
	require.NoError(t, err)
	assert.Zero(t, insertedIndicators)
	assert.Zero(t, insertedModules)

	stored, err := repo.ListIndicators(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, len(vocab.Indicators))

	modules, err := repo.ListModules(ctx)
	require.NoError(t, err)
	assert.Len(t, modules, len(vocab.Modules))

	keys := make(map[string]bool, len(stored))
	for _, ind := range stored {
		keys[ind.Key] = true
	}
	for _, key := range indicators.Keys {
		assert.True(t, keys[key], "indicator %s seeded", key)
	}
}
