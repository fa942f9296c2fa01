package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/engram/pkg/models"
)

func TestLexicalSearcher_FindsInsertedObservationByTitle(t *testing.T) {
	store := newTestStore(t)
	writer := NewObservationWriter(store, nil, 30*time.Second)
	lexical := NewLexicalSearcher(store, nil)
	ctx := context.Background()

	_, err := writer.CreateObservation(ctx, models.CreateObservationInput{
		Project: "p1", MemorySessionID: "s1", Type: "feature-dev",
		Title: "refactor the payment gateway", Text: "switched to stripe webhooks",
	})
	require.NoError(t, err)

	results, err := lexical.FTSSearch(ctx, "payment gateway", models.SearchFilters{Project: "p1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "refactor the payment gateway", results[0].Title)
}

func TestLexicalSearcher_EmptyQueryReturnsNilWithoutFallback(t *testing.T) {
	store := newTestStore(t)
	lexical := NewLexicalSearcher(store, nil)

	hits, err := lexical.FTSSearchWithRank(context.Background(), "   ", models.SearchFilters{Project: "p1"})
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestSanitizeFTSQuery_StripsQuotesAndCapsTerms(t *testing.T) {
	sanitized := sanitizeFTSQuery(`say "hello" world`)
	assert.Equal(t, `"say" "hello" "world"`, sanitized)
}

func TestSanitizeFTSQuery_EmptyAfterTrim(t *testing.T) {
	assert.Equal(t, "", sanitizeFTSQuery("   "))
}
