package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lectern/internal/adapters/driving/repl"
	"github.com/custodia-labs/lectern/internal/core/domain"
)

func TestAskCmd_Flags(t *testing.T) {
	assert.Equal(t, "ask [question]", askCmd.Use)

	stream := askCmd.Flags().Lookup("stream")
	require.NotNil(t, stream)
	assert.Equal(t, "s", stream.Shorthand)

	topK := askCmd.Flags().Lookup("top-k")
	require.NotNil(t, topK)
	assert.Equal(t, "n", topK.Shorthand)
	assert.Equal(t, "0", topK.DefValue)

	assert.NotNil(t, askCmd.Flags().Lookup("book"))
	assert.NotNil(t, askCmd.Flags().Lookup("author"))
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	defer setupTestServices(Services{Query: &fakeQuery{}, Response: &fakeResponse{}})()

	_, err := execute(t, "", "ask")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestAskCmd_Answers(t *testing.T) {
	q := &fakeQuery{result: virtueResult()}
	defer setupTestServices(Services{Query: q, Response: &fakeResponse{resp: virtueResponse()}})()

	out, err := execute(t, "", "ask", "--book", "Meditations", "-n", "3", "what", "is", "virtue?")

	require.NoError(t, err)
	assert.Equal(t, "what is virtue?", q.query)
	assert.Equal(t, domain.QueryOptions{TopK: 3, Book: "Meditations"}, q.opts)
	assert.Contains(t, out, "Virtue is the only good [1].")
	assert.Contains(t, out, "1. Meditations by Marcus Aurelius, p.12")
}

func TestAskCmd_Stream(t *testing.T) {
	r := &fakeResponse{resp: virtueResponse(), fragments: []string{"Virtue is ", "the only good [1]."}}
	defer setupTestServices(Services{Query: &fakeQuery{result: virtueResult()}, Response: r})()

	out, err := execute(t, "", "ask", "--stream", "--author", "Marcus Aurelius", "virtue?")

	require.NoError(t, err)
	assert.True(t, r.streamed)
	assert.Contains(t, out, "Virtue is the only good [1].")
}

func TestAskCmd_WithoutLLM(t *testing.T) {
	defer setupTestServices(Services{Query: &fakeQuery{result: virtueResult()}})()

	_, err := execute(t, "", "ask", "virtue?")

	assert.ErrorIs(t, err, repl.ErrAnswersDisabled)
}

func TestAskCmd_NotConfigured(t *testing.T) {
	t.Run("no query service", func(t *testing.T) {
		defer setupTestServices(Services{})()

		_, err := execute(t, "", "ask", "virtue?")

		assert.ErrorIs(t, err, errQueryNotConfigured)
	})

	t.Run("startup error is reported", func(t *testing.T) {
		cfgErr := domain.NewConfigurationError("embedding.api_key", "required for openai")
		defer setupTestServices(Services{Err: cfgErr})()

		_, err := execute(t, "", "ask", "virtue?")

		assert.ErrorIs(t, err, domain.ErrConfiguration)
	})
}

func TestAskCmd_ServiceError(t *testing.T) {
	storeErr := &domain.StoreUnavailableError{Backend: "qdrant", Op: "search", Err: errBoom}
	defer setupTestServices(Services{Query: &fakeQuery{err: storeErr}, Response: &fakeResponse{}})()

	_, err := execute(t, "", "ask", "virtue?")

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestSourcesCmd_Lists(t *testing.T) {
	q := &fakeQuery{result: virtueResult()}
	defer setupTestServices(Services{Query: q})()

	out, err := execute(t, "", "sources", "--top-k", "5", "virtue")

	require.NoError(t, err)
	assert.Equal(t, 5, q.opts.TopK)
	assert.Contains(t, out, "Found 1 sources")
	assert.Contains(t, out, "Meditations by Marcus Aurelius (p. 12)  relevance 0.912")
}

func TestSourcesCmd_NoResults(t *testing.T) {
	defer setupTestServices(Services{Query: &fakeQuery{result: &domain.QueryResult{Query: "dragons"}}})()

	out, err := execute(t, "", "sources", "dragons")

	require.NoError(t, err)
	assert.Contains(t, out, `No results found for "dragons".`)
}

func TestSourcesCmd_JSON(t *testing.T) {
	defer setupTestServices(Services{Query: &fakeQuery{result: virtueResult()}})()

	out, err := execute(t, "", "sources", "--json", "virtue")

	require.NoError(t, err)
	var passages []passageJSON
	require.NoError(t, json.Unmarshal([]byte(out), &passages))
	require.Len(t, passages, 1)
	assert.Equal(t, passageJSON{
		ChunkID: "bk_med-000004",
		Title:   "Meditations",
		Author:  "Marcus Aurelius",
		Page:    12,
		Score:   0.912,
		Text:    "Virtue is the only good.",
	}, passages[0])
}

func TestSourcesCmd_JSONEmptyIsArray(t *testing.T) {
	defer setupTestServices(Services{Query: &fakeQuery{result: &domain.QueryResult{}}})()

	out, err := execute(t, "", "sources", "--json", "dragons")

	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}
