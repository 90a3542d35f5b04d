package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func terminalResponse(id, previous string, position int) *Response {
	r := newResponse()
	r.ID = id
	r.PreviousResponseID = previous
	r.ConversationPosition = position
	r.finish(StatusCompleted)
	return r
}

func TestChain_AppendInOrder(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())

	require.NoError(t, cm.Append("c1", terminalResponse("r1", "", 0)))
	require.NoError(t, cm.Append("c1", terminalResponse("r2", "r1", 1)))
	require.NoError(t, cm.Append("c1", terminalResponse("r3", "r2", 2)))

	var ids []string
	for r := range cm.Traverse("c1") {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"r1", "r2", "r3"}, ids)
}

func TestChain_FirstPositionMustBeZero(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())

	err := cm.Append("c1", terminalResponse("r1", "", 1))
	var cerr *ChainIntegrityError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 0, cerr.WantPosition)
	assert.Equal(t, 1, cerr.GotPosition)
}

func TestChain_RejectsWrongPrevious(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())
	require.NoError(t, cm.Append("c1", terminalResponse("r1", "", 0)))

	err := cm.Append("c1", terminalResponse("r2", "someone-else", 1))
	var cerr *ChainIntegrityError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "r1", cerr.WantPrevious)
	assert.Equal(t, "someone-else", cerr.GotPrevious)

	// the chain is untouched
	var n int
	for range cm.Traverse("c1") {
		n++
	}
	assert.Equal(t, 1, n)
}

func TestChain_RejectsPositionGap(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())
	require.NoError(t, cm.Append("c1", terminalResponse("r1", "", 0)))

	err := cm.Append("c1", terminalResponse("r2", "r1", 3))
	var cerr *ChainIntegrityError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 1, cerr.WantPosition)
}

func TestChain_RejectsNonTerminal(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())

	r := newResponse()
	r.ID = "r1"
	err := cm.Append("c1", r)
	var cerr *ChainIntegrityError
	assert.ErrorAs(t, err, &cerr)
}

func TestChain_TraverseIsRestartable(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())
	require.NoError(t, cm.Append("c1", terminalResponse("r1", "", 0)))

	seq := cm.Traverse("c1")
	for range seq {
	}

	// appends after the first pass show up in the next one
	require.NoError(t, cm.Append("c1", terminalResponse("r2", "r1", 1)))
	var n int
	for range seq {
		n++
	}
	assert.Equal(t, 2, n)
}

func TestChain_TraverseEarlyBreak(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())
	require.NoError(t, cm.Append("c1", terminalResponse("r1", "", 0)))
	require.NoError(t, cm.Append("c1", terminalResponse("r2", "r1", 1)))

	for r := range cm.Traverse("c1") {
		assert.Equal(t, "r1", r.ID)
		break
	}
}

func TestChain_TotalCost(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())

	r1 := terminalResponse("r1", "", 0)
	r1.Cost = CostBreakdown{Total: 0.5}
	r2 := terminalResponse("r2", "r1", 1)
	r2.Cost = CostBreakdown{Total: 1.25}
	require.NoError(t, cm.Append("c1", r1))
	require.NoError(t, cm.Append("c1", r2))

	total, err := cm.TotalCost("c1")
	require.NoError(t, err)
	assert.InDelta(t, 1.75, total, 1e-9)
}

func TestChain_IndependentChains(t *testing.T) {
	cm := NewChainManager(NewMemoryStore())

	require.NoError(t, cm.Append("a", terminalResponse("r1", "", 0)))
	require.NoError(t, cm.Append("b", terminalResponse("r1", "", 0)))

	for r := range cm.Traverse("b") {
		assert.Equal(t, 0, r.ConversationPosition)
	}
}
