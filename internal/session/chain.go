package session

import (
	"iter"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is the persistence boundary for conversation chains. The engine
// treats it as opaque; MemoryStore is the in-process implementation.
type Store interface {
	// Append persists a response at the end of a chain.
	Append(chainID string, resp *Response) error
	// Responses returns the chain's responses in position order.
	Responses(chainID string) ([]*Response, error)
}

// MemoryStore keeps chains in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	chains map[string][]*Response
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chains: make(map[string][]*Response)}
}

func (m *MemoryStore) Append(chainID string, resp *Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chains[chainID] = append(m.chains[chainID], resp)
	return nil
}

func (m *MemoryStore) Responses(chainID string) ([]*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain := m.chains[chainID]
	out := make([]*Response, len(chain))
	copy(out, chain)
	return out, nil
}

// ChainManager enforces linkage and ordering when responses join a
// conversation chain. Each response must name the current tail as its
// previous response and carry the next position; the first response starts
// at position zero with no previous id.
type ChainManager struct {
	mu    sync.Mutex
	store Store
}

func NewChainManager(store Store) *ChainManager {
	return &ChainManager{store: store}
}

// Append validates linkage and ordering, then persists. Violations return
// *ChainIntegrityError and leave the chain untouched. Only terminal
// responses may join a chain; an in-flight response has no settled identity
// to link against.
func (c *ChainManager) Append(chainID string, resp *Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !resp.Terminal() {
		return &ChainIntegrityError{
			ChainID:     chainID,
			ResponseID:  resp.ID,
			GotPrevious: resp.PreviousResponseID,
			GotPosition: resp.ConversationPosition,
		}
	}

	existing, err := c.store.Responses(chainID)
	if err != nil {
		return err
	}

	wantPrevious := ""
	wantPosition := 0
	if n := len(existing); n > 0 {
		tail := existing[n-1]
		wantPrevious = tail.ID
		wantPosition = tail.ConversationPosition + 1
	}

	if resp.PreviousResponseID != wantPrevious || resp.ConversationPosition != wantPosition {
		return &ChainIntegrityError{
			ChainID:      chainID,
			ResponseID:   resp.ID,
			WantPrevious: wantPrevious,
			GotPrevious:  resp.PreviousResponseID,
			WantPosition: wantPosition,
			GotPosition:  resp.ConversationPosition,
		}
	}

	return c.store.Append(chainID, resp)
}

// Traverse returns a restartable in-order iteration of the chain. The store
// is consulted lazily at iteration start, so each restart sees the chain as
// it then stands.
func (c *ChainManager) Traverse(chainID string) iter.Seq[*Response] {
	return func(yield func(*Response) bool) {
		responses, err := c.store.Responses(chainID)
		if err != nil {
			log.Error().Err(err).Str("chain_id", chainID).Msg("chain read failed")
			return
		}
		for _, resp := range responses {
			if !yield(resp) {
				return
			}
		}
	}
}

// TotalCost sums the cost of every response in the chain.
func (c *ChainManager) TotalCost(chainID string) (float64, error) {
	responses, err := c.store.Responses(chainID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, resp := range responses {
		total += resp.Cost.Total
	}
	return total, nil
}
