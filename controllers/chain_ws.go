package controller

import (
	"sync"

	"github.com/gofiber/websocket/v2"

	"promptforge/models"
)

// EvaluationProgress is one status update pushed to subscribed clients while
// a chain evaluation runs.
type EvaluationProgress struct {
	Status  string   `json:"status"` // running, completed, failed
	Message string   `json:"message"`
	Score   *float64 `json:"score,omitempty"`
}

// EvaluationNotifier fans evaluation progress out to websocket subscribers.
// Subscriptions are per chain id and in-memory; evaluation is synchronous per
// request, so there is no cross-instance state to share.
type EvaluationNotifier struct {
	mu   sync.Mutex
	subs map[uint]map[chan EvaluationProgress]struct{}
}

func NewEvaluationNotifier() *EvaluationNotifier {
	return &EvaluationNotifier{subs: make(map[uint]map[chan EvaluationProgress]struct{})}
}

func (n *EvaluationNotifier) Subscribe(chainID uint) chan EvaluationProgress {
	ch := make(chan EvaluationProgress, 8)
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[chainID] == nil {
		n.subs[chainID] = make(map[chan EvaluationProgress]struct{})
	}
	n.subs[chainID][ch] = struct{}{}
	return ch
}

func (n *EvaluationNotifier) Unsubscribe(chainID uint, ch chan EvaluationProgress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if set, ok := n.subs[chainID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(n.subs, chainID)
		}
	}
}

// Publish never blocks on slow subscribers; full buffers drop updates.
func (n *EvaluationNotifier) Publish(chainID uint, progress EvaluationProgress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[chainID] {
		select {
		case ch <- progress:
		default:
		}
	}
}

// HandleEvaluationProgressWS streams evaluation progress for one chain. The
// client sends {"chain_id": n} once, then receives progress frames until the
// evaluation finishes or the socket closes. The caller must be able to access
// the chain; inaccessible ids get no frames, same as nonexistent ones.
func (cc *ChainController) HandleEvaluationProgressWS(c *websocket.Conn) {
	defer c.Close()

	user, ok := c.Locals("user").(*models.User)
	if !ok {
		return
	}

	var input struct {
		ChainID uint `json:"chain_id"`
	}
	if err := c.ReadJSON(&input); err != nil {
		cc.Logger.WithError(err).Warn("invalid evaluation progress subscription")
		return
	}

	if _, err := cc.loadAccessibleChain(user.ID, input.ChainID); err != nil {
		return
	}

	ch := cc.Notifier.Subscribe(input.ChainID)
	defer cc.Notifier.Unsubscribe(input.ChainID, ch)

	// Read pump: unblocks the write loop when the client goes away, even if
	// no evaluation ever publishes for this chain.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case progress := <-ch:
			if err := c.WriteJSON(progress); err != nil {
				return
			}
			if progress.Status == "completed" || progress.Status == "failed" {
				return
			}
		}
	}
}
