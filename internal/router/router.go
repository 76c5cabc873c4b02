package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pefman/w40k-tabletop/internal/phase"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Transport carries sync traffic to the other participant. Delivery is
// asynchronous but assumed in-order per peer.
type Transport interface {
	// SendBatch replicates an executed action's diffs. digest is the
	// sender's document hash after applying the batch.
	SendBatch(b state.DiffBatch, digest string) error
	// SendAction forwards a non-authoritative submission to the host.
	SendAction(player int, a protocol.Action) error
	// SendSnapshot pushes a full compressed snapshot for resynchronization.
	SendSnapshot(snap []byte, seq uint64) error
	// RequestSnapshot asks the host for a full snapshot.
	RequestSnapshot() error
}

// Router is the single ingress for actions from UI, network, and tests.
// On the authoritative host actions execute immediately and diffs are
// broadcast; the peer forwards submissions and only ever applies diffs,
// so one serialized action order holds on both sides.
type Router struct {
	mu            sync.Mutex
	machine       *phase.Machine
	store         *state.Store
	transport     Transport
	authoritative bool
	observer      func(player int, a protocol.Action, res *phase.ExecResult)
}

func New(machine *phase.Machine, transport Transport, authoritative bool) *Router {
	return &Router{
		machine:       machine,
		store:         machine.Store(),
		transport:     transport,
		authoritative: authoritative,
	}
}

func (r *Router) Authoritative() bool { return r.authoritative }

// SetObserver registers a callback invoked after every successfully
// executed action, used for stats collection. Host side only.
func (r *Router) SetObserver(fn func(player int, a protocol.Action, res *phase.ExecResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = fn
}

// Route submits one action on behalf of player.
func (r *Router) Route(player int, a protocol.Action) protocol.RouteResult {
	if !r.authoritative {
		// Forward without holding the lock: the host's reply arrives as a
		// diff batch and re-enters through HandleRemoteBatch.
		if err := r.transport.SendAction(player, a); err != nil {
			return protocol.RouteResult{Error: fmt.Sprintf("forward to host: %v", err)}
		}
		// Local state updates only when the host's diffs arrive.
		return protocol.RouteResult{Pending: true}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executeLocked(player, a)
}

func (r *Router) executeLocked(player int, a protocol.Action) protocol.RouteResult {
	res, err := r.machine.ExecuteAction(player, a)
	if err != nil {
		var verr *protocol.ValidationError
		if errors.As(err, &verr) {
			return protocol.RouteResult{Error: verr.Message, Code: verr.Code}
		}
		// StateError or worse: a validate/execute contract violation.
		return protocol.RouteResult{Error: err.Error(), Code: "STATE_ERROR"}
	}
	batch := state.DiffBatch{Seq: r.store.NextSeq(), Diffs: res.Diffs}
	raw, _ := json.Marshal(res.Diffs)
	if r.observer != nil {
		r.observer(player, a, res)
	}
	if err := r.transport.SendBatch(batch, r.store.Digest()); err != nil {
		// Unreachable peer: fall back to full-snapshot resynchronization
		// instead of incremental repair.
		_ = r.resyncLocked()
		return protocol.RouteResult{Diffs: raw, Error: fmt.Sprintf("broadcast: %v", err)}
	}
	return protocol.RouteResult{Success: true, Diffs: raw}
}

// HandleRemoteAction runs on the host when the peer forwards a submission.
func (r *Router) HandleRemoteAction(player int, a protocol.Action) protocol.RouteResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.authoritative {
		return protocol.RouteResult{Error: "not the authoritative host"}
	}
	return r.executeLocked(player, a)
}

// HandleRemoteBatch applies replicated diffs on the peer without
// re-validating (trust-the-host). Re-delivery is a no-op; a sequence gap
// or digest mismatch triggers a snapshot request.
func (r *Router) HandleRemoteBatch(b state.DiffBatch, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.authoritative {
		return fmt.Errorf("router: host received a diff batch")
	}
	if b.Seq > r.store.AppliedSeq()+1 {
		// Missed at least one batch; incremental repair is not attempted.
		return r.transport.RequestSnapshot()
	}
	applied, err := r.store.ApplyBatch(b)
	if err != nil {
		return r.transport.RequestSnapshot()
	}
	if applied && digest != "" && digest != r.store.Digest() {
		return r.transport.RequestSnapshot()
	}
	return nil
}

// Resync pushes a full snapshot to the peer.
func (r *Router) Resync() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resyncLocked()
}

func (r *Router) resyncLocked() error {
	snap, err := EncodeSnapshot(r.store.Snapshot())
	if err != nil {
		return err
	}
	return r.transport.SendSnapshot(snap, r.store.AppliedSeq())
}

// HandleSnapshot restores the peer from a host snapshot.
func (r *Router) HandleSnapshot(snap []byte, seq uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, err := DecodeSnapshot(snap)
	if err != nil {
		return err
	}
	r.store.RestoreAt(g, seq)
	return nil
}

// AvailableActions proxies the legal-move query for presentation.
func (r *Router) AvailableActions() []protocol.ActionDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.AvailableActions()
}
