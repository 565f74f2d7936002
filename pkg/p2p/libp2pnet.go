package p2p

import (
	"context"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/angstrom-node/ucpnode/pkg/consensus"
)

// topicConsensus carries every round message kind as a gob-encoded
// consensus.ConsensusMessage: unlike the teacher's HotStuff transport, which
// split propose/prepare onto separate topics and sent votes unicast to the
// leader over a dedicated stream protocol, a round here has no unicast
// message at all — PreProposal, PreProposalAggregation, Proposal and
// EmptyBlockAttestation are each broadcast to every validator, so one topic
// carrying the tagged union is enough.
const topicConsensus = "ucp-consensus"

// Handlers is the inbound half of Network, mirroring the teacher's
// propose/prepare callback pair but collapsed to the one dispatch a round
// needs: Deliver already switches on which ConsensusMessage field is set.
type Handlers struct {
	OnMessage func(consensus.ConsensusMessage)
}

// Libp2pNet implements consensus.Network over a single gossipsub topic.
type Libp2pNet struct {
	h   host.Host
	ps  *pubsub.PubSub
	log *zap.SugaredLogger

	topic *pubsub.Topic
	sub   *pubsub.Subscription

	muH      sync.RWMutex
	handlers Handlers
}

type Libp2pConfig struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

func NewLibp2pNet(ctx context.Context, cfg Libp2pConfig) (*Libp2pNet, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	net := &Libp2pNet{h: h, ps: ps, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if net.topic, err = ps.Join(topicConsensus); err != nil {
		return nil, err
	}
	if net.sub, err = net.topic.Subscribe(); err != nil {
		return nil, err
	}

	go net.handleInbound(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return net, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

// implement consensus.Network

func (n *Libp2pNet) SetHandlers(h Handlers) { n.muH.Lock(); n.handlers = h; n.muH.Unlock() }

func (n *Libp2pNet) Host() host.Host { return n.h }

func (n *Libp2pNet) BroadcastPreProposal(p consensus.PreProposal) error {
	return n.publish(consensus.PropagatePreProposal(p))
}

func (n *Libp2pNet) BroadcastPreProposalAggregation(a consensus.PreProposalAggregation) error {
	return n.publish(consensus.PropagatePreProposalAgg(a))
}

func (n *Libp2pNet) BroadcastProposal(p consensus.Proposal) error {
	return n.publish(consensus.PropagateProposal(p))
}

func (n *Libp2pNet) BroadcastEmptyBlockAttestation(e consensus.EmptyBlockAttestation) error {
	return n.publish(consensus.PropagateEmptyBlockAttestation(e))
}

func (n *Libp2pNet) publish(msg consensus.ConsensusMessage) error {
	data, err := gobEncode(msg)
	if err != nil {
		return err
	}
	return n.topic.Publish(context.Background(), data)
}

var _ consensus.Network = (*Libp2pNet)(nil)

// inbound

func (n *Libp2pNet) handleInbound(ctx context.Context) {
	for {
		raw, err := n.sub.Next(ctx)
		if err != nil {
			return
		}

		var msg consensus.ConsensusMessage
		if err := gobDecode(raw.Data, &msg); err != nil {
			if n.log != nil {
				n.log.Warnw("consensus_message_decode_failed", "err", err)
			}
			continue
		}

		n.muH.RLock()
		h := n.handlers
		n.muH.RUnlock()
		if h.OnMessage != nil {
			h.OnMessage(msg)
		}
	}
}
