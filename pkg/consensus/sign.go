package consensus

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/angstrom-node/ucpnode/pkg/types"
)

// The four signingPayload helpers build the deterministic byte string each
// message type signs over: height, sender, and content, in a fixed field
// order, hashed with Keccak256 the way pkg/crypto's EIP-712 signer already
// hashes everything else it signs. No wire-encoding guarantees beyond
// "stable within one process" are needed here, since nothing outside
// consensus ever has to reproduce this hash independently.
func preProposalPayload(height types.BlockNumber, validator types.Address, limit, searcher []types.Hash) []byte {
	buf := appendHeightAddr(nil, height, validator)
	buf = appendHashes(buf, limit)
	buf = appendHashes(buf, searcher)
	return crypto.Keccak256(buf)
}

func aggregationPayload(height types.BlockNumber, validator types.Address, preProposals []PreProposal) []byte {
	buf := appendHeightAddr(nil, height, validator)
	for _, p := range preProposals {
		buf = append(buf, p.signingPayload()...)
	}
	return crypto.Keccak256(buf)
}

func proposalPayload(height types.BlockNumber, leader types.Address, payload []byte) []byte {
	buf := appendHeightAddr(nil, height, leader)
	buf = append(buf, payload...)
	return crypto.Keccak256(buf)
}

func emptyBlockPayload(height types.BlockNumber, leader types.Address) []byte {
	buf := appendHeightAddr(nil, height, leader)
	return crypto.Keccak256(buf)
}

func appendHeightAddr(buf []byte, height types.BlockNumber, addr types.Address) []byte {
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], uint64(height))
	buf = append(buf, h[:]...)
	return append(buf, addr[:]...)
}

func appendHashes(buf []byte, hashes []types.Hash) []byte {
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return buf
}

// signPreProposal, signAggregation, signProposal and signEmptyBlock fill in
// a message's Signature field in place using the round's own signer.
func signPreProposal(s Signer, p *PreProposal) error {
	sig, err := s.Sign(p.signingPayload())
	if err != nil {
		return err
	}
	p.Signature = sig
	return nil
}

func signAggregation(s Signer, a *PreProposalAggregation) error {
	sig, err := s.Sign(a.signingPayload())
	if err != nil {
		return err
	}
	a.Signature = sig
	return nil
}

func signProposal(s Signer, p *Proposal) error {
	sig, err := s.Sign(p.signingPayload())
	if err != nil {
		return err
	}
	p.Signature = sig
	return nil
}

func signEmptyBlock(s Signer, e *EmptyBlockAttestation) error {
	sig, err := s.Sign(e.signingPayload())
	if err != nil {
		return err
	}
	e.Signature = sig
	return nil
}
