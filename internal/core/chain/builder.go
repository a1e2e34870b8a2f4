package chain

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/erik-marten/VeriLog/pkg/crypto/ecsig"
)

// TimeFormat is the layout of the ts field.
const TimeFormat = time.RFC3339Nano

// Builder produces signed entries for one actor and signing key.
type Builder struct {
	signer ecsig.Signer
	actor  string
}

// NewBuilder creates a Builder.
func NewBuilder(signer ecsig.Signer, actor string) (*Builder, error) {
	if signer == nil {
		return nil, errors.New("chain: signer is required")
	}
	return &Builder{signer: signer, actor: actor}, nil
}

// KeyID returns the signer's key id.
func (b *Builder) KeyID() string {
	return b.signer.KeyID()
}

// Build creates the next entry of st and advances st past it.
//
// On error st is left unchanged, so no sequence number is consumed.
func (b *Builder) Build(st *State, eventType string, event map[string]any, ts time.Time) (*Entry, error) {
	if event == nil {
		event = map[string]any{}
	}
	e := &Entry{
		Version:   Version,
		Seq:       st.nextSeq,
		TS:        ts.UTC().Format(TimeFormat),
		Actor:     b.actor,
		EventType: eventType,
		Event:     event,
		PrevHash:  st.prevHash,
		KeyID:     b.signer.KeyID(),
	}

	sum, err := e.hashBytes()
	if err != nil {
		return nil, err
	}
	sig, err := b.signer.Sign(sum)
	if err != nil {
		return nil, fmt.Errorf("chain: sign seq %d: %w", e.Seq, err)
	}

	e.EntryHash = hex.EncodeToString(sum)
	e.Sig = base64.StdEncoding.EncodeToString(sig)
	st.advance(e.EntryHash)
	return e, nil
}
