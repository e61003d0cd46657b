package dbft

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/meridianchain/dbft/pkg/dbft/payload"
)

// maxCachedHeights bounds how many future heights' messages are held in
// memory at once; the least recently read or written height is evicted
// first (§5, "bounded cache of future-height payloads").
const maxCachedHeights = 10

// messageBox groups cached payloads for one height by message kind, the
// shape `start` replays them in (§9).
type messageBox struct {
	prepare []payload.ConsensusPayload
	chViews []payload.ConsensusPayload
	commit  []payload.ConsensusPayload
}

// cache holds payloads received for a height other than the Context's
// current one, to be replayed once the Context reaches that height.
type cache struct {
	mail *lru.Cache
}

func newCache() cache {
	c, _ := lru.New(maxCachedHeights)
	return cache{mail: c}
}

func (c cache) getHeight(h uint32) *messageBox {
	v, ok := c.mail.Get(h)
	if !ok {
		return nil
	}
	return v.(*messageBox)
}

func (c cache) addMessage(m payload.ConsensusPayload) {
	var box *messageBox

	if v, ok := c.mail.Get(m.Height()); ok {
		box = v.(*messageBox)
	} else {
		box = &messageBox{}
	}

	switch m.Type() {
	case payload.ChangeViewType:
		box.chViews = append(box.chViews, m)
	case payload.PrepareRequestType, payload.PrepareResponseType:
		box.prepare = append(box.prepare, m)
	case payload.CommitType:
		box.commit = append(box.commit, m)
	default:
		return
	}

	c.mail.Add(m.Height(), box)
}
