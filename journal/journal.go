// Package journal keeps a hash-chained audit trail of committed auction events.
//
// Each entry carries the CBOR encoding of one event and a hash that commits to
// the previous entry, so any edit, reordering or truncation in the middle of a
// journal is detected by Verify.
package journal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fxamacker/cbor/v2"
	golog "github.com/ipfs/go-log/v2"
	"github.com/oklog/ulid/v2"

	"github.com/cloudx-io/assetauction/core"
)

var log = golog.Logger("auction/journal")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// ErrBrokenChain is returned by Verify when entries do not form a valid chain.
var ErrBrokenChain = errors.New("journal chain broken")

// Entry is one journaled event.
type Entry struct {
	Seq      uint64    `cbor:"1,keyasint"`
	ID       ulid.ULID `cbor:"2,keyasint"`
	Kind     string    `cbor:"3,keyasint"`
	Time     time.Time `cbor:"4,keyasint"`
	Payload  []byte    `cbor:"5,keyasint"`
	PrevHash string    `cbor:"6,keyasint"`
	Hash     string    `cbor:"7,keyasint"`
}

// Journal appends events as they are delivered. It is safe for concurrent use.
type Journal struct {
	clock clock.Clock

	lk      sync.Mutex
	enc     *cbor.Encoder
	entropy *ulid.MonotonicEntropy
	entries []Entry
	head    string
}

// New returns an empty journal. When w is not nil every entry is also written
// to it as a CBOR sequence.
func New(clk clock.Clock, w io.Writer) *Journal {
	if clk == nil {
		clk = clock.New()
	}
	j := &Journal{clock: clk}
	if w != nil {
		j.enc = encMode.NewEncoder(w)
	}
	return j
}

// Emit journals ev. Failures are logged; a committed event is never refused.
func (j *Journal) Emit(_ context.Context, ev core.Event) {
	if _, err := j.Append(ev); err != nil {
		log.Errorf("journaling %s: %v", ev.Kind(), err)
	}
}

// Append journals ev and returns its entry.
func (j *Journal) Append(ev core.Event) (Entry, error) {
	payload, err := encMode.Marshal(ev)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding %s: %w", ev.Kind(), err)
	}

	j.lk.Lock()
	defer j.lk.Unlock()

	now := j.clock.Now().UTC()
	id, err := j.newID(now)
	if err != nil {
		return Entry{}, err
	}
	seq := uint64(len(j.entries)) + 1
	kind := ev.Kind().String()
	e := Entry{
		Seq:      seq,
		ID:       id,
		Kind:     kind,
		Time:     now,
		Payload:  payload,
		PrevHash: j.head,
		Hash:     core.ComputeEventHash(j.head, seq, kind, payload),
	}
	if j.enc != nil {
		if err := j.enc.Encode(e); err != nil {
			return Entry{}, fmt.Errorf("writing entry %d: %w", seq, err)
		}
	}
	j.entries = append(j.entries, e)
	j.head = e.Hash
	log.Debugf("journaled %s as entry %d (%s)", kind, seq, id)
	return e, nil
}

func (j *Journal) newID(t time.Time) (ulid.ULID, error) {
	if j.entropy == nil {
		j.entropy = ulid.Monotonic(rand.Reader, 0)
	}
	id, err := ulid.New(ulid.Timestamp(t), j.entropy)
	if errors.Is(err, ulid.ErrMonotonicOverflow) {
		j.entropy = nil
		return j.newID(t)
	} else if err != nil {
		return ulid.ULID{}, fmt.Errorf("generating id: %v", err)
	}
	return id, nil
}

// Entries returns a copy of every entry in order.
func (j *Journal) Entries() []Entry {
	j.lk.Lock()
	defer j.lk.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Head returns the hash of the last entry, empty for an empty journal.
func (j *Journal) Head() string {
	j.lk.Lock()
	defer j.lk.Unlock()
	return j.head
}

// Verify checks that entries form one unbroken chain starting at sequence 1.
func Verify(entries []Entry) error {
	prev := ""
	var prevID ulid.ULID
	for i, e := range entries {
		if e.Seq != uint64(i)+1 {
			return fmt.Errorf("entry %d has sequence %d: %w", i+1, e.Seq, ErrBrokenChain)
		}
		if e.PrevHash != prev {
			return fmt.Errorf("entry %d does not follow its predecessor: %w", e.Seq, ErrBrokenChain)
		}
		if want := core.ComputeEventHash(prev, e.Seq, e.Kind, e.Payload); e.Hash != want {
			return fmt.Errorf("entry %d hash mismatch: %w", e.Seq, ErrBrokenChain)
		}
		if i > 0 && e.ID.Compare(prevID) <= 0 {
			return fmt.Errorf("entry %d id is not increasing: %w", e.Seq, ErrBrokenChain)
		}
		prev, prevID = e.Hash, e.ID
	}
	return nil
}

// ReadAll decodes a CBOR sequence of entries written by a Journal.
func ReadAll(r io.Reader) ([]Entry, error) {
	dec := decMode.NewDecoder(r)
	var out []Entry
	for {
		var e Entry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decoding entry %d: %w", len(out)+1, err)
		}
		out = append(out, e)
	}
}

// Decode returns the event carried by e.
func Decode(e Entry) (core.Event, error) {
	var (
		ev  core.Event
		err error
	)
	switch e.Kind {
	case core.EventAuctionCreated.String():
		ev, err = decodeAs[core.AuctionCreated](e.Payload)
	case core.EventAuctionCancelled.String():
		ev, err = decodeAs[core.AuctionCancelled](e.Payload)
	case core.EventBidPlaced.String():
		ev, err = decodeAs[core.BidPlaced](e.Payload)
	case core.EventAssetClaimed.String():
		ev, err = decodeAs[core.AssetClaimed](e.Payload)
	case core.EventBalanceUpdated.String():
		ev, err = decodeAs[core.BalanceUpdated](e.Payload)
	default:
		return nil, fmt.Errorf("entry %d: unknown event kind %q", e.Seq, e.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("entry %d: decoding %s: %w", e.Seq, e.Kind, err)
	}
	return ev, nil
}

func decodeAs[T core.Event](payload []byte) (core.Event, error) {
	var v T
	if err := decMode.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}
