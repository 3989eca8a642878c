package p2p

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/tofuri-net/tofuri/internal/store"
)

// BanRecord is a persisted ban entry.
type BanRecord struct {
	ID        string `json:"id"`         // libp2p peer ID, string form
	EventID   string `json:"event_id"`   // unique id for this ban event, for log correlation
	Reason    string `json:"reason"`     // why banned
	Score     int    `json:"score"`      // accumulated misbehavior score at ban time
	BannedAt  int64  `json:"banned_at"`  // unix seconds
	ExpiresAt int64  `json:"expires_at"` // unix seconds, 0 = permanent
}

// newEventID generates the correlation id stamped on a new ban record
// so the in-memory ban log and the persisted record can be tied back
// to the same event during investigation.
func newEventID() string {
	return uuid.NewString()
}

// IsExpired reports whether the ban has a non-zero expiry that has passed.
func (r *BanRecord) IsExpired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}

// BanStore persists ban records under a "ban/" sub-namespace of the
// store's peer namespace (§6.3: peer is the namespace p2p state lives
// under; bans are peer-identified, so they share it rather than adding
// a seventh top-level namespace the store layer would need to know
// about).
type BanStore struct {
	db *store.PrefixDB
}

// NewBanStore wraps the store's peer namespace with a ban sub-prefix.
func NewBanStore(peers *store.PrefixDB) *BanStore {
	return &BanStore{db: store.NewPrefixDB(peers, []byte("ban/"))}
}

// Get retrieves a ban record by peer ID.
func (bs *BanStore) Get(id peer.ID) (*BanRecord, error) {
	data, err := bs.db.Get([]byte(id.String()))
	if err != nil {
		return nil, err
	}
	var rec BanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal ban record: %w", err)
	}
	return &rec, nil
}

// Put persists a ban record.
func (bs *BanStore) Put(rec *BanRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal ban record: %w", err)
	}
	return bs.db.Put([]byte(rec.ID), data)
}

// Delete removes a ban record.
func (bs *BanStore) Delete(id peer.ID) error {
	return bs.db.Delete([]byte(id.String()))
}

// ForEach iterates over all ban records.
func (bs *BanStore) ForEach(fn func(*BanRecord) error) error {
	return bs.db.ForEach(nil, func(_, value []byte) error {
		var rec BanRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			return nil // skip corrupt records
		}
		return fn(&rec)
	})
}

// PruneExpired removes every expired ban record and returns the count removed.
func (bs *BanStore) PruneExpired(now time.Time) (int, error) {
	var stale []string
	err := bs.ForEach(func(rec *BanRecord) error {
		if rec.IsExpired(now) {
			stale = append(stale, rec.ID)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate for prune: %w", err)
	}
	for _, id := range stale {
		if err := bs.db.Delete([]byte(id)); err != nil {
			return 0, fmt.Errorf("delete expired ban: %w", err)
		}
	}
	return len(stale), nil
}
