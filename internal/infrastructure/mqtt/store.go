package mqtt

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"

	"github.com/nerrad567/deepsleep-agent/internal/infrastructure/database"
)

// storeOpTimeout bounds each SQLite statement issued by the store.
// paho's Store interface carries no context.
const storeOpTimeout = 5 * time.Second

// Compile-time check that SQLiteStore satisfies paho's Store.
var _ pahomqtt.Store = (*SQLiteStore)(nil)

// SQLiteStore is a paho Store backed by the mqtt_outbound table.
//
// paho writes every in-flight QoS 1/2 packet to the store before sending
// it and deletes it on acknowledgement. Keeping the store on disk means
// readings taken while the broker is unreachable are delivered after a
// reconnect, and also after the agent itself restarts.
//
// paho calls the store from several goroutines; the mutex serialises
// access alongside the single SQLite connection.
type SQLiteStore struct {
	db     *database.DB
	mu     sync.Mutex
	opened bool
	logger Logger
}

// NewSQLiteStore creates a store on an already migrated database.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// SetLogger sets a logger for storage failures, which the Store interface
// cannot return to paho.
func (s *SQLiteStore) SetLogger(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Open marks the store usable. The database itself is owned by the caller.
func (s *SQLiteStore) Open() {
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
}

// Close marks the store unusable. The database is not closed.
func (s *SQLiteStore) Close() {
	s.mu.Lock()
	s.opened = false
	s.mu.Unlock()
}

// Put stores a packet under key, replacing any previous packet.
func (s *SQLiteStore) Put(key string, m packets.ControlPacket) {
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		s.warn("encoding packet for store", key, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO mqtt_outbound (key, packet, created_at) VALUES (?, ?, ?)`,
		key, buf.Bytes(), time.Now().UnixNano(),
	)
	if err != nil {
		s.warnLocked("writing packet to store", key, err)
	}
}

// Get returns the packet stored under key, or nil if absent or unreadable.
func (s *SQLiteStore) Get(key string) packets.ControlPacket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	var raw []byte
	if err := s.db.QueryRowContext(ctx,
		`SELECT packet FROM mqtt_outbound WHERE key = ?`, key,
	).Scan(&raw); err != nil {
		return nil
	}

	pkt, err := packets.ReadPacket(bytes.NewReader(raw))
	if err != nil {
		s.warnLocked("decoding stored packet", key, err)
		return nil
	}
	return pkt
}

// All returns every stored key, oldest first.
func (s *SQLiteStore) All() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return nil
	}

	keys, err := s.keysLocked()
	if err != nil {
		s.warnLocked("listing stored packets", "", err)
		return nil
	}
	return keys
}

// Del removes the packet stored under key.
func (s *SQLiteStore) Del(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM mqtt_outbound WHERE key = ?`, key); err != nil {
		s.warnLocked("deleting packet from store", key, err)
	}
}

// Reset removes every stored packet.
func (s *SQLiteStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM mqtt_outbound`); err != nil {
		s.warnLocked("resetting store", "", err)
	}
}

// Len returns the number of packets awaiting acknowledgement.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mqtt_outbound`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting stored packets: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) keysLocked() ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM mqtt_outbound ORDER BY created_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) warn(msg, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnLocked(msg, key, err)
}

func (s *SQLiteStore) warnLocked(msg, key string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, "key", key, "error", err)
	}
}
