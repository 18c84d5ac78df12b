package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketStates = []byte("device_states")
	bucketEvents = []byte("events")
)

// defaultJournalCap bounds the per-device event journal; the oldest entries
// are pruned on append.
const defaultJournalCap = 512

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db         *bolt.DB
	journalCap int
}

// NewBoltStore opens or creates a BoltDB database.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketStates, bucketEvents} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &BoltStore{db: db, journalCap: defaultJournalCap}, nil
}

func (s *BoltStore) SaveDeviceState(st *DeviceState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStates)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketStates)
		}
		data, err := json.Marshal(st)
		if err != nil {
			return err
		}
		return b.Put([]byte(st.Device), data)
	})
}

func (s *BoltStore) GetDeviceState(device string) (*DeviceState, error) {
	var st DeviceState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStates)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketStates)
		}
		data := b.Get([]byte(device))
		if data == nil {
			return fmt.Errorf("device state %s: %w", device, ErrNotFound)
		}
		return json.Unmarshal(data, &st)
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *BoltStore) ListDeviceStates() ([]*DeviceState, error) {
	var states []*DeviceState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStates)
		if b == nil {
			return nil // no bucket = no devices
		}
		states = make([]*DeviceState, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			var st DeviceState
			if err := json.Unmarshal(v, &st); err != nil {
				return err
			}
			states = append(states, &st)
			return nil
		})
	})
	return states, err
}

func (s *BoltStore) UpdateDeviceState(device string, fn func(st *DeviceState) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStates)
		if b == nil {
			return fmt.Errorf("bucket %q not found", bucketStates)
		}
		st := DeviceState{Device: device}
		if data := b.Get([]byte(device)); data != nil {
			if err := json.Unmarshal(data, &st); err != nil {
				return err
			}
		}
		if err := fn(&st); err != nil {
			return err
		}
		st.Device = device
		data, err := json.Marshal(&st)
		if err != nil {
			return err
		}
		return b.Put([]byte(device), data)
	})
}

func (s *BoltStore) AppendEvent(rec *EventRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketEvents)
		if root == nil {
			return fmt.Errorf("bucket %q not found", bucketEvents)
		}
		b, err := root.CreateBucketIfNotExists([]byte(rec.Device))
		if err != nil {
			return err
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := b.Put(key, data); err != nil {
			return err
		}

		// Prune the oldest entries past the retention cap.
		count := 0
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			count++
		}
		if count > s.journalCap {
			c := b.Cursor()
			for k, _ := c.First(); k != nil && count > s.journalCap; k, _ = c.Next() {
				if err := c.Delete(); err != nil {
					return err
				}
				count--
			}
		}
		return nil
	})
}

func (s *BoltStore) RecentEvents(device string, limit int) ([]*EventRecord, error) {
	var events []*EventRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(bucketEvents)
		if root == nil {
			return nil
		}
		b := root.Bucket([]byte(device))
		if b == nil {
			return nil // no events recorded yet
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(events) >= limit {
				break
			}
			var rec EventRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			events = append(events, &rec)
		}
		return nil
	})
	return events, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
