// Package state persists per-device processing state between runs:
// the trip lifecycle machine and the last known fix.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"github.com/roamtrack/tripd/geo/lifecycle"
	"github.com/roamtrack/tripd/params"
	"github.com/roamtrack/tripd/types/fix"
	"go.etcd.io/bbolt"
)

const deviceDBName = "state.db"

var (
	lifecycleBucket = []byte("lifecycle")
	lastKnownBucket = []byte("lastknown")
)

type Device struct {
	DeviceID string
	State    *DeviceState
}

// DeviceState is the open handle on one device's persisted state.
type DeviceState struct {
	DeviceID string
	DB       *bbolt.DB

	// TTLCache fronts the last-known fix so status queries do not hit
	// the DB. Entries expire after params.CacheLastKnownTTL.
	TTLCache *ttlcache.Cache[string, *fix.Annotated]
	Waiting  sync.WaitGroup
	rOnly    bool
}

// NewDeviceState opens the device's state DB, creating its data dir if
// needed. Opening a writable conn blocks all other writers and readers
// with essentially a file lock/flock.
func (d *Device) NewDeviceState(readOnly bool) (*DeviceState, error) {
	dir := params.DeviceDataDir(d.DeviceID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(filepath.Join(dir, deviceDBName),
		0600, &bbolt.Options{
			ReadOnly: readOnly,
		})
	if err != nil {
		return nil, err
	}

	cache := ttlcache.New[string, *fix.Annotated](
		ttlcache.WithTTL[string, *fix.Annotated](params.CacheLastKnownTTL))
	go cache.Start()

	s := &DeviceState{
		DeviceID: d.DeviceID,
		DB:       db,
		TTLCache: cache,
		rOnly:    readOnly,
	}
	d.State = s
	return d.State, nil
}

func (s *DeviceState) Wait() {
	s.Waiting.Wait()
}

func (s *DeviceState) Close() error {
	s.TTLCache.Stop()
	return s.DB.Close()
}

func (s *DeviceState) storeKV(bucket, key, data []byte) error {
	if key == nil {
		return fmt.Errorf("storeKV: nil key")
	}
	if data == nil {
		return fmt.Errorf("storeKV: nil data")
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *DeviceState) readKV(bucket, key []byte) ([]byte, error) {
	buf := bytes.NewBuffer([]byte{})
	err := s.DB.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		// The value returned by Get is only valid in the scope of the
		// transaction.
		got := b.Get(key)
		if got == nil {
			return nil
		}
		_, err := buf.Write(got)
		return err
	})
	return buf.Bytes(), err
}

// StoreLifecycle persists the lifecycle machine's snapshot for this
// device, replacing any previous one.
func (s *DeviceState) StoreLifecycle(st *lifecycle.DeviceState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	err = s.storeKV(lifecycleBucket, []byte(s.DeviceID), b)
	if err != nil {
		slog.Error("Failed to store lifecycle state", "device", s.DeviceID, "error", err)
	}
	return err
}

// ReadLifecycle returns the persisted lifecycle snapshot, or (nil, nil)
// when the device has none yet.
func (s *DeviceState) ReadLifecycle() (*lifecycle.DeviceState, error) {
	got, err := s.readKV(lifecycleBucket, []byte(s.DeviceID))
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		return nil, nil
	}
	st := &lifecycle.DeviceState{}
	if err := json.Unmarshal(got, st); err != nil {
		return nil, fmt.Errorf("%w: %q", err, string(got))
	}
	return st, nil
}

// StoreLastKnown records the device's most recent fix, in cache and DB.
func (s *DeviceState) StoreLastKnown(f *fix.Annotated) error {
	s.TTLCache.Set("last", f, ttlcache.DefaultTTL)
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.storeKV(lastKnownBucket, []byte("last"), b)
}

// ReadLastKnown returns the most recent fix, from cache when warm.
// (nil, nil) when the device has never reported.
func (s *DeviceState) ReadLastKnown() (*fix.Annotated, error) {
	if item := s.TTLCache.Get("last"); item != nil {
		return item.Value(), nil
	}
	got, err := s.readKV(lastKnownBucket, []byte("last"))
	if err != nil {
		return nil, err
	}
	if len(got) == 0 {
		return nil, nil
	}
	f := &fix.Annotated{}
	if err := json.Unmarshal(got, f); err != nil {
		return nil, fmt.Errorf("%w: %q", err, string(got))
	}
	s.TTLCache.Set("last", f, ttlcache.DefaultTTL)
	return f, nil
}
