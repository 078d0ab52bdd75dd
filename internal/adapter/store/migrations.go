package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"resumerag/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment domain.SchemaVersion when making breaking changes to the storage format.
const CurrentSchemaVersion = domain.SchemaVersion

func (s *BoltStore) migrate() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketDocIDs, bucketChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
}

// SchemaInfo returns the stored schema record, zero if none was written.
func (s *BoltStore) SchemaInfo(ctx context.Context) (domain.SchemaInfo, error) {
	var info domain.SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keySchema)
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &info)
	})
	return info, err
}

func (s *BoltStore) SetSchemaInfo(ctx context.Context, info domain.SchemaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchema, data)
	})
}

// Clear removes all documents and chunks but keeps the schema record.
func (s *BoltStore) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDocs, bucketDocIDs, bucketChunks} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
}
