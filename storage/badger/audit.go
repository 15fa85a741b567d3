package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/litreview/core"
	"github.com/poiesic/litreview/storage"
)

// AuditRepository implements storage.AuditRepository for BadgerDB.
type AuditRepository struct {
	backend *Backend
}

var _ storage.AuditRepository = (*AuditRepository)(nil)

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(backend *Backend) *AuditRepository {
	return &AuditRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend owns the database handle.
func (r *AuditRepository) Close() error {
	return nil
}

// AppendAuditRecord stores a record unless one exists for the same iteration.
func (r *AuditRepository) AppendAuditRecord(ctx context.Context, record *core.AuditRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeAuditKey(record.RunID, record.Iteration)

		_, err := tx.Get(key)
		if err == nil {
			return storage.ErrDuplicateKey
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		if record.RecordedAt.IsZero() {
			record.RecordedAt = time.Now().UTC().Truncate(time.Microsecond)
		}
		if err := tx.Set(key, storage.MarshalAuditRecord(record)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListAuditRecords returns one run's records ordered by iteration.
func (r *AuditRepository) ListAuditRecords(ctx context.Context, runID string) ([]*core.AuditRecord, error) {
	var records []*core.AuditRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialAuditKey(runID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.AuditRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalAuditRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	}, false)
	return records, err
}

// ListRuns returns the distinct run ids in key order.
func (r *AuditRepository) ListRuns(ctx context.Context) ([]string, error) {
	var runs []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = auditRecordKeyPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		last := ""
		for iter.Rewind(); iter.Valid(); iter.Next() {
			runID := runIDFromAuditKey(iter.Item().Key())
			if runID != "" && runID != last {
				runs = append(runs, runID)
				last = runID
			}
		}
		return nil
	}, false)
	return runs, err
}
