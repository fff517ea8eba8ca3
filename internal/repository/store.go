package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the tenant-scoped repositories that share one database handle.
// Repositories obtained from the Store passed to an Atomic callback run inside
// the same transaction.
type Store interface {
	Assets() AssetRepository
	Assignments() AssignmentRepository
	Incidents() IncidentRepository
	Activity() ActivityLogRepository
	Atomic(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore constructs a GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Assets() AssetRepository {
	return NewAssetRepository(s.db)
}

func (s *gormStore) Assignments() AssignmentRepository {
	return NewAssignmentRepository(s.db)
}

func (s *gormStore) Incidents() IncidentRepository {
	return NewIncidentRepository(s.db)
}

func (s *gormStore) Activity() ActivityLogRepository {
	return NewActivityLogRepository(s.db)
}

// Atomic runs fn inside a transaction; any error returned by fn rolls back every write.
func (s *gormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		return query
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	return query.Offset(offset).Limit(pageSize)
}
