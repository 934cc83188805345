package repository

import (
	"errors"

	"github.com/amirasaad/tenantledger/pkg/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	pgUniqueViolation   = "23505"
	pgLockNotAvailable  = "55P03"
	pgSerializationFail = "40001"
)

// MapGormErrorToDomain converts GORM and driver errors to domain errors.
// Traverses the error chain so wrapped errors are recognised too.
func MapGormErrorToDomain(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return domain.ErrAlreadyExists
		case pgLockNotAvailable, pgSerializationFail:
			return domain.ErrLockNotAvailable
		}
	}

	currentErr := err
	for currentErr != nil {
		switch {
		case errors.Is(currentErr, gorm.ErrDuplicatedKey):
			return domain.ErrAlreadyExists
		case errors.Is(currentErr, gorm.ErrRecordNotFound):
			return domain.ErrNotFound
		}
		currentErr = errors.Unwrap(currentErr)
	}

	return err
}

// WrapError runs a GORM operation and maps its error.
//
// Usage:
//
//	err := WrapError(func() error {
//	    return r.db.WithContext(ctx).Create(&m).Error
//	})
func WrapError(op func() error) error {
	return MapGormErrorToDomain(op())
}
