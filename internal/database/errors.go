package database

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Class groups storage failures by what a caller can do about them.
type Class int

const (
	ClassOther Class = iota
	ClassUnique
	ClassForeignKey
	ClassConstraint
	ClassIO
)

func (c Class) String() string {
	switch c {
	case ClassUnique:
		return "unique"
	case ClassForeignKey:
		return "foreign_key"
	case ClassConstraint:
		return "constraint"
	case ClassIO:
		return "io"
	default:
		return "other"
	}
}

// StorageError is returned by every gateway operation that fails.
type StorageError struct {
	Op    string
	Class Class
	Err   error
}

func (e *StorageError) Error() string {
	return "storage " + e.Op + " (" + e.Class.String() + "): " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Class: classify(err), Err: err}
}

func classify(err error) Class {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ClassUnique
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return ClassForeignKey
	case errors.Is(err, ErrDisconnected):
		return ClassIO
	}

	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return ClassUnique
		case sqlite3.ErrConstraintForeignKey:
			return ClassForeignKey
		}
		switch sqErr.Code {
		case sqlite3.ErrConstraint:
			// ON DELETE RESTRICT reports the bare primary code.
			if strings.Contains(sqErr.Error(), "FOREIGN KEY constraint failed") {
				return ClassForeignKey
			}
			return ClassConstraint
		case sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrCorrupt, sqlite3.ErrNotADB,
			sqlite3.ErrFull, sqlite3.ErrReadonly:
			return ClassIO
		}
	}
	return ClassOther
}

func classOf(err error) Class {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Class
	}
	return ClassOther
}

// IsUnique reports a uniqueness violation anywhere in err's chain.
func IsUnique(err error) bool { return classOf(err) == ClassUnique }

// IsForeignKey reports a referential-integrity violation.
func IsForeignKey(err error) bool { return classOf(err) == ClassForeignKey }

// IsConstraint reports any constraint violation, unique and foreign key included.
func IsConstraint(err error) bool {
	switch classOf(err) {
	case ClassUnique, ClassForeignKey, ClassConstraint:
		return true
	}
	return false
}
