// Package datastore persists users and analysis records behind a small
// storage interface with SQLite and MySQL implementations.
package datastore

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/safecity/safecity-go/internal/conf"
	"github.com/safecity/safecity-go/internal/errors"
)

// Not-found sentinels. Wrapped with category metadata at the call sites that
// need it; compare with errors.Is.
var (
	ErrUserNotFound   = errors.NewStd("datastore: user not found")
	ErrRecordNotFound = errors.NewStd("datastore: record not found")
)

// Interface abstracts the record store.
type Interface interface {
	Open() error
	Close() error

	CreateUser(user *User) error
	GetUserByID(id string) (*User, error)
	GetUserByUsername(username string) (*User, error)

	SaveRecord(record *Record) error
	GetRecords(userID string, limit int) ([]Record, error)
}

// DataStore implements the shared CRUD operations on top of a gorm DB.
// Driver-specific stores embed it and provide Open/Close.
type DataStore struct {
	DB *gorm.DB
}

// New selects a store implementation from settings. Exactly one output must
// be enabled; validation guarantees they are not both on.
func New(settings *conf.Settings) (Interface, error) {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, errors.Newf("no database output enabled in configuration").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// CreateUser inserts a new user. Duplicate usernames surface as a conflict.
func (ds *DataStore) CreateUser(user *User) error {
	if err := ds.DB.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.New(fmt.Errorf("username %q already exists: %w", user.Username, err)).
				Component("datastore").
				Category(errors.CategoryConflict).
				Build()
		}
		return dbError("create user", err)
	}
	return nil
}

// GetUserByID fetches a user by primary key.
func (ds *DataStore) GetUserByID(id string) (*User, error) {
	var user User
	if err := ds.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, dbError("get user", err)
	}
	return &user, nil
}

// GetUserByUsername fetches a user by unique username.
func (ds *DataStore) GetUserByUsername(username string) (*User, error) {
	var user User
	if err := ds.DB.First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, dbError("get user", err)
	}
	return &user, nil
}

// SaveRecord inserts one analysis record.
func (ds *DataStore) SaveRecord(record *Record) error {
	if err := ds.DB.Create(record).Error; err != nil {
		return dbError("save record", err)
	}
	return nil
}

// GetRecords returns a user's analysis records, newest first. limit <= 0
// means no limit.
func (ds *DataStore) GetRecords(userID string, limit int) ([]Record, error) {
	query := ds.DB.Where("user_id = ?", userID).Order("timestamp DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []Record
	if err := query.Find(&records).Error; err != nil {
		return nil, dbError("get records", err)
	}
	return records, nil
}

func dbError(op string, err error) error {
	return errors.New(fmt.Errorf("%s: %w", op, err)).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
}

// createGormLogger keeps gorm quiet except for slow queries and errors.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		log.New(os.Stderr, "gorm: ", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&User{}, &Record{}); err != nil {
		return errors.New(fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}
	return nil
}
