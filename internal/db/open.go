package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Backend identifies the storage engine selected by a DSN.
type Backend string

const (
	// BackendPostgres stores records in PostgreSQL through GORM.
	BackendPostgres Backend = "postgres"
	// BackendSQLite stores records in a SQLite file through GORM.
	BackendSQLite Backend = "sqlite"
	// BackendMongo stores records as MongoDB documents.
	BackendMongo Backend = "mongo"
)

// BackendForDSN infers the storage backend from a DSN.
func BackendForDSN(dsn string) (Backend, error) {
	lowered := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case lowered == "":
		return "", fmt.Errorf("db: empty dsn")
	case strings.HasPrefix(lowered, "mongodb://"), strings.HasPrefix(lowered, "mongodb+srv://"):
		return BackendMongo, nil
	case strings.HasPrefix(lowered, "postgres://"), strings.HasPrefix(lowered, "postgresql://"),
		strings.Contains(lowered, "host=") && strings.Contains(lowered, "dbname="):
		return BackendPostgres, nil
	case strings.HasPrefix(lowered, "file:"), strings.HasSuffix(lowered, ".db"), lowered == ":memory:":
		return BackendSQLite, nil
	default:
		return "", fmt.Errorf("db: unsupported dsn")
	}
}

// Open opens a GORM connection for a PostgreSQL or SQLite DSN.
func Open(dsn string) (*gorm.DB, error) {
	backend, err := BackendForDSN(dsn)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	var conn *gorm.DB
	switch backend {
	case BackendPostgres:
		conn, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case BackendSQLite:
		conn, err = gorm.Open(sqlite.Open(buildSQLiteDSN(dsn)), gormCfg)
	default:
		return nil, fmt.Errorf("db: %s is not a relational backend", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", backend, err)
	}

	if backend == BackendSQLite {
		sqlDB, errDB := conn.DB()
		if errDB != nil {
			return nil, fmt.Errorf("db: sql handle: %w", errDB)
		}
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	log.Debugf("db: opened %s connection", backend)
	return conn, nil
}

// Close releases the underlying connection pool.
func Close(conn *gorm.DB) error {
	if conn == nil {
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// buildSQLiteDSN appends default pragmas unless the DSN already carries parameters.
func buildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == ":memory:" {
		return dsn
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?" + strings.Join([]string{
		"_pragma=busy_timeout(5000)",
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
	}, "&")
}
