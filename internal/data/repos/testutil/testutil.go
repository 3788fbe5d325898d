package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/wordmesh/wordmesh-backend/internal/domain"
	"github.com/wordmesh/wordmesh-backend/internal/platform/logger"
)

var errMissingDSN = errors.New("missing TEST_POSTGRES_DSN")

var (
	dbOnce sync.Once
	db     *gorm.DB
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dbOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			dbErr = errMissingDSN
			return
		}

		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			dbErr = err
			return
		}

		if err := autoMigrateAll(db); err != nil {
			dbErr = err
			return
		}
	})

	if errors.Is(dbErr, errMissingDSN) {
		tb.Skip("set TEST_POSTGRES_DSN to run repo integration tests")
	}
	if dbErr != nil {
		tb.Fatalf("failed to init test db: %v", dbErr)
	}
	return db
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func autoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.UserToken{},
		&domain.Word{},
		&domain.UserWord{},
		&domain.UserSense{},
	); err != nil {
		return err
	}
	return db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uq_user_sense_primary
		ON "user_sense" ("user_word_id")
		WHERE "is_primary"
	`).Error
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *domain.User {
	tb.Helper()
	u := &domain.User{
		Email:       email,
		Password:    "pw",
		DisplayName: "tester",
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedWord(tb testing.TB, ctx context.Context, tx *gorm.DB, text, canonicalKey string) *domain.Word {
	tb.Helper()
	w := &domain.Word{Text: text, CanonicalKey: canonicalKey}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed word: %v", err)
	}
	return w
}

func SeedUserWord(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, wordID int64) *domain.UserWord {
	tb.Helper()
	uw := &domain.UserWord{UserID: userID, WordID: wordID}
	if err := tx.WithContext(ctx).Create(uw).Error; err != nil {
		tb.Fatalf("seed user word: %v", err)
	}
	return uw
}

func SeedUserSense(tb testing.TB, ctx context.Context, tx *gorm.DB, userWordID int64, text string, isPrimary bool) *domain.UserSense {
	tb.Helper()
	s := &domain.UserSense{
		UserWordID: userWordID,
		Text:       text,
		IsPrimary:  isPrimary,
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed user sense: %v", err)
	}
	return s
}

// UniqueEmail avoids collisions across packages sharing one test database.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.com", prefix, emailSeq.next())
}

type counter struct {
	mu sync.Mutex
	n  int
}

func (c *counter) next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

var emailSeq counter
