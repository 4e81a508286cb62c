package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/craterhub/downloads-accounting/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")

	var dsn string
	var err error

	if dbHost != "" {
		dbPort := os.Getenv("TEST_DB_PORT")
		dbUser := os.Getenv("TEST_DB_USER")
		dbPassword := os.Getenv("TEST_DB_PASSWORD")
		dbName := os.Getenv("TEST_DB_NAME")
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)
	} else {
		// Start a PostgreSQL container for testing
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			terminateContainer(ctx)
			os.Exit(1)
		}
	}

	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	if err := Migrate(testDB); err != nil {
		fmt.Printf("Failed to migrate database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	code := m.Run()

	terminateContainer(ctx)
	os.Exit(code)
}

func terminateContainer(ctx context.Context) {
	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}
}

// initPGTestDB returns a store over a transaction that rolls back after the
// test, so tests never see each other's rows
func initPGTestDB(t *testing.T) (Store, *gorm.DB) {
	tx := testDB.Begin()
	require.NotNil(t, tx)
	require.NoError(t, tx.Error)

	t.Cleanup(func() {
		tx.Rollback()
	})

	return NewPGStore(tx), tx
}

func seedProject(t *testing.T, tx *gorm.DB, id string, downloads int64) {
	require.NoError(t, tx.Create(&schema.Project{
		ID:        id,
		Slug:      id + "-slug",
		Name:      id,
		Downloads: downloads,
	}).Error)
}

func seedVersion(t *testing.T, tx *gorm.DB, id, projectID string, downloads int64) {
	require.NoError(t, tx.Create(&schema.Version{
		ID:            id,
		ProjectID:     projectID,
		VersionNumber: "1.0.0",
		Downloads:     downloads,
	}).Error)
}

func TestIncrementVersionDownloads(t *testing.T) {
	s, tx := initPGTestDB(t)
	ctx := context.Background()

	seedProject(t, tx, "proj-a", 0)
	seedVersion(t, tx, "ver-1", "proj-a", 5)

	require.NoError(t, s.IncrementVersionDownloads(ctx, "ver-1", 3))

	var version schema.Version
	require.NoError(t, tx.First(&version, "id = ?", "ver-1").Error)
	assert.Equal(t, int64(8), version.Downloads)
}

func TestIncrementVersionDownloads_NotFound(t *testing.T) {
	s, _ := initPGTestDB(t)

	err := s.IncrementVersionDownloads(context.Background(), "missing", 1)
	assert.Error(t, err)
}

func TestIncrementProjectDownloads(t *testing.T) {
	s, tx := initPGTestDB(t)
	ctx := context.Background()

	seedProject(t, tx, "proj-a", 100)

	require.NoError(t, s.IncrementProjectDownloads(ctx, "proj-a", 7))

	var project schema.Project
	require.NoError(t, tx.First(&project, "id = ?", "proj-a").Error)
	assert.Equal(t, int64(107), project.Downloads)
}

func TestIncrementProjectDownloads_NotFound(t *testing.T) {
	s, _ := initPGTestDB(t)

	err := s.IncrementProjectDownloads(context.Background(), "missing", 1)
	assert.Error(t, err)
}

func TestUpsertDailyDownloads(t *testing.T) {
	s, tx := initPGTestDB(t)
	ctx := context.Background()

	seedProject(t, tx, "proj-a", 0)

	// First upsert inserts the row
	require.NoError(t, s.UpsertDailyDownloads(ctx, "proj-a", "2026-08-29", 2))

	var row schema.ProjectDailyStats
	require.NoError(t, tx.First(&row, "project_id = ?", "proj-a").Error)
	assert.Equal(t, int64(2), row.Downloads)

	// Second upsert accumulates onto the existing row
	require.NoError(t, s.UpsertDailyDownloads(ctx, "proj-a", "2026-08-29", 3))

	require.NoError(t, tx.First(&row, "project_id = ?", "proj-a").Error)
	assert.Equal(t, int64(5), row.Downloads)
}

func TestRolloverDailyStats(t *testing.T) {
	s, tx := initPGTestDB(t)
	ctx := context.Background()

	seedProject(t, tx, "proj-old", 0)
	seedProject(t, tx, "proj-today", 0)

	require.NoError(t, tx.Create(&schema.ProjectDailyStats{
		ProjectID: "proj-old",
		Date:      "2026-08-28",
		Downloads: 12,
	}).Error)
	require.NoError(t, tx.Create(&schema.ProjectDailyStats{
		ProjectID: "proj-today",
		Date:      "2026-08-29",
		Downloads: 4,
	}).Error)

	require.NoError(t, s.RolloverDailyStats(ctx, "2026-08-29"))

	// The completed day was archived
	var rollups []schema.ProjectDownloadsRollup
	require.NoError(t, tx.Find(&rollups).Error)
	require.Len(t, rollups, 1)
	assert.Equal(t, "proj-old", rollups[0].ProjectID)
	assert.Equal(t, int64(12), rollups[0].Downloads)

	// The archived row was reset to today
	var old schema.ProjectDailyStats
	require.NoError(t, tx.First(&old, "project_id = ?", "proj-old").Error)
	assert.Zero(t, old.Downloads)

	// Today's row is untouched
	var today schema.ProjectDailyStats
	require.NoError(t, tx.First(&today, "project_id = ?", "proj-today").Error)
	assert.Equal(t, int64(4), today.Downloads)
}

func TestRolloverDailyStats_NothingStale(t *testing.T) {
	s, tx := initPGTestDB(t)
	ctx := context.Background()

	seedProject(t, tx, "proj-a", 0)
	require.NoError(t, tx.Create(&schema.ProjectDailyStats{
		ProjectID: "proj-a",
		Date:      "2026-08-29",
		Downloads: 4,
	}).Error)

	require.NoError(t, s.RolloverDailyStats(ctx, "2026-08-29"))

	var rollups []schema.ProjectDownloadsRollup
	require.NoError(t, tx.Find(&rollups).Error)
	assert.Empty(t, rollups)
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	tests := []struct {
		name            string
		maxOpen         int
		maxIdle         int
		expectedMaxOpen int
		expectedMaxIdle int
	}{
		{
			name:            "defaults applied",
			maxOpen:         0,
			maxIdle:         0,
			expectedMaxOpen: 10,
			expectedMaxIdle: 2,
		},
		{
			name:            "idle clamped to open",
			maxOpen:         5,
			maxIdle:         20,
			expectedMaxOpen: 5,
			expectedMaxIdle: 5,
		},
		{
			name:            "explicit values preserved",
			maxOpen:         50,
			maxIdle:         10,
			expectedMaxOpen: 50,
			expectedMaxIdle: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxOpen, maxIdle, lifetime, idleTime := NormalizeConnectionPoolSettings(tt.maxOpen, tt.maxIdle, 0, 0)
			assert.Equal(t, tt.expectedMaxOpen, maxOpen)
			assert.Equal(t, tt.expectedMaxIdle, maxIdle)
			assert.Equal(t, 5*time.Minute, lifetime)
			assert.Equal(t, 10*time.Minute, idleTime)
		})
	}
}
