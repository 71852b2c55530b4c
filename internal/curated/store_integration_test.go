//go:build integration

package curated

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"resumate/internal/database"
	"resumate/internal/errcode"
	"resumate/internal/testutil"
)

// postgresDB 启动一次性的 PostgreSQL 容器并完成迁移。
func postgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "resumate",
				"POSTGRES_PASSWORD": "resumate",
				"POSTGRES_DB":       "resumate",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=resumate password=resumate dbname=resumate sslmode=disable", host, port.Port())
	var db *gorm.DB
	// 端口可连接时服务可能还没启动完成
	for attempt := 0; attempt < 20; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger.Default.LogMode(gormLogger.Silent)})
		if err == nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil && sqlDB.PingContext(ctx) == nil {
				break
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPostgresCuratedLifecycle(t *testing.T) {
	db := postgresDB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	ctx := context.Background()
	doc, _ := seedDocument(t, db, user.ID)

	res, err := store.Save(ctx, user.ID, doc)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	full, err := store.Get(ctx, res.ID, user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(full.Experiences) != 2 || len(full.Projects) != 3 || full.Projects[2].DisplayOrder != 4 {
		t.Fatalf("unexpected document %+v", full)
	}

	if _, err := store.UpdateStatus(ctx, res.ID, user.ID, database.StatusFinalized); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	list, err := store.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].FinalizedAt == nil || list[0].JobCompany == nil {
		t.Fatalf("unexpected list %+v", list)
	}

	if err := store.Delete(ctx, res.ID, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := testutil.Count(t, db, &database.Job{}, ""); n != 1 {
		t.Fatalf("job removed with resume")
	}
}

func TestPostgresSaveRollsBack(t *testing.T) {
	db := postgresDB(t)
	store := NewStore(db)
	user := testutil.SeedUser(t, db, "alice")
	doc, _ := seedDocument(t, db, user.ID)

	inserts := 0
	if err := db.Callback().Create().Before("gorm:create").Register("test:fail_last_point", func(tx *gorm.DB) {
		if tx.Statement.Table == "curated_resume_item_points" {
			if inserts++; inserts == 5 {
				_ = tx.AddError(errors.New("connection reset"))
			}
		}
	}); err != nil {
		t.Fatalf("register callback: %v", err)
	}

	if _, err := store.Save(context.Background(), user.ID, doc); !errors.Is(err, errcode.ErrTransaction) {
		t.Fatalf("expected transaction error, got %v", err)
	}
	if n := testutil.Count(t, db, &database.CuratedResume{}, ""); n != 0 {
		t.Fatalf("curated resume survived rollback")
	}
	if n := testutil.Count(t, db, &database.Job{}, ""); n != 0 {
		t.Fatalf("job survived rollback")
	}
}
