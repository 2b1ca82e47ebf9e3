package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quarrydata/sync-engine/pkg/apperrors"
	"github.com/quarrydata/sync-engine/pkg/config"
	"github.com/quarrydata/sync-engine/pkg/crypto"
	"github.com/quarrydata/sync-engine/pkg/models"
)

type recordingDatasourceRepo struct {
	stubDatasourceRepo
	created *models.DataSource
}

func (r *recordingDatasourceRepo) Create(ctx context.Context, ds *models.DataSource) error {
	ds.ID = uuid.New()
	r.created = ds
	return nil
}

func newTestDatasourceService(t *testing.T, repo *recordingDatasourceRepo) (DatasourceService, *crypto.Encryptor) {
	t.Helper()
	registerStubAdapter()

	encryptor, err := crypto.NewEncryptor("test-passphrase")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	cfg := config.SyncConfig{
		ConnectTimeoutSeconds: 2,
		BatchSize:             100,
		MaxWorkers:            3,
		PreviewDefaultRows:    100,
		PreviewMaxRows:        1000,
	}
	return NewDatasourceService(repo, encryptor, cfg, zap.NewNop()), encryptor
}

func TestDatasourceService_TestConnection_UnknownType(t *testing.T) {
	svc, _ := newTestDatasourceService(t, &recordingDatasourceRepo{})

	_, err := svc.TestConnection(context.Background(), ConnectionParams{
		SourceType: "oracle",
		Host:       "db.internal",
	})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown source type, got %v", err)
	}
}

func TestDatasourceService_Save_Validation(t *testing.T) {
	tests := []struct {
		name string
		ds   models.DataSource
	}{
		{"missing name", models.DataSource{Host: "h", Database: "d", SourceType: "stub"}},
		{"missing host", models.DataSource{Name: "n", Database: "d", SourceType: "stub"}},
		{"missing database", models.DataSource{Name: "n", Host: "h", SourceType: "stub"}},
		{"unknown type", models.DataSource{Name: "n", Host: "h", Database: "d", SourceType: "oracle"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestDatasourceService(t, &recordingDatasourceRepo{})
			ds := tt.ds
			err := svc.Save(context.Background(), &ds, "pw")
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestDatasourceService_Save_EncryptsPassword(t *testing.T) {
	repo := &recordingDatasourceRepo{}
	svc, encryptor := newTestDatasourceService(t, repo)

	ds := &models.DataSource{
		Name:       "shop",
		SourceType: "stub",
		Host:       "db.internal",
		User:       "reader",
		Database:   "shop",
	}
	if err := svc.Save(context.Background(), ds, "hunter2"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if repo.created == nil {
		t.Fatal("expected Create to be called")
	}
	if repo.created.Password == "hunter2" {
		t.Fatal("password was stored in plaintext")
	}
	if repo.created.Port != 3306 {
		t.Errorf("expected default port 3306, got %d", repo.created.Port)
	}

	decrypted, err := encryptor.Decrypt(repo.created.Password)
	if err != nil {
		t.Fatalf("failed to decrypt stored password: %v", err)
	}
	if decrypted != "hunter2" {
		t.Errorf("stored password round trip mismatch: got %q", decrypted)
	}
}

func TestDatasourceService_Preview_CapsRows(t *testing.T) {
	encryptor, err := crypto.NewEncryptor("test-passphrase")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}
	encrypted, _ := encryptor.Encrypt("pw")

	registerStubAdapter()
	currentStubConnector = &stubConnector{rows: map[string][][]any{
		"orders": {{int64(1), "a"}},
	}}

	repo := &recordingDatasourceRepo{}
	repo.ds = &models.DataSource{
		ID:         uuid.New(),
		SourceType: "stub",
		Host:       "db.internal",
		Password:   encrypted,
		Database:   "shop",
	}

	cfg := config.SyncConfig{
		ConnectTimeoutSeconds: 2,
		BatchSize:             100,
		MaxWorkers:            3,
		PreviewDefaultRows:    100,
		PreviewMaxRows:        1000,
	}
	svc := NewDatasourceService(repo, encryptor, cfg, zap.NewNop())

	preview, err := svc.Preview(context.Background(), repo.ds.ID, "orders", 0)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if preview.Table != "orders" {
		t.Errorf("unexpected table name %q", preview.Table)
	}
	if len(preview.Columns) != 2 {
		t.Errorf("expected 2 columns, got %d", len(preview.Columns))
	}
	if preview.TotalRows != 1 {
		t.Errorf("expected total 1, got %d", preview.TotalRows)
	}
}
