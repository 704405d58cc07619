package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/dishusingla001/door-lock-server/internal/config"
	"github.com/dishusingla001/door-lock-server/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Identities ---

// FindOrCreateIdentity returns the identity with the given name, creating it
// with the supplied role if it does not exist. Identities are never physically
// deleted; DeactivateIdentity is the only removal path.
func (s *PostgresStore) FindOrCreateIdentity(ctx context.Context, name, role string) (*models.Identity, error) {
	if role == "" {
		role = "member"
	}
	id := &models.Identity{}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO identities (id, name, role, active)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, role, active, created_at`,
		uuid.New(), name, role,
	).Scan(&id.ID, &id.Name, &id.Role, &id.Active, &id.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("find or create identity: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetIdentity(ctx context.Context, name string) (*models.Identity, error) {
	id := &models.Identity{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, role, active, created_at FROM identities WHERE name = $1`, name,
	).Scan(&id.ID, &id.Name, &id.Role, &id.Active, &id.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListIdentities(ctx context.Context) ([]models.Identity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, role, active, created_at FROM identities WHERE active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var identities []models.Identity
	for rows.Next() {
		var id models.Identity
		if err := rows.Scan(&id.ID, &id.Name, &id.Role, &id.Active, &id.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, id)
	}
	return identities, nil
}

func (s *PostgresStore) DeactivateIdentity(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET active = FALSE WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("deactivate identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("identity not found")
	}
	return nil
}

// --- Face Embeddings ---

func (s *PostgresStore) AddFaceEmbedding(ctx context.Context, ownerName string, vector []float32, sourceLabel string) (*models.FaceEmbedding, error) {
	fe := &models.FaceEmbedding{
		ID:          uuid.New(),
		OwnerName:   ownerName,
		Vector:      vector,
		SourceLabel: sourceLabel,
	}
	vec := pgvector.NewVector(vector)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_embeddings (id, owner_name, embedding, source_label) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		fe.ID, fe.OwnerName, vec, fe.SourceLabel,
	).Scan(&fe.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add face embedding: %w", err)
	}
	return fe, nil
}

// DeleteEmbeddingsByOwner removes all embeddings enrolled for one identity.
// Embeddings are immutable; bulk deletion by owner is the only mutation.
func (s *PostgresStore) DeleteEmbeddingsByOwner(ctx context.Context, ownerName string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM face_embeddings WHERE owner_name = $1`, ownerName)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EmbeddingCountsByOwner returns the embedding count for every owner in one
// query, for listings that would otherwise count per identity.
func (s *PostgresStore) EmbeddingCountsByOwner(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT owner_name, COUNT(*) FROM face_embeddings GROUP BY owner_name`)
	if err != nil {
		return nil, fmt.Errorf("count embeddings by owner: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var name string
		var count int
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scan embedding count: %w", err)
		}
		counts[name] = count
	}
	return counts, nil
}

func (s *PostgresStore) CountEmbeddings(ctx context.Context, ownerName string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM face_embeddings WHERE owner_name = $1`, ownerName,
	).Scan(&count)
	return count, err
}

// FetchAllEmbeddings returns every stored (vector, owner) pair in insertion
// order. The gallery cache is rebuilt wholesale from this; ordering is stable
// so repeated reloads of unchanged data yield identical galleries.
func (s *PostgresStore) FetchAllEmbeddings(ctx context.Context) ([]models.FaceEmbedding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_name, embedding, source_label, created_at
		 FROM face_embeddings ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("fetch embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []models.FaceEmbedding
	for rows.Next() {
		var fe models.FaceEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&fe.ID, &fe.OwnerName, &vec, &fe.SourceLabel, &fe.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		fe.Vector = vec.Slice()
		embeddings = append(embeddings, fe)
	}
	return embeddings, nil
}

// --- Access Log ---

// AppendAccessLog writes one immutable audit entry. No update or delete path
// exists for access_logs.
func (s *PostgresStore) AppendAccessLog(ctx context.Context, entry models.AccessLogEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO access_logs (id, subject_name, outcome, channel, confidence, snapshot_key, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.SubjectName, entry.Outcome, entry.Channel,
		entry.Confidence, entry.SnapshotKey, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("append access log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAccessLogs(ctx context.Context, limit int, subjectName string) ([]models.AccessLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT id, subject_name, outcome, channel, confidence, snapshot_key, timestamp
	          FROM access_logs`
	args := []interface{}{}
	if subjectName != "" {
		query += ` WHERE subject_name = $1 ORDER BY timestamp DESC LIMIT $2`
		args = append(args, subjectName, limit)
	} else {
		query += ` ORDER BY timestamp DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AccessLogEntry
	for rows.Next() {
		var e models.AccessLogEntry
		if err := rows.Scan(&e.ID, &e.SubjectName, &e.Outcome, &e.Channel,
			&e.Confidence, &e.SnapshotKey, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan access log: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
