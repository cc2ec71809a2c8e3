package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const changeChannelPrefix = "docs:"

// PGStore persists documents as JSONB rows and announces changes over a
// Redis pub/sub channel per collection.
type PGStore struct {
	pool   *pgxpool.Pool
	redis  *redis.Client
	logger *slog.Logger
}

// NewPGStore constructs a PGStore. The redis client may be nil; subscriptions
// then only ever deliver the initial snapshot.
func NewPGStore(pool *pgxpool.Pool, client *redis.Client, logger *slog.Logger) *PGStore {
	return &PGStore{pool: pool, redis: client, logger: logger}
}

// Create inserts a document, assigning a fresh identity.
func (s *PGStore) Create(ctx context.Context, collection string, doc Doc) (string, error) {
	id := uuid.NewString()
	payload, err := marshalDoc(doc, id)
	if err != nil {
		return "", err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, doc, updated_at) VALUES ($1, $2, $3, NOW())`,
		collection, id, payload)
	if err != nil {
		return "", classify(err)
	}
	s.announce(ctx, collection)
	return id, nil
}

// Put creates or replaces a document under a caller-chosen identity.
func (s *PGStore) Put(ctx context.Context, collection, id string, doc Doc) error {
	payload, err := marshalDoc(doc, id)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, doc, updated_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()`,
		collection, id, payload)
	if err != nil {
		return classify(err)
	}
	s.announce(ctx, collection)
	return nil
}

// Update merges the given fields into an existing document.
func (s *PGStore) Update(ctx context.Context, collection, id string, fields Doc) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET doc = doc || $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`,
		collection, id, payload)
	if err != nil {
		return classify(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.announce(ctx, collection)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *PGStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return classify(err)
	}
	s.announce(ctx, collection)
	return nil
}

// Get loads a single document.
func (s *PGStore) Get(ctx context.Context, collection, id string) (Doc, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns every document in a collection, newest insert last.
func (s *PGStore) List(ctx context.Context, collection string) ([]Doc, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM documents WHERE collection = $1 ORDER BY updated_at`, collection)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	var docs []Doc
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var doc Doc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// BatchedWrite applies up to MaxBatchOps operations atomically in one
// transaction. Touched collections are announced once at the end.
func (s *PGStore) BatchedWrite(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	if len(ops) > MaxBatchOps {
		return ErrBatchTooLarge
	}
	batch := &pgx.Batch{}
	touched := map[string]struct{}{}
	for _, op := range ops {
		touched[op.Collection] = struct{}{}
		switch op.Kind {
		case OpCreate:
			payload, err := marshalDoc(op.Fields, op.ID)
			if err != nil {
				return err
			}
			batch.Queue(`INSERT INTO documents (collection, id, doc, updated_at) VALUES ($1, $2, $3, NOW())`,
				op.Collection, op.ID, payload)
		case OpUpdate:
			payload, err := json.Marshal(op.Fields)
			if err != nil {
				return err
			}
			batch.Queue(`UPDATE documents SET doc = doc || $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2`,
				op.Collection, op.ID, payload)
		case OpDelete:
			batch.Queue(`DELETE FROM documents WHERE collection = $1 AND id = $2`,
				op.Collection, op.ID)
		default:
			return fmt.Errorf("store: unknown batch op %q", op.Kind)
		}
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return classify(err)
	}
	for collection := range touched {
		s.announce(ctx, collection)
	}
	return nil
}

// Subscribe streams full-collection snapshots driven by change announcements.
func (s *PGStore) Subscribe(ctx context.Context, collection string) (<-chan []Doc, error) {
	out := make(chan []Doc, 1)
	initial, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out <- initial

	if s.redis == nil {
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}

	pubsub := s.redis.Subscribe(ctx, changeChannelPrefix+collection)
	go func() {
		defer close(out)
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				snapshot, err := s.List(ctx, collection)
				if err != nil {
					if s.logger != nil {
						s.logger.Warn("subscription snapshot reload", slog.String("collection", collection), slog.Any("error", err))
					}
					continue
				}
				select {
				case out <- snapshot:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *PGStore) announce(ctx context.Context, collection string) {
	if s.redis == nil {
		return
	}
	payload := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.redis.Publish(ctx, changeChannelPrefix+collection, payload).Err(); err != nil && s.logger != nil {
		s.logger.Warn("publish change", slog.String("collection", collection), slog.Any("error", err))
	}
}

func marshalDoc(doc Doc, id string) ([]byte, error) {
	if doc == nil {
		doc = Doc{}
	}
	withID := make(Doc, len(doc)+1)
	for k, v := range doc {
		withID[k] = v
	}
	withID["id"] = id
	return json.Marshal(withID)
}

// classify maps access-rule rejections apart from transient failures so
// callers can tell the user whether a retry makes sense.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42501" {
		return errors.Join(ErrPermission, err)
	}
	return err
}
