// Package sessionstore keeps work session snapshots in Redis between host
// requests.
package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docassembly-sdk/internal/common/config"
	"docassembly-sdk/internal/common/errors"
	"docassembly-sdk/internal/common/logger"
	"docassembly-sdk/pkg/session"
)

// Record is the persisted form of one hosted session.
type Record struct {
	ID         string            `json:"id"`
	PackageID  string            `json:"packageId,omitempty"`
	BillingRef string            `json:"billingRef,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Snapshot   *session.Snapshot `json:"snapshot"`
}

type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func New(client redis.Cmdable, cfg config.SessionConfig, log logger.Logger) *Store {
	return &Store{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    config.GetSeconds(cfg.TTL),
		logger: logger.OrNoOp(log),
		now:    time.Now,
	}
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Create stores rec under a fresh id and returns it.
func (s *Store) Create(ctx context.Context, rec *Record) (string, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now().UTC()
	if err := s.Save(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Save writes rec and restarts its expiry.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	if err := checkID(rec.ID); err != nil {
		return err
	}
	if rec.Snapshot == nil {
		return errors.NewInvalidArgumentError("snapshot", "record has no snapshot", "")
	}
	rec.UpdatedAt = s.now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = rec.UpdatedAt
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.NewSessionStoreFailedError("encode", err)
	}
	if err := s.client.Set(ctx, s.key(rec.ID), data, s.ttl).Err(); err != nil {
		return errors.NewSessionStoreFailedError("save", err)
	}

	s.logger.Debug("Session saved", map[string]interface{}{
		logger.KeySessionID: rec.ID,
		logger.KeyCount:     len(rec.Snapshot.Items),
	})
	return nil
}

// Load reads a record. The payload is checked against the record schema
// before it is decoded.
func (s *Store) Load(ctx context.Context, id string) (*Record, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, errors.NewSessionStoreFailedError("load", err)
	}

	result, err := recordSchema.ValidateBytes(data)
	if err != nil {
		return nil, errors.NewSessionStoreFailedError("validate", err)
	}
	if !result.Valid {
		return nil, errors.NewSessionStoreFailedError("validate",
			fmt.Errorf("stored session is malformed: %s", strings.Join(result.GetErrorMessages(), "; ")))
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.NewSessionStoreFailedError("decode", err)
	}
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.NewSessionStoreFailedError("delete", err)
	}
	return nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NewInvalidArgumentError("sessionId", "session id must be a UUID", "")
	}
	return nil
}
