package session

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Key families. The session prefix must never match pointer or live keys,
// otherwise the all-sessions scan would overcount.
const (
	redisRootPrefix    = "voodoo:session:"
	redisSessionPrefix = redisRootPrefix + "tok:"
	redisAccountPrefix = redisRootPrefix + "acct:"
	redisLivePrefix    = redisRootPrefix + "live:"

	defaultScanBatch = 1000
)

// RedisStore persists each session as a hash with native key expiry, so
// expired records are reclaimed by the server and no sweep is needed. A
// per-account pointer key tracks the current primary session for eviction,
// and a per-account live marker key implements the activity window.
type RedisStore struct {
	client    *redis.Client
	liveTTL   time.Duration
	scanBatch int64
}

// RedisOption configures the key-value backend.
type RedisOption func(*RedisStore)

// WithScanBatchSize sets the SCAN batch size used by Count and DeleteAll.
func WithScanBatchSize(n int64) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.scanBatch = n
		}
	}
}

// NewRedisStore creates the key-value backend. liveTTL is the activity-marker
// window; zero or negative falls back to the default.
func NewRedisStore(client *redis.Client, liveTTL time.Duration, opts ...RedisOption) *RedisStore {
	if liveTTL <= 0 {
		liveTTL = DefaultConfig().LiveTTL
	}
	s := &RedisStore{
		client:    client,
		liveTTL:   liveTTL,
		scanBatch: defaultScanBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sessionKey(token string) string { return redisSessionPrefix + token }
func accountKey(id int64) string     { return redisAccountPrefix + strconv.FormatInt(id, 10) }
func liveKey(id int64) string        { return redisLivePrefix + strconv.FormatInt(id, 10) }

// Create writes the session hash and, for primary sessions, swaps the
// account pointer to the new key while deleting the session it pointed to.
// The swap runs under WATCH on the pointer key: a concurrent login for the
// same account aborts the pipeline, which is retried once and then falls
// back to last-writer-wins.
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	key := sessionKey(sess.Token)

	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if n > 0 {
		return ErrDuplicateToken
	}

	if sess.Shadow {
		if _, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			writeSessionHash(ctx, pipe, key, sess)
			return nil
		}); err != nil {
			return errors.Join(ErrStorage, err)
		}
		return nil
	}

	acctKey := accountKey(sess.AccountID)
	swap := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, acctKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != "" && old != key {
				pipe.Del(ctx, old)
			}
			pipe.Set(ctx, acctKey, key, 0)
			pipe.ExpireAt(ctx, acctKey, sess.ExpiresAt)
			writeSessionHash(ctx, pipe, key, sess)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, swap, acctKey)
	if errors.Is(err, redis.TxFailedErr) {
		err = s.client.Watch(ctx, swap, acctKey)
	}
	if errors.Is(err, redis.TxFailedErr) {
		// Two aborts in a row means another login is racing this one.
		// Proceed unguarded: the later writer's pointer wins.
		old, gerr := s.client.Get(ctx, acctKey).Result()
		if gerr != nil && !errors.Is(gerr, redis.Nil) {
			return errors.Join(ErrStorage, gerr)
		}
		_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != "" && old != key {
				pipe.Del(ctx, old)
			}
			pipe.Set(ctx, acctKey, key, 0)
			pipe.ExpireAt(ctx, acctKey, sess.ExpiresAt)
			writeSessionHash(ctx, pipe, key, sess)
			return nil
		})
	}
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// GetByToken loads the session hash and sets the account's live marker when
// it is absent, which is the lazy heartbeat refresh.
func (s *RedisStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	sess, err := sessionFromFields(fields)
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	if sess.IsExpired() {
		// Native expiry has not reclaimed the key yet; treat as absent.
		return nil, ErrNotFound
	}

	now := time.Now()
	set, err := s.client.SetNX(ctx, liveKey(sess.AccountID), 1, s.liveTTL).Result()
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	var remaining time.Duration
	if !set {
		remaining, _ = s.client.PTTL(ctx, liveKey(sess.AccountID)).Result()
	}
	if exp := liveMarkerExpiry(now, set, remaining, s.liveTTL); !exp.IsZero() {
		sess.LiveExpiresAt = exp
	}

	return sess, nil
}

// liveMarkerExpiry computes the record's live window after a marker probe:
// a fresh marker runs the full TTL, an existing one keeps its remaining TTL,
// and a marker in an indeterminate state (negative PTTL) reports nothing.
func liveMarkerExpiry(now time.Time, set bool, remaining, liveTTL time.Duration) time.Time {
	if set {
		return now.Add(liveTTL)
	}
	if remaining > 0 {
		return now.Add(remaining)
	}
	return time.Time{}
}

// Touch re-arms the native expiry and persists the caller's IP.
func (s *RedisStore) Touch(ctx context.Context, sess *Session, ttl time.Duration) error {
	key := sessionKey(sess.Token)
	if err := s.requireKey(ctx, key); err != nil {
		return err
	}

	expiresAt := time.Now().Add(ttl)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"ip", sess.IP,
			"expires_at", expiresAt.Format(time.RFC3339Nano),
			"updated_at", time.Now().Format(time.RFC3339Nano),
		)
		pipe.ExpireAt(ctx, key, expiresAt)
		if !sess.Shadow {
			pipe.ExpireAt(ctx, accountKey(sess.AccountID), expiresAt)
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// SaveData rewrites the data field in place; the rest of the hash is
// untouched. The expiry is re-armed in the same pipeline so a concurrent
// native expiry cannot leave a TTL-less key behind.
func (s *RedisStore) SaveData(ctx context.Context, sess *Session, data []byte) error {
	key := sessionKey(sess.Token)
	if err := s.requireKey(ctx, key); err != nil {
		return err
	}

	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"data", string(data),
			"updated_at", time.Now().Format(time.RFC3339Nano),
		)
		pipe.ExpireAt(ctx, key, sess.ExpiresAt)
		return nil
	})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// Delete removes the session hash and, for primary sessions, the account
// pointer and live marker with it. A shadow delete leaves both alone: the
// account's primary session is still active and its liveness must survive.
func (s *RedisStore) Delete(ctx context.Context, sess *Session) error {
	keys := deleteTargets(sess)
	var removed *redis.IntCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, keys[0])
		for _, key := range keys[1:] {
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if removed.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// deleteTargets lists the keys removed with sess; the session key comes first.
func deleteTargets(sess *Session) []string {
	keys := []string{sessionKey(sess.Token)}
	if !sess.Shadow {
		keys = append(keys, accountKey(sess.AccountID), liveKey(sess.AccountID))
	}
	return keys
}

// DeleteAll with all=true wipes every key under the root prefix. With
// all=false it is a no-op: native expiry already reclaims expired sessions.
func (s *RedisStore) DeleteAll(ctx context.Context, all bool) (int64, error) {
	if !all {
		return 0, nil
	}

	var removed int64
	iter := s.client.Scan(ctx, 0, redisRootPrefix+"*", s.scanBatch).Iterator()
	batch := make([]string, 0, s.scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		removed += n
		batch = batch[:0]
		return err
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= s.scanBatch {
			if err := flush(); err != nil {
				return removed, errors.Join(ErrStorage, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, errors.Join(ErrStorage, err)
	}
	if err := flush(); err != nil {
		return removed, errors.Join(ErrStorage, err)
	}
	return removed, nil
}

// Count scans the session prefix (all) or the live-marker prefix. Both are
// point-in-time estimates, O(keyspace) like any prefix scan.
func (s *RedisStore) Count(ctx context.Context, all bool) (int64, error) {
	pattern := redisLivePrefix + "*"
	if all {
		pattern = redisSessionPrefix + "*"
	}

	var n int64
	iter := s.client.Scan(ctx, 0, pattern, s.scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Join(ErrStorage, err)
	}
	return n, nil
}

// requireKey maps a missing key to ErrNotFound before a write that would
// otherwise recreate the hash.
func (s *RedisStore) requireKey(ctx context.Context, key string) error {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return errors.Join(ErrStorage, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// writeSessionHash issues the multi-field write plus expiry as one batch.
// Pipelining keeps round trips down; it is not a transaction.
func writeSessionHash(ctx context.Context, pipe redis.Pipeliner, key string, sess *Session) {
	pipe.HSet(ctx, key, sessionToFields(sess))
	pipe.ExpireAt(ctx, key, sess.ExpiresAt)
}

func sessionToFields(sess *Session) map[string]any {
	shadow := "0"
	if sess.Shadow {
		shadow = "1"
	}
	return map[string]any{
		"id":         sess.ID.String(),
		"token":      sess.Token,
		"account_id": strconv.FormatInt(sess.AccountID, 10),
		"ip":         sess.IP,
		"data":       string(sess.Data),
		"shadow":     shadow,
		"expires_at": sess.ExpiresAt.Format(time.RFC3339Nano),
		"created_at": sess.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": sess.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func sessionFromFields(fields map[string]string) (*Session, error) {
	id, err := uuid.Parse(fields["id"])
	if err != nil {
		return nil, err
	}
	accountID, err := strconv.ParseInt(fields["account_id"], 10, 64)
	if err != nil {
		return nil, err
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, err
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:        id,
		Token:     fields["token"],
		AccountID: accountID,
		IP:        fields["ip"],
		Data:      []byte(fields["data"]),
		Shadow:    fields["shadow"] == "1",
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
