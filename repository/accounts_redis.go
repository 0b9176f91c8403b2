package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	auth "github.com/goliatone/go-authcore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys when no prefix is given
const DefaultRedisPrefix = "authcore"

// maxCASAttempts bounds optimistic retries for update and delete
const maxCASAttempts = 5

// createScript claims the email index and writes the document atomically.
// KEYS: email, account, index. ARGV: id, document, score.
var createScript = redis.NewScript(`
if redis.call('SETNX', KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2])
redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
return 1
`)

// updateScript swaps the document when it still matches what was read.
// KEYS: account, old email, new email. ARGV: id, expected, document.
var updateScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
	return -1
end
if cur ~= ARGV[2] then
	return -2
end
if KEYS[2] ~= KEYS[3] then
	if redis.call('SETNX', KEYS[3], ARGV[1]) == 0 then
		return 0
	end
	redis.call('DEL', KEYS[2])
end
redis.call('SET', KEYS[1], ARGV[3])
return 1
`)

// deleteScript removes the document, its email claim and index entry.
// KEYS: account, email, index. ARGV: expected, id.
var deleteScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
	return -1
end
if cur ~= ARGV[1] then
	return -2
end
redis.call('DEL', KEYS[1])
if redis.call('GET', KEYS[2]) == ARGV[2] then
	redis.call('DEL', KEYS[2])
end
redis.call('ZREM', KEYS[3], ARGV[2])
return 1
`)

// accountDocument is the JSON stored for each account
type accountDocument struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	CredentialSecret string    `json:"credential_secret"`
	FederationOnly   bool      `json:"federation_only"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RedisAccounts implements auth.AccountStore and auth.AccountDirectory on
// Redis. Every account is a JSON document and the email index is claimed
// with SETNX inside a script, so only one writer can own an email. All keys
// share a hash tag so the scripts also run on a cluster.
type RedisAccounts struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

var (
	_ auth.AccountStore     = (*RedisAccounts)(nil)
	_ auth.AccountDirectory = (*RedisAccounts)(nil)
)

// NewRedisAccounts creates a new repository.
func NewRedisAccounts(client redis.UniversalClient, prefix string) *RedisAccounts {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisAccounts{client: client, prefix: prefix, now: time.Now}
}

func (r *RedisAccounts) accountKey(id string) string {
	return fmt.Sprintf("{%s}:account:%s", r.prefix, id)
}

func (r *RedisAccounts) emailKey(email string) string {
	return fmt.Sprintf("{%s}:email:%s", r.prefix, email)
}

func (r *RedisAccounts) indexKey() string {
	return fmt.Sprintf("{%s}:accounts", r.prefix)
}

// FindByEmail implements auth.AccountStore.
func (r *RedisAccounts) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	id, err := r.client.Get(ctx, r.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, storeError("find", err)
	}
	return r.FindByID(ctx, id)
}

// FindByID implements auth.AccountStore.
func (r *RedisAccounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	doc, _, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.toAccount(), nil
}

// Create implements auth.AccountStore.
func (r *RedisAccounts) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	if account == nil {
		return nil, storeError("create", errors.New("nil account"))
	}

	now := r.now().UTC()
	doc := accountDocument{
		ID:               uuid.NewString(),
		Email:            account.Email,
		CredentialSecret: account.CredentialSecret,
		FederationOnly:   account.FederationOnly,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, storeError("create", err)
	}

	keys := []string{r.emailKey(doc.Email), r.accountKey(doc.ID), r.indexKey()}
	created, err := createScript.Run(ctx, r.client, keys, doc.ID, string(raw), now.UnixMilli()).Int()
	if err != nil {
		return nil, storeError("create", err)
	}

	if created == 0 {
		return nil, auth.ErrDuplicateAccount
	}

	return doc.toAccount(), nil
}

// Update implements auth.AccountStore.
func (r *RedisAccounts) Update(ctx context.Context, id string, patch auth.AccountPatch) (*auth.Account, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		doc, current, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}

		oldEmail := doc.Email
		if patch.Email != nil {
			doc.Email = *patch.Email
		}
		doc.UpdatedAt = r.now().UTC()

		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, storeError("update", err)
		}

		keys := []string{r.accountKey(id), r.emailKey(oldEmail), r.emailKey(doc.Email)}
		res, err := updateScript.Run(ctx, r.client, keys, id, current, string(raw)).Int()
		if err != nil {
			return nil, storeError("update", err)
		}

		switch res {
		case 1:
			return doc.toAccount(), nil
		case 0:
			return nil, auth.ErrDuplicateAccount
		case -1:
			return nil, auth.ErrAccountNotFound
		}
		// -2: concurrent writer, read again
	}

	return nil, storeError("update", errors.New("too many concurrent modifications"))
}

// List implements auth.AccountDirectory.
func (r *RedisAccounts) List(ctx context.Context) ([]*auth.Account, error) {
	ids, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, storeError("list", err)
	}

	if len(ids) == 0 {
		return []*auth.Account{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.accountKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, storeError("list", err)
	}

	accounts := make([]*auth.Account, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// removed between ZRANGE and MGET
			continue
		}
		var doc accountDocument
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, storeError("list", err)
		}
		accounts = append(accounts, doc.toAccount())
	}

	return accounts, nil
}

// Delete implements auth.AccountDirectory.
func (r *RedisAccounts) Delete(ctx context.Context, id string) (*auth.Account, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		doc, current, err := r.load(ctx, id)
		if err != nil {
			return nil, err
		}

		keys := []string{r.accountKey(id), r.emailKey(doc.Email), r.indexKey()}
		res, err := deleteScript.Run(ctx, r.client, keys, current, id).Int()
		if err != nil {
			return nil, storeError("delete", err)
		}

		switch res {
		case 1:
			return doc.toAccount(), nil
		case -1:
			return nil, auth.ErrAccountNotFound
		}
	}

	return nil, storeError("delete", errors.New("too many concurrent modifications"))
}

// load returns the decoded document and the raw value used for CAS
func (r *RedisAccounts) load(ctx context.Context, id string) (accountDocument, string, error) {
	raw, err := r.client.Get(ctx, r.accountKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return accountDocument{}, "", auth.ErrAccountNotFound
		}
		return accountDocument{}, "", storeError("find", err)
	}

	var doc accountDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return accountDocument{}, "", storeError("find", err)
	}

	return doc, raw, nil
}

func (d accountDocument) toAccount() *auth.Account {
	return &auth.Account{
		ID:               d.ID,
		Email:            d.Email,
		CredentialSecret: d.CredentialSecret,
		FederationOnly:   d.FederationOnly,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}
