package stores

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/ghost-in-the-sushi/efficio-webapp/ids"
)

const (
	ownedStoresPrefix = "stores:"
	storePrefix       = "store:"
)

// ErrInvalidStoreName is returned for empty store names.
var ErrInvalidStoreName = errors.New("invalid store name")

// KEYS[1] stores:<account_id>. ARGV[1] store key prefix.
const deleteOwnedScript = `
local removed = 0
local ids = redis.call("SMEMBERS", KEYS[1])
for _, id in ipairs(ids) do
  removed = removed + redis.call("DEL", ARGV[1] .. id)
end
redis.call("DEL", KEYS[1])
return removed
`

var deleteOwnedLua = redis.NewScript(deleteOwnedScript)

// OwnedStore is a shopping store owned by one account.
type OwnedStore struct {
	ID   string `json:"store_id"`
	Name string `json:"name"`
}

// Resources is the owned-store registry:
//
//	stores:<account_id>  set of store ids
//	store:<store_id>     hash {name, owner}
//
// It implements the cascading delete run when an account is removed.
type Resources struct {
	redis redis.UniversalClient
}

// NewResources creates a [Resources] registry.
func NewResources(redisClient redis.UniversalClient) *Resources {
	return &Resources{redis: redisClient}
}

// CreateStore records a new store owned by accountID and returns its id.
func (r *Resources) CreateStore(ctx context.Context, accountID, name string) (string, error) {
	if name == "" {
		return "", ErrInvalidStoreName
	}

	storeID := ids.NewResourceID()
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, storePrefix+storeID, "name", name, "owner", accountID)
		pipe.SAdd(ctx, ownedStoresPrefix+accountID, storeID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return storeID, nil
}

// ListStores returns the stores owned by accountID, ordered by name then id.
func (r *Resources) ListStores(ctx context.Context, accountID string) ([]OwnedStore, error) {
	storeIDs, err := r.redis.SMembers(ctx, ownedStoresPrefix+accountID).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(storeIDs) == 0 {
		return []OwnedStore{}, nil
	}

	cmds := make([]*redis.StringCmd, len(storeIDs))
	_, err = r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range storeIDs {
			cmds[i] = pipe.HGet(ctx, storePrefix+id, "name")
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]OwnedStore, 0, len(storeIDs))
	for i, id := range storeIDs {
		name, err := cmds[i].Result()
		if err != nil {
			// Set member without a hash; skip it.
			continue
		}
		out = append(out, OwnedStore{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// DeleteAllResourcesForAccount removes every store owned by accountID.
func (r *Resources) DeleteAllResourcesForAccount(ctx context.Context, accountID string) error {
	err := deleteOwnedLua.Run(ctx, r.redis, []string{ownedStoresPrefix + accountID}, storePrefix).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
