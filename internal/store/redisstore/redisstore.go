// Package redisstore keeps each counter record in a redis hash.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tckz/go-viewcount/internal/counter"
)

var _ counter.Store = (*Store)(nil)

const (
	DefaultKeyPrefix = "node_counter:"

	corruptPrefix = "CORRUPT"
)

var counterFields = []string{"daycount", "weekcount", "monthcount", "yearcount", "totalcount"}

// Scripts run without interleaving, so the checks and the increments below
// are one unit. All checks happen before the first write.
var upsertScript = redis.NewScript(`
local t = redis.call('TYPE', KEYS[1])
if type(t) == 'table' then t = t['ok'] end
if t ~= 'none' and t ~= 'hash' then
  return redis.error_reply('CORRUPT key holds ' .. t)
end
local fields = {'daycount', 'weekcount', 'monthcount', 'yearcount', 'totalcount'}
for _, f in ipairs(fields) do
  local v = redis.call('HGET', KEYS[1], f)
  if v then
    if not string.match(v, '^%d+$') then
      return redis.error_reply('CORRUPT field ' .. f)
    end
    -- HINCRBY fails on int64 overflow after earlier fields were written.
    if #v > 19 or (#v == 19 and v >= '9223372036854775807') then
      return redis.error_reply('CORRUPT field ' .. f .. ' out of range')
    end
  end
end
for _, f in ipairs(fields) do
  redis.call('HINCRBY', KEYS[1], f, 1)
end
redis.call('HSET', KEYS[1], 'timestamp', ARGV[1])
return 1
`)

type Store struct {
	client redis.UniversalClient
	prefix string
	clock  counter.Clock
}

type Option func(s *Store)

func WithKeyPrefix(p string) Option {
	return func(s *Store) {
		s.prefix = p
	}
}

func WithClock(c counter.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		clock:  counter.RealClock{},
	}
	for _, e := range opts {
		e(s)
	}
	return s
}

// NewClient builds a client with the pool settings used across the tools.
func NewClient(addr string) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{addr},
		DialTimeout:  time.Second * 2,
		ReadTimeout:  time.Second * 2,
		WriteTimeout: time.Second * 2,
		PoolSize:     200,
		PoolTimeout:  time.Second * 5,
	})
}

func (s *Store) key(id int64) string {
	return s.prefix + strconv.FormatInt(id, 10)
}

func (s *Store) UpsertIncrement(ctx context.Context, id int64) error {
	if !counter.ValidID(id) {
		return counter.InvalidKey(id)
	}
	if err := ctx.Err(); err != nil {
		return counter.Unavailable(id, err)
	}

	ts := s.clock.Now().Unix()
	if err := upsertScript.Run(ctx, s.client, []string{s.key(id)}, ts).Err(); err != nil {
		if isCorrupt(err) {
			return counter.Corrupt(id, err)
		}
		return counter.Unavailable(id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (*counter.Record, error) {
	if !counter.ValidID(id) {
		return nil, counter.InvalidKey(id)
	}

	m, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		if isWrongType(err) {
			return nil, counter.Corrupt(id, err)
		}
		return nil, counter.Unavailable(id, err)
	}
	if len(m) == 0 {
		return nil, counter.ErrNotFound
	}
	return decode(id, m)
}

func decode(id int64, m map[string]string) (*counter.Record, error) {
	vals := make([]int64, len(counterFields)+1)
	for i, f := range append(counterFields, "timestamp") {
		v, err := strconv.ParseInt(m[f], 10, 64)
		if err != nil {
			return nil, counter.Corrupt(id, fmt.Errorf("field %s: %w", f, err))
		}
		vals[i] = v
	}
	return &counter.Record{
		ID:         id,
		DayCount:   vals[0],
		WeekCount:  vals[1],
		MonthCount: vals[2],
		YearCount:  vals[3],
		TotalCount: vals[4],
		LastSeenAt: time.Unix(vals[5], 0).UTC(),
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func isCorrupt(err error) bool {
	var re redis.Error
	if !errors.As(err, &re) {
		return false
	}
	msg := re.Error()
	return strings.HasPrefix(msg, corruptPrefix) || strings.Contains(msg, " "+corruptPrefix) || isWrongType(err)
}

func isWrongType(err error) bool {
	return strings.HasPrefix(err.Error(), "WRONGTYPE")
}
