package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/koragame/internal/model"
	"github.com/mcoot/koragame/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Conditional match writes use WATCH on the match key and a MULTI/EXEC
// pipeline, so two servers racing on the same turn cannot both commit.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the connection, used by the health endpoint
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ storage.Storage = (*Storage)(nil)

// getter is the read side shared by *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if player.IsGuest {
		ttl = s.cfg.GuestPlayerTTL
	}
	return s.client.Set(ctx, playerKey(player.ID), data, ttl).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var player model.Player
	if err := getJSON(ctx, s.client, playerKey(id), &player, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &player, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, registeredPlayerKey(rp.PlayerID), data, 0)
	pipe.Set(ctx, usernameIndexKey(rp.Username), string(rp.PlayerID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	var rp model.RegisteredPlayer
	if err := getJSON(ctx, s.client, registeredPlayerKey(playerID), &rp, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	playerID, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return s.GetRegisteredPlayer(ctx, model.PlayerID(playerID))
}

// Session operations

func (s *Storage) SaveSession(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(session.Token), data, s.cfg.SessionTTL).Err()
}

func (s *Storage) GetSession(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	if err := getJSON(ctx, s.client, sessionKey(token), &session, model.ErrSessionNotFound); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}

// Match operations

func (s *Storage) CreateMatch(ctx context.Context, match *model.Match) error {
	data, err := json.Marshal(match)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, matchKey(match.ID), data, s.cfg.MatchTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("match " + string(match.ID) + " already exists")
	}
	return s.indexMatch(ctx, match)
}

func (s *Storage) GetMatch(ctx context.Context, id model.MatchID) (*model.Match, error) {
	return loadMatch(ctx, s.client, id)
}

func (s *Storage) UpdateMatch(ctx context.Context, match *model.Match, expectedStatus model.MatchStatus, expectedTurn int) error {
	data, err := json.Marshal(match)
	if err != nil {
		return err
	}
	key := matchKey(match.ID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := loadMatch(ctx, tx, match.ID)
		if err != nil {
			return err
		}
		if stored.Status != expectedStatus || stored.CurrentTurn != expectedTurn {
			if stored.IsFinished() {
				return model.ErrMatchFinished
			}
			return model.ErrStaleTurn
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.cfg.MatchTTL)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrStaleTurn
	}
	if err != nil {
		return err
	}
	return s.indexMatch(ctx, match)
}

func (s *Storage) ListMatchesForPlayer(ctx context.Context, playerID model.PlayerID) ([]*model.Match, error) {
	ids, err := s.client.SMembers(ctx, playerMatchesKey(playerID)).Result()
	if err != nil {
		return nil, err
	}
	return s.loadMatches(ctx, ids)
}

func (s *Storage) ListActiveMatches(ctx context.Context) ([]*model.Match, error) {
	ids, err := s.client.SMembers(ctx, activeMatchesKey()).Result()
	if err != nil {
		return nil, err
	}
	matches, err := s.loadMatches(ctx, ids)
	if err != nil {
		return nil, err
	}
	// The index can lag a match that expired while active
	active := matches[:0]
	for _, m := range matches {
		if m.IsActive() {
			active = append(active, m)
		}
	}
	return active, nil
}

// loadMatches fetches the given matches in one round trip, skipping any
// that have expired, oldest first
func (s *Storage) loadMatches(ctx context.Context, ids []string) ([]*model.Match, error) {
	if len(ids) == 0 {
		return []*model.Match{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = matchKey(model.MatchID(id))
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	matches := make([]*model.Match, 0, len(values))
	for _, val := range values {
		str, ok := val.(string)
		if !ok {
			continue // expired
		}
		var m model.Match
		if err := json.Unmarshal([]byte(str), &m); err != nil {
			continue
		}
		matches = append(matches, &m)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches, nil
}

// Play log operations

func (s *Storage) CommitPlay(ctx context.Context, match *model.Match, play model.Play, result *model.TurnResult, expectedTurn int) error {
	matchData, err := json.Marshal(match)
	if err != nil {
		return err
	}
	playData, err := json.Marshal(play)
	if err != nil {
		return err
	}
	var resultData []byte
	if result != nil {
		if resultData, err = json.Marshal(result); err != nil {
			return err
		}
	}

	key := matchKey(match.ID)
	pKey := playsKey(match.ID)
	rKey := turnResultsKey(match.ID)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := loadMatch(ctx, tx, match.ID)
		if err != nil {
			return err
		}
		if stored.IsFinished() {
			return model.ErrMatchFinished
		}
		if stored.CurrentTurn != expectedTurn {
			return model.ErrStaleTurn
		}
		logged, err := tx.LLen(ctx, pKey).Result()
		if err != nil {
			return err
		}
		if int(logged) != expectedTurn {
			return model.ErrStaleTurn
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, matchData, s.cfg.MatchTTL)
			trackActive(ctx, pipe, match)
			pipe.RPush(ctx, pKey, playData)
			if resultData != nil {
				pipe.RPush(ctx, rKey, resultData)
			}
			if s.cfg.MatchTTL > 0 {
				pipe.Expire(ctx, pKey, s.cfg.MatchTTL)
				pipe.Expire(ctx, rKey, s.cfg.MatchTTL)
			}
			return nil
		})
		return err
	}, key, pKey)

	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrStaleTurn
	}
	return err
}

func (s *Storage) GetPlays(ctx context.Context, matchID model.MatchID) ([]model.Play, error) {
	if err := s.requireMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return getList[model.Play](ctx, s.client, playsKey(matchID))
}

func (s *Storage) GetPlay(ctx context.Context, matchID model.MatchID, turn int) (*model.Play, error) {
	if turn < 0 {
		return nil, model.ErrPlayNotFound
	}
	data, err := s.client.LIndex(ctx, playsKey(matchID), int64(turn)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayNotFound
		}
		return nil, err
	}
	var play model.Play
	if err := json.Unmarshal(data, &play); err != nil {
		return nil, err
	}
	return &play, nil
}

func (s *Storage) GetTurnResults(ctx context.Context, matchID model.MatchID) ([]model.TurnResult, error) {
	if err := s.requireMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return getList[model.TurnResult](ctx, s.client, turnResultsKey(matchID))
}

// Transaction operations

func (s *Storage) SaveTransactions(ctx context.Context, matchID model.MatchID, txs []model.Transaction) error {
	encoded := make([][]byte, len(txs))
	for i, t := range txs {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		encoded[i] = data
	}

	key := matchTransactionsKey(matchID)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return model.ErrAlreadySettled
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, t := range txs {
				pipe.RPush(ctx, key, encoded[i])
				pipe.RPush(ctx, playerTransactionsKey(t.PlayerID), encoded[i])
			}
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return model.ErrAlreadySettled
	}
	return err
}

func (s *Storage) GetTransactionsForMatch(ctx context.Context, matchID model.MatchID) ([]model.Transaction, error) {
	return getList[model.Transaction](ctx, s.client, matchTransactionsKey(matchID))
}

func (s *Storage) GetTransactionsForPlayer(ctx context.Context, playerID model.PlayerID) ([]model.Transaction, error) {
	return getList[model.Transaction](ctx, s.client, playerTransactionsKey(playerID))
}

// Helpers

// trackActive keeps the active match index in step with a match write
func trackActive(ctx context.Context, pipe redis.Pipeliner, match *model.Match) {
	if match.IsActive() {
		pipe.SAdd(ctx, activeMatchesKey(), string(match.ID))
	} else {
		pipe.SRem(ctx, activeMatchesKey(), string(match.ID))
	}
}

// indexMatch records the match under each seated player and in the
// active index
func (s *Storage) indexMatch(ctx context.Context, match *model.Match) error {
	pipe := s.client.Pipeline()
	for _, p := range match.Players {
		if p != "" {
			pipe.SAdd(ctx, playerMatchesKey(p), string(match.ID))
		}
	}
	trackActive(ctx, pipe, match)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) requireMatch(ctx context.Context, id model.MatchID) error {
	n, err := s.client.Exists(ctx, matchKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrMatchNotFound
	}
	return nil
}

func loadMatch(ctx context.Context, g getter, id model.MatchID) (*model.Match, error) {
	var m model.Match
	if err := getJSON(ctx, g, matchKey(id), &m, model.ErrMatchNotFound); err != nil {
		return nil, err
	}
	return &m, nil
}

// getJSON reads and decodes a JSON value, returning notFound for a missing key
func getJSON(ctx context.Context, g getter, key string, dest any, notFound error) error {
	data, err := g.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// getList reads a whole LIST of JSON values in order
func getList[T any](ctx context.Context, client *redis.Client, key string) ([]T, error) {
	raw, err := client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal([]byte(r), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
