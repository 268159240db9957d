package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	sourcePrefix     = "castdeck:source:"
	roomSourcePrefix = "castdeck:room:%s:sources"
)

type RedisSourceRepository struct {
	client *redis.Client
}

func NewRedisSourceRepository(client *redis.Client) ports.SourceRepository {
	return &RedisSourceRepository{client: client}
}

func sourceKey(id domain.SourceID) string {
	return sourcePrefix + string(id)
}

func roomSourcesKey(roomID domain.RoomID) string {
	return fmt.Sprintf(roomSourcePrefix, roomID)
}

func (r *RedisSourceRepository) Upsert(ctx context.Context, src domain.Source) error {
	if !src.Kind.Valid() {
		return fmt.Errorf("invalid source kind %q", src.Kind)
	}

	// If the source moved rooms, drop it from the previous room's set.
	if prev, err := r.Get(ctx, src.ID); err == nil && prev.RoomID != src.RoomID {
		if err := r.client.SRem(ctx, roomSourcesKey(prev.RoomID), string(src.ID)).Err(); err != nil {
			return fmt.Errorf("failed to detach source from old room: %w", err)
		}
	}

	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to marshal source: %w", err)
	}
	if err := r.client.Set(ctx, sourceKey(src.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set source in Redis: %w", err)
	}
	if err := r.client.SAdd(ctx, roomSourcesKey(src.RoomID), string(src.ID)).Err(); err != nil {
		return fmt.Errorf("failed to add source to room set: %w", err)
	}
	return nil
}

func (r *RedisSourceRepository) Get(ctx context.Context, id domain.SourceID) (*domain.Source, error) {
	data, err := r.client.Get(ctx, sourceKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSourceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source from Redis: %w", err)
	}

	var src domain.Source
	if err := json.Unmarshal([]byte(data), &src); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source: %w", err)
	}
	return &src, nil
}

func (r *RedisSourceRepository) Delete(ctx context.Context, id domain.SourceID) error {
	src, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := r.client.SRem(ctx, roomSourcesKey(src.RoomID), string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove source from room set: %w", err)
	}
	if err := r.client.Del(ctx, sourceKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete source from Redis: %w", err)
	}
	return nil
}

func (r *RedisSourceRepository) ListByRoom(ctx context.Context, roomID domain.RoomID) ([]domain.Source, error) {
	ids, err := r.client.SMembers(ctx, roomSourcesKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list room sources from Redis: %w", err)
	}

	var sources []domain.Source
	for _, id := range ids {
		src, err := r.Get(ctx, domain.SourceID(id))
		if err != nil {
			// Stale set member; skip.
			continue
		}
		sources = append(sources, *src)
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

func (r *RedisSourceRepository) MoveRoom(ctx context.Context, oldRoom, newRoom domain.RoomID) error {
	sources, err := r.ListByRoom(ctx, oldRoom)
	if err != nil {
		return err
	}

	for _, src := range sources {
		src.RoomID = newRoom
		if err := r.Upsert(ctx, src); err != nil {
			return fmt.Errorf("failed to repoint source %s: %w", src.ID, err)
		}
	}

	if err := r.client.Del(ctx, roomSourcesKey(oldRoom)).Err(); err != nil {
		return fmt.Errorf("failed to drop old room source set: %w", err)
	}
	return nil
}
