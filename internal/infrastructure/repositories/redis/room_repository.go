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
	roomPrefix   = "castdeck:room:"
	liveRoomsKey = "castdeck:rooms:live"
	eventChannel = "castdeck:rooms:events"
)

type RedisRoomRepository struct {
	client *redis.Client
}

func NewRedisRoomRepository(client *redis.Client) ports.RoomRepository {
	return &RedisRoomRepository{client: client}
}

func roomKey(id domain.RoomID) string {
	return roomPrefix + string(id)
}

func (r *RedisRoomRepository) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	data, err := r.client.Get(ctx, roomKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room from Redis: %w", err)
	}

	var room domain.Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &room, nil
}

func (r *RedisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	// SetNX keeps create idempotent against concurrent first references.
	created, err := r.client.SetNX(ctx, roomKey(room.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create room in Redis: %w", err)
	}
	if !created {
		return nil
	}

	if room.IsLive {
		if err := r.client.SAdd(ctx, liveRoomsKey, string(room.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add room to live set: %w", err)
		}
	}

	r.publish(ctx, domain.RoomEvent{Type: domain.RoomCreated, Room: *room})
	return nil
}

func (r *RedisRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	if _, err := r.Get(ctx, room.ID); err != nil {
		return err
	}

	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}
	if err := r.client.Set(ctx, roomKey(room.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update room in Redis: %w", err)
	}

	if room.IsLive {
		if err := r.client.SAdd(ctx, liveRoomsKey, string(room.ID)).Err(); err != nil {
			return fmt.Errorf("failed to add room to live set: %w", err)
		}
	} else {
		if err := r.client.SRem(ctx, liveRoomsKey, string(room.ID)).Err(); err != nil {
			return fmt.Errorf("failed to remove room from live set: %w", err)
		}
	}

	r.publish(ctx, domain.RoomEvent{Type: domain.RoomUpdated, Room: *room})
	return nil
}

func (r *RedisRoomRepository) Delete(ctx context.Context, id domain.RoomID) error {
	room, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := r.client.SRem(ctx, liveRoomsKey, string(id)).Err(); err != nil {
		return fmt.Errorf("failed to remove room from live set: %w", err)
	}
	if err := r.client.Del(ctx, roomKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete room from Redis: %w", err)
	}

	r.publish(ctx, domain.RoomEvent{Type: domain.RoomDeleted, Room: *room})
	return nil
}

func (r *RedisRoomRepository) ListLive(ctx context.Context) ([]*domain.Room, error) {
	ids, err := r.client.SMembers(ctx, liveRoomsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list live rooms from Redis: %w", err)
	}

	var rooms []*domain.Room
	for _, id := range ids {
		room, err := r.Get(ctx, domain.RoomID(id))
		if err != nil {
			// Stale live-set member; skip.
			continue
		}
		if room.IsLive {
			rooms = append(rooms, room)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.After(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// Subscribe delivers room change events via Redis pub/sub, the analogue of
// the hosted store's realtime change notifications.
func (r *RedisRoomRepository) Subscribe(ctx context.Context) (<-chan domain.RoomEvent, error) {
	pubsub := r.client.Subscribe(ctx, eventChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to room events: %w", err)
	}

	out := make(chan domain.RoomEvent, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev domain.RoomEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RedisRoomRepository) publish(ctx context.Context, ev domain.RoomEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	// Event delivery is best-effort; a failed publish never fails the write.
	_ = r.client.Publish(ctx, eventChannel, data).Err()
}
