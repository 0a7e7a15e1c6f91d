// Package messaging mirrors controller state into Redis and takes
// commands from a Redis list.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweeney/traffic-light/internal/logger"
	"github.com/sweeney/traffic-light/internal/logic"
	"github.com/sweeney/traffic-light/internal/protocol"
)

const (
	// Hash holds the current state fields.
	Hash = "traffic-light"
	// Channel receives the name of each field that changed.
	Channel = "traffic-light"
	// CommandList is BRPOPed for serial-protocol frames.
	CommandList = "traffic-light:command"
)

// State is the mirrored controller state.
type State struct {
	Label logic.Label
	Phase int
	Mode  logic.Mode
}

// Mirror receives reporter emissions.
type Mirror interface {
	PublishState(s State) error
	PublishBrightness(brightness int) error
	Close() error
}

// RedisClient mirrors state to a Redis hash and listens on CommandList.
type RedisClient struct {
	client   *redis.Client
	logger   *logger.Logger
	commands chan<- string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewRedisClient creates a client for addr. Frames popped from
// CommandList go to commands once StartListening is called.
func NewRedisClient(addr string, l *logger.Logger, commands chan<- string) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		}),
		logger:   l,
		commands: commands,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Connect pings the server.
func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	r.logger.Infof("Connected to Redis")
	return nil
}

// StartListening starts the command list listener.
func (r *RedisClient) StartListening() {
	if r.commands == nil {
		return
	}
	r.wg.Add(1)
	go r.listCommandListener(CommandList)
}

func (r *RedisClient) listCommandListener(key string) {
	defer r.wg.Done()
	r.logger.Infof("Starting list command listener for %s", key)

	for {
		// Short timeout so cancellation is noticed
		result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if r.ctx.Err() != nil {
				r.logger.Infof("Context cancelled, exiting %s listener", key)
				return
			}
			r.logger.Warnf("Error reading from %s list: %v", key, err)
			select {
			case <-time.After(time.Second):
			case <-r.ctx.Done():
				return
			}
			continue
		}

		// BRPOP returns [key, value]
		if len(result) >= 2 {
			r.logger.Debugf("Received command from %s: %s", key, result[1])
			if !deliver(r.ctx, result[1], r.commands) {
				return
			}
		}
	}
}

// deliver splits value into frames and sends them to out. It reports
// false if ctx ended first.
func deliver(ctx context.Context, value string, out chan<- string) bool {
	for _, frame := range protocol.Frames(value) {
		select {
		case out <- frame:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// publishHashSet atomically updates hash fields and announces the change.
func (r *RedisClient) publishHashSet(values map[string]interface{}, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, Hash, values)
	pipe.Publish(r.ctx, Channel, payload)
	_, err := pipe.Exec(r.ctx)
	return err
}

// PublishState writes state, phase and mode to Hash and announces
// "state" on Channel.
func (r *RedisClient) PublishState(s State) error {
	r.logger.Debugf("Publishing state: %s phase %d mode %s", s.Label, s.Phase, s.Mode)
	err := r.publishHashSet(map[string]interface{}{
		"state": string(s.Label),
		"phase": s.Phase,
		"mode":  string(s.Mode),
	}, "state")
	if err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	return nil
}

// PublishBrightness writes brightness to Hash and announces "brightness"
// on Channel.
func (r *RedisClient) PublishBrightness(brightness int) error {
	err := r.publishHashSet(map[string]interface{}{"brightness": brightness}, "brightness")
	if err != nil {
		return fmt.Errorf("publish brightness: %w", err)
	}
	return nil
}

// Close stops the listeners and closes the connection.
func (r *RedisClient) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.client.Close()
}
