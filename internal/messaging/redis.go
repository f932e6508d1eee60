// Package messaging mirrors the BCM state into redis and accepts operator
// commands pushed onto redis lists.
package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"bcm-service/internal/logger"
	"bcm-service/internal/types"
)

// Callbacks are invoked on operator commands. Nil callbacks disable the
// corresponding command.
type Callbacks struct {
	ClearFaults func() error
	Hazard      func(bool) error // true for "on", false for "off"
	DoorLock    func(bool) error // true for "lock", false for "unlock"
}

type RedisClient struct {
	client    *redis.Client
	callbacks Callbacks
	logger    *logger.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewRedisClient(addr string, l *logger.Logger, callbacks Callbacks) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		}),
		callbacks: callbacks,
		logger:    l,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *RedisClient) Connect() error {
	r.logger.Infof("Connecting to Redis at %s", r.client.Options().Addr)
	if err := r.client.Ping(r.ctx).Err(); err != nil {
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	return nil
}

// StartListening starts the command list listeners. Call after the core is
// ready to accept requests.
func (r *RedisClient) StartListening() {
	r.wg.Add(3)
	go r.listCommandListener("bcm:fault", r.handleFaultCommand)
	go r.listCommandListener("bcm:hazard", r.handleHazardCommand)
	go r.listCommandListener("bcm:lock", r.handleLockCommand)
}

func (r *RedisClient) listCommandListener(key string, handler func(string) error) {
	defer r.wg.Done()
	r.logger.Debugf("Starting list command listener for %s", key)

	for {
		select {
		case <-r.ctx.Done():
			return
		default:
			// Short BRPOP timeout so context cancellation is noticed.
			result, err := r.client.BRPop(r.ctx, 5*time.Second, key).Result()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				if r.ctx.Err() != nil {
					return
				}
				r.logger.Warnf("Error reading from %s list: %v", key, err)
				continue
			}
			if len(result) >= 2 { // BRPOP returns [key, value]
				value := result[1]
				r.logger.Debugf("Received command from %s: %s", key, value)
				if err := handler(value); err != nil {
					r.logger.Warnf("Error handling %s command: %v", key, err)
				}
			}
		}
	}
}

func (r *RedisClient) handleFaultCommand(value string) error {
	if r.callbacks.ClearFaults == nil {
		return nil
	}
	switch value {
	case "clear":
		return r.callbacks.ClearFaults()
	default:
		return fmt.Errorf("invalid fault command: %s", value)
	}
}

func (r *RedisClient) handleHazardCommand(value string) error {
	if r.callbacks.Hazard == nil {
		return nil
	}
	switch value {
	case "on", "off":
		return r.callbacks.Hazard(value == "on")
	default:
		return fmt.Errorf("invalid hazard command: %s", value)
	}
}

func (r *RedisClient) handleLockCommand(value string) error {
	if r.callbacks.DoorLock == nil {
		return nil
	}
	switch value {
	case "lock", "unlock":
		return r.callbacks.DoorLock(value == "lock")
	default:
		return fmt.Errorf("invalid lock command: %s", value)
	}
}

// PublishSnapshot mirrors the state into the bcm:state hash.
func (r *RedisClient) PublishSnapshot(s types.Snapshot) error {
	fields := map[string]interface{}{
		"state":               string(s.State),
		"uptime_min":          s.UptimeMinutes,
		"ignition":            s.Ignition,
		"door_lock_mask":      s.DoorLockMask,
		"door_open_mask":      s.DoorOpenMask,
		"headlight_output":    s.HeadlightOutput,
		"interior_brightness": s.InteriorBrightness,
		"ambient_level":       s.AmbientLevel,
		"turn_mode":           s.TurnMode,
		"lamp_mask":           s.LampMask,
		"flash_count":         s.FlashCount,
		"fault_count":         s.FaultCount,
		"fault_flags":         s.FaultFlags,
		"recent_fault":        s.RecentFault,
	}
	if err := r.client.HSet(r.ctx, "bcm:state", fields).Err(); err != nil {
		return fmt.Errorf("failed to publish state: %w", err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	r.cancel()
	r.wg.Wait()
	return r.client.Close()
}
