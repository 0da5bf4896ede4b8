// Package jobxredis implements the jobx backend on Redis.
package jobxredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/klubhub/klubhub/pkg/jobx"
)

const (
	jobKeyPrefix    = "jobx:job:"
	readyKeyPrefix  = "jobx:ready:"
	delayKeyPrefix  = "jobx:delayed:"
	jobRetention    = 24 * time.Hour
)

// RedisQueue implements jobx.Queue on a Redis list per queue with a sorted
// set for delayed retries.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates the backend.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func jobKey(id string) string       { return jobKeyPrefix + id }
func readyKey(queue string) string  { return readyKeyPrefix + queue }
func delayKey(queue string) string  { return delayKeyPrefix + queue }

func (q *RedisQueue) saveJob(ctx context.Context, info *jobx.JobInfo) error {
	info.UpdatedAt = time.Now()
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("jobxredis: marshal job: %w", err)
	}
	return q.client.Set(ctx, jobKey(info.ID), data, jobRetention).Err()
}

func (q *RedisQueue) loadJob(ctx context.Context, id string) (*jobx.JobInfo, error) {
	data, err := q.client.Get(ctx, jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("jobxredis: job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("jobxredis: load job: %w", err)
	}
	var info jobx.JobInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("jobxredis: unmarshal job: %w", err)
	}
	return &info, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, job jobx.Job) (string, error) {
	info := &jobx.JobInfo{
		ID:         uuid.NewString(),
		Type:       job.Type,
		Queue:      job.Queue,
		Payload:    job.Payload,
		Status:     jobx.JobStatusPending,
		MaxRetries: job.MaxRetries,
		CreatedAt:  time.Now(),
	}
	if err := q.saveJob(ctx, info); err != nil {
		return "", err
	}
	if err := q.client.LPush(ctx, readyKey(job.Queue), info.ID).Err(); err != nil {
		return "", fmt.Errorf("jobxredis: enqueue: %w", err)
	}
	return info.ID, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, queues []string, timeout time.Duration) (*jobx.JobInfo, error) {
	keys := make([]string, len(queues))
	for i, queue := range queues {
		keys[i] = readyKey(queue)
	}

	res, err := q.client.BRPop(ctx, timeout, keys...).Result()
	if err == redis.Nil {
		return nil, nil // timed out, nothing ready
	}
	if err != nil {
		return nil, fmt.Errorf("jobxredis: dequeue: %w", err)
	}

	info, err := q.loadJob(ctx, res[1])
	if err != nil {
		return nil, err
	}
	info.Status = jobx.JobStatusActive
	info.Attempts++
	if err := q.saveJob(ctx, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	info, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	info.Status = jobx.JobStatusCompleted
	info.Error = ""
	return q.saveJob(ctx, info)
}

func (q *RedisQueue) Fail(ctx context.Context, jobID string, errMsg string) (bool, error) {
	info, err := q.loadJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	info.Error = errMsg
	if info.Attempts < info.MaxRetries {
		info.Status = jobx.JobStatusRetrying
		return true, q.saveJob(ctx, info)
	}
	info.Status = jobx.JobStatusFailed
	return false, q.saveJob(ctx, info)
}

func (q *RedisQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	info, err := q.loadJob(ctx, jobID)
	if err != nil {
		return err
	}
	score := float64(time.Now().Add(delay).Unix())
	err = q.client.ZAdd(ctx, delayKey(info.Queue), redis.Z{Score: score, Member: jobID}).Err()
	if err != nil {
		return fmt.Errorf("jobxredis: schedule retry: %w", err)
	}
	return nil
}

func (q *RedisQueue) PromoteScheduled(ctx context.Context, queues []string) error {
	now := fmt.Sprintf("%d", time.Now().Unix())
	for _, queue := range queues {
		ids, err := q.client.ZRangeByScore(ctx, delayKey(queue), &redis.ZRangeBy{
			Min: "-inf", Max: now,
		}).Result()
		if err != nil {
			return fmt.Errorf("jobxredis: promote scan: %w", err)
		}
		for _, id := range ids {
			pipe := q.client.TxPipeline()
			pipe.ZRem(ctx, delayKey(queue), id)
			pipe.LPush(ctx, readyKey(queue), id)
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("jobxredis: promote job %s: %w", id, err)
			}
		}
	}
	return nil
}
