// Package writer persists candidate messages and their outcome to S3.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	appconfig "github.com/ErikVieiraFer/alanocrypto-admin-sub000/config"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/models"
)

const archiveQueueSize = 256

// putObjectAPI is the S3 call used by the archive.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive writes one JSON object per candidate message under
// <prefix>/YYYY/MM/DD/<outcome>/<id>.json. Writes are queued and performed
// by background workers so the pipeline never waits on S3.
type Archive struct {
	client  putObjectAPI
	bucket  string
	prefix  string
	timeout time.Duration
	version string
	queue   chan models.ArchivedMessage
	log     *logger.Log

	mu      sync.RWMutex
	running bool
	wg      sync.WaitGroup

	written atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewArchive configures the S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS chain applies.
func NewArchive(ctx context.Context, cfg appconfig.S3Config, version string, log *logger.Log) (*Archive, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.WithComponent("archive").WithError(err).Warn("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	log.WithComponent("archive").WithFields(logger.Fields{
		"bucket":     cfg.Bucket,
		"region":     cfg.Region,
		"endpoint":   cfg.Endpoint,
		"path_style": cfg.PathStyle,
	}).Info("s3 archive initialized")

	return newArchive(client, cfg, version, log), nil
}

func newArchive(client putObjectAPI, cfg appconfig.S3Config, version string, log *logger.Log) *Archive {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Archive{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		timeout: timeout,
		version: version,
		queue:   make(chan models.ArchivedMessage, archiveQueueSize),
		log:     log,
	}
}

// Start launches the upload workers.
func (a *Archive) Start(ctx context.Context, workers int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return errors.New("archive already running")
	}
	a.running = true

	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.worker(ctx, i)
	}
	a.log.WithComponent("archive").WithFields(logger.Fields{"workers": workers}).Debug("archive workers started")
	return nil
}

// Stop closes the queue and waits for pending uploads.
func (a *Archive) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
	a.log.WithComponent("archive").WithFields(logger.Fields{
		"written": a.written.Load(),
		"dropped": a.dropped.Load(),
		"failed":  a.failed.Load(),
	}).Info("archive stopped")
}

// Archive queues msg for upload. It never blocks; when the queue is full or
// the archive is stopped the message is dropped and logged.
func (a *Archive) Archive(msg models.ArchivedMessage) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.running {
		a.drop(msg, "archive not running")
		return
	}
	select {
	case a.queue <- msg:
	default:
		a.drop(msg, "archive queue full")
	}
}

func (a *Archive) drop(msg models.ArchivedMessage, reason string) {
	a.dropped.Add(1)
	a.log.WithComponent("archive").WithFields(logger.Fields{"id": msg.ID, "outcome": msg.Outcome}).Warn(reason)
}

func (a *Archive) worker(ctx context.Context, workerID int) {
	defer a.wg.Done()
	log := a.log.WithComponent("archive").WithFields(logger.Fields{"worker_id": workerID})

	for msg := range a.queue {
		if err := a.upload(ctx, msg); err != nil {
			a.failed.Add(1)
			log.WithError(err).Error("failed to archive message")
			continue
		}
		a.written.Add(1)
	}
	log.Debug("archive queue closed, worker stopping")
}

func (a *Archive) upload(ctx context.Context, msg models.ArchivedMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal archived message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
	defer cancel()

	key := a.objectKey(msg)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"outcome":           msg.Outcome,
			"signalbot-version": a.version,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3 bucket %s: %w", a.bucket, err)
	}

	a.log.WithComponent("archive").WithFields(logger.Fields{"key": key, "bytes": len(data)}).Debug("message archived")
	return nil
}

func (a *Archive) objectKey(msg models.ArchivedMessage) string {
	ts := msg.ReceivedAt.UTC()
	return path.Join(
		a.prefix,
		fmt.Sprintf("%04d", ts.Year()),
		fmt.Sprintf("%02d", ts.Month()),
		fmt.Sprintf("%02d", ts.Day()),
		msg.Outcome,
		msg.ID+".json",
	)
}
