package calls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/wolfman30/career-coach/pkg/logging"
)

// S3API is the subset of the S3 client used by Archiver.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver writes finished sessions to S3. With no bucket every call is a no-op.
type Archiver struct {
	bucket string
	client S3API
	logger *logging.Logger
	now    func() time.Time
}

func NewArchiver(client S3API, bucket string, logger *logging.Logger) *Archiver {
	return &Archiver{
		bucket: bucket,
		client: client,
		logger: logger.Component("call-archive"),
		now:    time.Now,
	}
}

// Enabled returns true if archival is configured.
func (a *Archiver) Enabled() bool {
	return a != nil && a.bucket != "" && a.client != nil
}

// ArchiveKey is calls/v1/by-date/YYYY/MM/DD/<room>.json, dated by session end.
func ArchiveKey(sess *CallSession, fallback time.Time) string {
	at := fallback.UTC()
	if sess.EndedAt != nil {
		at = sess.EndedAt.UTC()
	}
	return fmt.Sprintf("calls/v1/by-date/%d/%02d/%02d/%s.json", at.Year(), at.Month(), at.Day(), sess.RoomID)
}

// Archive stores sess as JSON.
func (a *Archiver) Archive(ctx context.Context, sess *CallSession) error {
	if !a.Enabled() {
		return nil
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("calls: marshal archive record: %w", err)
	}
	key := ArchiveKey(sess, a.now())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("calls: s3 put %s: %w", key, err)
	}
	a.logger.Info("archived call session", "room", sess.RoomID, "state", sess.State, "s3_key", key)
	return nil
}
