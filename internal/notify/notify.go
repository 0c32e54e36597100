// Package notify publishes finished build reports over NATS. Reports go to
// `<prefix>.builds.<project>` and a JetStream KV bucket keeps the last
// report per project for cheap dashboard reads. Notification failures are
// warnings; they never fail a build.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/docship/internal/config"
	ferrors "git.home.luguber.info/inful/docship/internal/foundation/errors"
	"git.home.luguber.info/inful/docship/internal/logfields"
)

const opTimeout = 5 * time.Second

// Notifier owns the NATS connection and the last-report KV bucket.
type Notifier struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	prefix string
	bucket string
}

// New connects to NATS and ensures the KV bucket exists. Callers only
// construct a Notifier when notifications are enabled.
func New(cfg *config.NATSConfig) (*Notifier, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("nats notification config missing").Build()
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("docship"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "nats connect failed").
			Warning().
			WithContext("url", cfg.URL).
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "jetstream init failed").Warning().Build()
	}

	n := &Notifier{conn: conn, js: js, prefix: cfg.SubjectPrefix, bucket: cfg.KVBucket}
	if err := n.ensureBucket(); err != nil {
		conn.Close()
		return nil, err
	}

	slog.Info("Notifier connected",
		slog.String("url", cfg.URL),
		slog.String("subject_prefix", cfg.SubjectPrefix),
		slog.String("kv_bucket", cfg.KVBucket))
	return n, nil
}

func (n *Notifier) ensureBucket() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	kv, err := n.js.KeyValue(ctx, n.bucket)
	if err == nil {
		n.kv = kv
		return nil
	}
	kv, err = n.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      n.bucket,
		Description: "Last build report per project",
		History:     1,
		MaxBytes:    32 << 20,
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "kv bucket create failed").
			Warning().
			WithContext("bucket", n.bucket).
			Build()
	}
	n.kv = kv
	return nil
}

// PublishReport sends the serialized run report for a project and stores it
// as the project's last report.
func (n *Notifier) PublishReport(ctx context.Context, project string, reportJSON []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	subject := n.ReportSubject(project)
	if _, err := n.js.Publish(ctx, subject, reportJSON); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "report publish failed").
			Warning().
			WithContext("subject", subject).
			Build()
	}
	if _, err := n.kv.Put(ctx, subjectToken(project), reportJSON); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "last-report store failed").
			Warning().
			WithContext("project", project).
			Build()
	}

	slog.Debug("Report published", logfields.Project(project), slog.String("subject", subject))
	return nil
}

// LastReport returns the most recent report stored for a project, or nil
// when none exists yet.
func (n *Notifier) LastReport(ctx context.Context, project string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	entry, err := n.kv.Get(ctx, subjectToken(project))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryNotify, "last-report read failed").
			Warning().
			WithContext("project", project).
			Build()
	}
	return entry.Value(), nil
}

// ReportSubject returns the subject reports for a project are published on.
func (n *Notifier) ReportSubject(project string) string {
	return n.prefix + ".builds." + subjectToken(project)
}

// Connected reports whether the NATS connection is currently up.
func (n *Notifier) Connected() bool {
	return n != nil && n.conn != nil && n.conn.Status() == nats.CONNECTED
}

// Close drains the connection.
func (n *Notifier) Close() {
	if n != nil && n.conn != nil {
		n.conn.Close()
	}
}

// subjectToken makes a project name safe as a single NATS subject token and
// KV key.
func subjectToken(project string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '*', '>', '/':
			return '-'
		}
		return r
	}, project)
}
