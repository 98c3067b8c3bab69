package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ActivityEvent is one record of the label activity log.
type ActivityEvent struct {
	ID      uuid.UUID `json:"id"`
	Time    time.Time `json:"time"`
	Op      string    `json:"op"`
	LabelID string    `json:"labelId,omitempty"`
	ItemIDs []string  `json:"itemIds,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// ActivitySink stores activity events for later inspection.
type ActivitySink interface {
	Record(ctx context.Context, ev ActivityEvent) error
	Recent(ctx context.Context, limit int) ([]ActivityEvent, error)
	Ping(ctx context.Context) error
	Close() error
}

var errActivityDisabled = errors.New("activity sink disabled")

// nopActivity is used when no ClickHouse server is configured.
type nopActivity struct{}

func (nopActivity) Record(context.Context, ActivityEvent) error { return nil }

func (nopActivity) Recent(context.Context, int) ([]ActivityEvent, error) {
	return []ActivityEvent{}, nil
}

func (nopActivity) Ping(context.Context) error { return errActivityDisabled }
func (nopActivity) Close() error               { return nil }

// ClickHouseActivity writes activity events to a MergeTree table.
type ClickHouseActivity struct {
	conn  driver.Conn
	table string
}

// NewClickHouseActivity wraps conn and creates the table if needed.
func NewClickHouseActivity(ctx context.Context, conn driver.Conn, table string) (*ClickHouseActivity, error) {
	a := &ClickHouseActivity{conn: conn, table: table}
	if err := a.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create activity table: %w", err)
	}
	return a, nil
}

func (a *ClickHouseActivity) ensureTable(ctx context.Context) error {
	return a.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			event_id UUID,
			event_time DateTime64(3, 'UTC'),
			op LowCardinality(String),
			label_id String,
			item_ids Array(String),
			detail String
		) ENGINE = MergeTree
		ORDER BY (event_time, event_id)
	`, a.table))
}

func (a *ClickHouseActivity) Record(ctx context.Context, ev ActivityEvent) error {
	batch, err := a.conn.PrepareBatch(ctx, "INSERT INTO "+a.table)
	if err != nil {
		return fmt.Errorf("failed to prepare activity batch: %w", err)
	}
	itemIDs := ev.ItemIDs
	if itemIDs == nil {
		itemIDs = []string{}
	}
	if err := batch.Append(ev.ID, ev.Time, ev.Op, ev.LabelID, itemIDs, ev.Detail); err != nil {
		batch.Abort()
		return fmt.Errorf("failed to append activity event: %w", err)
	}
	return batch.Send()
}

// Recent returns up to limit events, newest first.
func (a *ClickHouseActivity) Recent(ctx context.Context, limit int) ([]ActivityEvent, error) {
	rows, err := a.conn.Query(ctx, fmt.Sprintf(
		"SELECT event_id, event_time, op, label_id, item_ids, detail FROM %s ORDER BY event_time DESC LIMIT %d",
		a.table, limit,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	return scanActivityRows(rows)
}

func scanActivityRows(rows driver.Rows) ([]ActivityEvent, error) {
	events := []ActivityEvent{}
	for rows.Next() {
		var ev ActivityEvent
		if err := rows.Scan(&ev.ID, &ev.Time, &ev.Op, &ev.LabelID, &ev.ItemIDs, &ev.Detail); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (a *ClickHouseActivity) Ping(ctx context.Context) error {
	return a.conn.Ping(ctx)
}

func (a *ClickHouseActivity) Close() error {
	return a.conn.Close()
}

// clickHouseOptions builds connection options for cfg. Secure connections
// are used for port 9440 or when cfg.Secure is set.
func clickHouseOptions(cfg ClickHouseConfig) *clickhouse.Options {
	options := &clickhouse.Options{
		Addr: []string{cfg.Host},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "labeltree", Version: "1.0"},
			},
		},
		// Disable sending workstation/OS metadata
		Settings: clickhouse.Settings{
			"send_logs_level": "none",
		},
		DialTimeout: 5 * time.Second,
	}

	if cfg.Secure || strings.Contains(cfg.Host, ":9440") {
		options.TLS = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}
	}
	return options
}

// openActivitySink connects to ClickHouse when a host is configured and
// falls back to a no-op sink otherwise. A failed connection is not fatal.
func openActivitySink(ctx context.Context, cfg ClickHouseConfig) ActivitySink {
	if cfg.Host == "" {
		log.Info("ClickHouse not configured, activity log disabled")
		return nopActivity{}
	}

	options := clickHouseOptions(cfg)
	log.WithFields(log.Fields{
		"host":     cfg.Host,
		"database": cfg.Database,
		"user":     cfg.User,
		"password": maskPassword(cfg.Password),
		"secure":   options.TLS != nil,
	}).Info("Connecting to ClickHouse")

	conn, err := clickhouse.Open(options)
	if err != nil {
		log.WithError(err).Warn("Failed to connect to ClickHouse, activity log disabled")
		return nopActivity{}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		log.WithError(err).Warn("ClickHouse ping failed, activity log disabled")
		conn.Close()
		return nopActivity{}
	}

	sink, err := NewClickHouseActivity(ctx, conn, cfg.Table)
	if err != nil {
		log.WithError(err).Warn("Activity log disabled")
		conn.Close()
		return nopActivity{}
	}

	log.WithField("table", cfg.Table).Info("Activity log writing to ClickHouse")
	return sink
}

func maskPassword(password string) string {
	if password == "" {
		return "<empty>"
	}
	if len(password) <= 2 {
		return strings.Repeat("*", len(password))
	}
	return string(password[0]) + strings.Repeat("*", len(password)-2) + string(password[len(password)-1])
}
