// Package notify stores user notifications and fans them out to external
// channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks . Sink

// Sink forwards a stored notification to one external channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, to Recipient, n models.Notification) error
}

// Recipient is the subset of a user a sink needs to reach them.
type Recipient struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Phone    string `json:"-"`
}

// Dispatcher persists notifications and hands each one to every sink.
// The stored row is the source of truth; sink failures are only logged.
type Dispatcher struct {
	db    *gorm.DB
	sinks []Sink
	log   *zap.SugaredLogger
}

func NewDispatcher(db *gorm.DB, log *zap.SugaredLogger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{db: db, sinks: sinks, log: log}
}

func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) error {
	n.ID = 0
	n.IsRead = false
	if err := d.db.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	if len(d.sinks) == 0 {
		return nil
	}

	var user models.User
	err := d.db.WithContext(ctx).Select("id", "username", "phone").Where("id = ?", n.UserID).Take(&user).Error
	if err != nil {
		d.log.Warnw("notification recipient not loaded", "notification_id", n.ID, "user_id", n.UserID, "error", err)
		return nil
	}
	to := Recipient{ID: user.ID, Username: user.Username, Phone: user.Phone}

	for _, s := range d.sinks {
		if err := s.Deliver(ctx, to, n); err != nil {
			d.log.Warnw("notification sink failed", "sink", s.Name(), "notification_id", n.ID, "error", err)
		}
	}
	return nil
}

// Close releases sinks that hold connections.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, s := range d.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
