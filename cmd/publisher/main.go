// Package main provides a publisher that sends one order notification to the
// configured queue, standing in for the order service during local development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jnst/user-notification-service/internal/config"
	"github.com/jnst/user-notification-service/internal/logger"
	"github.com/jnst/user-notification-service/internal/model"
	"github.com/jnst/user-notification-service/internal/queue"
)

const (
	publishTimeout = 10 * time.Second
	exitCode       = 1
)

type options struct {
	subject  string
	message  string
	orderID  string
	userID   string
	status   string
	product  string
	quantity int
	amount   float64
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("publisher", flag.ContinueOnError)

	opts := &options{}
	fs.StringVar(&opts.subject, "subject", string(model.SubjectOrderCreated), "notification subject")
	fs.StringVar(&opts.message, "message", "", "message text; when empty an order snapshot is built from the order flags")
	fs.StringVar(&opts.orderID, "order-id", "1", "order id")
	fs.StringVar(&opts.userID, "user-id", "", "id of the user who placed the order")
	fs.StringVar(&opts.status, "status", "PENDING", "order status")
	fs.StringVar(&opts.product, "product", "Sample Product", "product name")
	fs.IntVar(&opts.quantity, "quantity", 1, "quantity")
	fs.Float64Var(&opts.amount, "amount", 9.99, "total amount")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.subject == "" {
		return nil, errors.New("-subject must not be empty")
	}

	return opts, nil
}

// messageText returns the explicit message or an order snapshot as JSON.
func (o *options) messageText() (string, error) {
	if o.message != "" {
		return o.message, nil
	}

	order := struct {
		ID          string  `json:"id"`
		UserID      string  `json:"userId,omitempty"`
		ProductName string  `json:"productName"`
		Quantity    int     `json:"quantity"`
		TotalAmount float64 `json:"totalAmount"`
		Status      string  `json:"status"`
	}{
		ID:          o.orderID,
		UserID:      o.userID,
		ProductName: o.product,
		Quantity:    o.quantity,
		TotalAmount: o.amount,
		Status:      o.status,
	}

	b, err := json.Marshal(order)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func run(cfg *config.Config, opts *options, log *slog.Logger) error {
	if !cfg.Queue.Enabled() {
		return errors.New("queue not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	conn, closeQueue, err := queue.Open(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	defer closeQueue()

	text, err := opts.messageText()
	if err != nil {
		return err
	}

	body, err := model.EncodeNotification(model.Subject(opts.subject), text)
	if err != nil {
		return err
	}

	id, err := conn.Publish(ctx, opts.subject, body)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	log.Info("published notification",
		slog.String("message_id", id),
		slog.String("subject", opts.subject),
		slog.String("queue", cfg.Queue.Endpoint()),
	)

	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			slog.Error("invalid arguments", slog.String("error", err.Error()))
		}
		os.Exit(exitCode)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	loggerInstance := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(loggerInstance)

	if err := run(cfg, opts, loggerInstance); err != nil {
		slog.Error("failed to publish notification", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
}
