package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/keepmind9/slackline/internal/chat"
	"github.com/keepmind9/slackline/internal/core"
	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/internal/slack"
	"github.com/keepmind9/slackline/internal/slack/api"
	"github.com/keepmind9/slackline/internal/sqsrelay"
	"github.com/keepmind9/slackline/internal/store"
)

// shutdownTimeout bounds how long start waits for the stream to close
const shutdownTimeout = 5 * time.Second

var (
	configFile string

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the slackline robot",
		Long:  "Connect to Slack, sync users and rooms, and hand messages to the robot until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := runStart(ctx, configFile); err != nil {
				log.Fatalf("slackline stopped with error: %v", err)
			}
			log.Println("slackline stopped")
		},
	}
)

// runStart loads configuration and runs the robot until ctx ends or Slack disconnects
func runStart(ctx context.Context, path string) error {
	// A missing .env file is fine
	_ = godotenv.Load()

	config, err := core.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitLogger(config.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"config_file": path,
		"log_level":   config.Logging.Level,
		"log_file":    config.Logging.File,
		"token":       core.MaskSecret(config.Slack.Token),
		"send_via":    config.Slack.SendVia,
		"store":       config.Store.Driver,
	}).Info("logger-initialized")

	app, err := newApp(ctx, config)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx)
}

// app is the wired process: store, Web API client, robot, adapter and relay
type app struct {
	store      store.Store
	robot      *core.Robot
	adapter    *slack.Adapter
	subscriber *sqsrelay.Subscriber
}

func newApp(ctx context.Context, config *core.Config, opts ...slack.Option) (*app, error) {
	st, err := store.Open(config.Store.Driver, config.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	users := store.NewEmailIndex(st)

	client := api.New(config.Slack.Token, config.ClientOptions()...)

	robot := core.NewRobot(config)
	if config.Robot.Echo {
		robot.RegisterEcho()
	}
	robot.On(chat.EventConnected, func(any) {
		logger.Info("robot-connected")
	})
	robot.On(chat.EventDisconnected, func(any) {
		logger.Info("robot-disconnected")
	})

	adapter, err := slack.NewAdapter(client, robot, users, st, config.AdapterConfig(), opts...)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create slack adapter: %w", err)
	}
	robot.SetAdapter(adapter)

	a := &app{store: st, robot: robot, adapter: adapter}

	if config.SQS.Enabled {
		sqsClient, err := sqsrelay.NewClient(ctx, config.SQSClientConfig())
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to create sqs client: %w", err)
		}
		sender := sqsrelay.NewSender(robot, users, config.SQS.RobotID, config.SQSChannels())
		a.subscriber = sqsrelay.NewSubscriber(sqsClient, sender, config.SQS.QueueName)
	}

	return a, nil
}

// Run blocks until ctx ends or the Slack stream goes away
func (a *app) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.subscriber != nil {
		go func() {
			if err := a.subscriber.Listen(ctx); err != nil {
				logger.WithField("error", err).Error("sqs-relay-stopped")
			}
		}()
	}

	fmt.Fprintln(os.Stderr, "slackline starting... press Ctrl+C to stop")
	err := a.robot.Run(ctx)

	a.robot.Stop()
	select {
	case <-a.adapter.Done():
	case <-time.After(shutdownTimeout):
		logger.Warn("slack-stream-close-timed-out")
	}
	return err
}

// Close releases the store
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.WithField("error", err).Warn("failed-to-close-store")
	}
}

func init() {
	startCmd.Flags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")
}
