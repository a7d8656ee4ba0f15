package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceStopTimeout = 30 * time.Second

var errServiceStopTimeout = errors.New("timeout waiting for service to stop")

// program runs the HTTP server under the system service manager, which
// delivers stop requests through Stop instead of signals.
type program struct {
	app *app

	cancel context.CancelFunc
	exit   chan struct{}
	err    error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		p.err = runServer(ctx, p.app, false)
		if p.err != nil {
			p.app.zap().Error("service stopped with error", zap.Error(p.err))
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.cancel()
	select {
	case <-p.exit:
		return p.err
	case <-time.After(serviceStopTimeout):
		return errServiceStopTimeout
	}
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "go-upscaler",
		DisplayName: "Go Upscaler",
		Description: "Super-resolution image upscaling over HTTP",
		Arguments:   []string{"service", "run"},
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

func newService(a *app) (service.Service, error) {
	s, err := service.New(&program{app: a}, serviceConfig())
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return s, nil
}

func serviceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control the HTTP server as a system service",
		Long: `Manage the upscaler as a system service (systemd, launchd or the Windows
service manager). The installed service runs "upscaler service run" with the
configuration in its environment.`,
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the service", capitalize(action)),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newService(a)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("%s service: %w", action, err)
				}
				printSuccess(cmd.OutOrStdout(), "service %s: ok", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the service is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newService(a)
			if err != nil {
				return err
			}
			status, err := s.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return fmt.Errorf("service status: %w", err)
			}
			label := serviceStatusLabel(status, err)
			if a.flags.json {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"status": label})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service is %s\n", label)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the server in the foreground under the service manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newService(a)
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}

func serviceStatusLabel(status service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch status {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
