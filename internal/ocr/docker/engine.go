// Package docker runs tesseract inside pre-warmed, network-less containers.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/wastenot/internal/ocr"
)

// EngineName identifies results produced by this engine.
const EngineName = "tesseract"

// Engine implements ocr.Engine with the tesseract CLI.
type Engine struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

// New connects to the Docker daemon, pulls the image and starts the pool.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	logger.Info("ensuring ocr image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(pullCtx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	// Draining the body blocks until the pull completes.
	_, _ = io.Copy(io.Discard, reader)
	reader.Close()
	logger.Info("ocr image is ready")

	e := &Engine{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	e.pool.Start()
	return e, nil
}

// Close stops the pool and the docker client.
func (e *Engine) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Recognize pipes image into `tesseract stdin stdout` in a warm container.
func (e *Engine) Recognize(ctx context.Context, img []byte) (*ocr.Result, error) {
	if len(img) == 0 {
		return nil, ocr.ErrEmptyImage
	}
	start := time.Now()

	containerID, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}
	defer e.pool.Release(containerID)

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          tesseractCmd(e.config.Language),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attach, err := e.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attach.Close()

	if _, err := attach.Conn.Write(img); err != nil {
		return nil, fmt.Errorf("writing image to tesseract: %w", err)
	}
	if err := attach.CloseWrite(); err != nil {
		return nil, fmt.Errorf("closing tesseract stdin: %w", err)
	}

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("reading tesseract output: %w", err)
		}
	case <-runCtx.Done():
		return nil, fmt.Errorf("ocr timed out after %s: %w", e.config.Timeout, runCtx.Err())
	}

	inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("inspecting exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return nil, fmt.Errorf("tesseract exited %d: %s", inspect.ExitCode, strings.TrimSpace(stderr.String()))
	}

	e.logger.Debug("ocr complete",
		slog.String("container", containerID[:min(12, len(containerID))]),
		slog.Duration("duration", time.Since(start)))

	return &ocr.Result{
		Text:     stdout.String(),
		Engine:   EngineName,
		Duration: time.Since(start),
	}, nil
}

func tesseractCmd(lang string) []string {
	if lang == "" {
		lang = "eng"
	}
	return []string{"tesseract", "stdin", "stdout", "-l", lang}
}
