package judge

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// compileFailedExit is the exit code the run script uses for a failed
// compile step.
const compileFailedExit = 90

// runtime describes how one language id runs in a container.
type runtime struct {
	Image   string
	File    string
	Compile string
	Run     string
}

var dockerRuntimes = map[int]runtime{
	71: {Image: "python:3.12-slim", File: "main.py", Run: "python3 main.py"},
	63: {Image: "node:22-slim", File: "main.js", Run: "node main.js"},
	74: {Image: "node:22-slim", File: "main.ts", Run: "node --experimental-strip-types main.ts"},
	60: {Image: "golang:1.24-alpine", File: "main.go", Compile: "go build -o main main.go", Run: "./main"},
	62: {Image: "eclipse-temurin:21-jdk", File: "Main.java", Compile: "javac Main.java", Run: "java Main"},
	50: {Image: "gcc:14", File: "main.c", Compile: "gcc -O2 -o main main.c -lm", Run: "./main"},
	54: {Image: "gcc:14", File: "main.cpp", Compile: "g++ -O2 -std=c++17 -o main main.cpp", Run: "./main"},
	72: {Image: "ruby:3.3-slim", File: "main.rb", Run: "ruby main.rb"},
	MultiFileLanguageID: {Image: "eclipse-temurin:21-jdk", Run: "bash run"},
}

// DockerConfig configures the Docker judge backend.
type DockerConfig struct {
	// Timeout bounds one run including compilation (default: 30s).
	Timeout time.Duration

	// MemoryMB limits container memory (default: 256).
	MemoryMB int

	// CPULimit in cores (default: 1).
	CPULimit float64

	Logger *slog.Logger
}

// DefaultDockerConfig returns defaults for local grading.
func DefaultDockerConfig() DockerConfig {
	return DockerConfig{
		Timeout:  30 * time.Second,
		MemoryMB: 256,
		CPULimit: 1,
	}
}

// DockerClient runs submissions in throwaway containers. It implements
// Client for local development without a judge server.
type DockerClient struct {
	client *client.Client
	config DockerConfig
	logger *slog.Logger
}

// NewDockerClient connects to the Docker daemon from the environment.
func NewDockerClient(cfg DockerConfig) (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	// Verify Docker is reachable
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker not reachable: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = 256
	}
	if cfg.CPULimit <= 0 {
		cfg.CPULimit = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DockerClient{client: cli, config: cfg, logger: logger}, nil
}

// Submit runs the submission to completion. Execution is always
// synchronous, so wait has no effect.
func (d *DockerClient) Submit(ctx context.Context, sub *Submission, _ bool) (*Result, error) {
	rt, ok := dockerRuntimes[sub.LanguageID]
	if !ok {
		return &Result{
			Status:  NewStatus(StatusExecFormatError),
			Message: fmt.Sprintf("language id %d is not supported by the docker backend", sub.LanguageID),
		}, nil
	}

	files, err := workspaceFiles(rt, sub)
	if err != nil {
		return nil, err
	}
	archive, err := tarWorkspace(files)
	if err != nil {
		return nil, err
	}

	if err := d.ensureImage(ctx, rt.Image); err != nil {
		return nil, fmt.Errorf("%w: ensure image: %w", ErrTransport, err)
	}

	containerCfg := &container.Config{
		Image:           rt.Image,
		Cmd:             []string{"sh", "-c", runScript(rt)},
		WorkingDir:      "/workspace",
		NetworkDisabled: true,
		Labels: map[string]string{
			"syllabus.judge":       "true",
			"syllabus.language_id": fmt.Sprint(sub.LanguageID),
		},
	}
	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   int64(d.config.MemoryMB) * 1024 * 1024,
			NanoCPUs: int64(d.config.CPULimit * 1e9),
		},
	}

	created, err := d.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %w", ErrTransport, err)
	}
	defer d.remove(created.ID)

	if err := d.client.CopyToContainer(ctx, created.ID, "/", archive, container.CopyToContainerOptions{}); err != nil {
		return nil, fmt.Errorf("%w: copy files: %w", ErrTransport, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	start := time.Now()
	if err := d.client.ContainerStart(runCtx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: start container: %w", ErrTransport, err)
	}

	var exitCode int64
	waitCh, errCh := d.client.ContainerWait(runCtx, created.ID, container.WaitConditionNotRunning)
	select {
	case res := <-waitCh:
		exitCode = res.StatusCode
	case err := <-errCh:
		if runCtx.Err() == nil || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: wait container: %w", ErrTransport, err)
		}
		return &Result{
			Status: NewStatus(StatusTimeLimitExceeded),
			Time:   time.Since(start).Seconds(),
		}, nil
	}
	elapsed := time.Since(start)

	stdout, stderr, err := d.logs(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: read logs: %w", ErrTransport, err)
	}

	d.logger.Debug("docker judge run",
		"language_id", sub.LanguageID,
		"exit_code", exitCode,
		"duration", elapsed)

	return classify(sub, exitCode, stdout, stderr, elapsed), nil
}

// Close closes the Docker client.
func (d *DockerClient) Close() error {
	return d.client.Close()
}

func (d *DockerClient) logs(ctx context.Context, id string) (string, string, error) {
	reader, err := d.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return "", "", err
	}
	return stdout.String(), stderr.String(), nil
}

func (d *DockerClient) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		d.logger.Warn("remove judge container", "container", id, "error", err)
	}
}

func (d *DockerClient) ensureImage(ctx context.Context, img string) error {
	if _, err := d.client.ImageInspect(ctx, img); err == nil {
		return nil
	}

	reader, err := d.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	// Drain the reader to complete the pull
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// runScript builds the container command. Compile output is captured and
// replayed on stdout with exit code compileFailedExit so the caller can
// tell compile errors from runtime failures.
func runScript(rt runtime) string {
	var b strings.Builder
	if rt.Compile != "" {
		fmt.Fprintf(&b, "%s > .compile 2>&1 || { cat .compile; exit %d; }; ", rt.Compile, compileFailedExit)
	}
	fmt.Fprintf(&b, "%s < .stdin", rt.Run)
	return b.String()
}

// workspaceFiles lays out the files a submission needs under /workspace.
func workspaceFiles(rt runtime, sub *Submission) (map[string][]byte, error) {
	files := map[string][]byte{
		".stdin": []byte(sub.Stdin),
	}

	if sub.LanguageID == MultiFileLanguageID {
		if len(sub.AdditionalFiles) == 0 {
			return nil, errors.New("multi-file submission has no additional files")
		}
		zr, err := zip.NewReader(bytes.NewReader(sub.AdditionalFiles), int64(len(sub.AdditionalFiles)))
		if err != nil {
			return nil, fmt.Errorf("open bundle: %w", err)
		}
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			if strings.Contains(f.Name, "..") || strings.HasPrefix(f.Name, "/") {
				return nil, fmt.Errorf("bundle entry %q escapes the workspace", f.Name)
			}
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open bundle entry %s: %w", f.Name, err)
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("read bundle entry %s: %w", f.Name, err)
			}
			files[f.Name] = data
		}
		return files, nil
	}

	files[rt.File] = []byte(sub.SourceCode)
	return files, nil
}

// tarWorkspace packs files under workspace/ for CopyToContainer at "/".
func tarWorkspace(files map[string][]byte) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	dirs := map[string]bool{"workspace/": true}
	if err := tw.WriteHeader(&tar.Header{Name: "workspace/", Mode: 0o777, Typeflag: tar.TypeDir}); err != nil {
		return nil, fmt.Errorf("write tar header: %w", err)
	}

	for name, content := range files {
		full := "workspace/" + name
		for i := len("workspace/"); i < len(full); i++ {
			if full[i] != '/' || dirs[full[:i+1]] {
				continue
			}
			dirs[full[:i+1]] = true
			if err := tw.WriteHeader(&tar.Header{Name: full[:i+1], Mode: 0o777, Typeflag: tar.TypeDir}); err != nil {
				return nil, fmt.Errorf("write tar header: %w", err)
			}
		}

		mode := int64(0o644)
		if name == "run" {
			mode = 0o755
		}
		if err := tw.WriteHeader(&tar.Header{Name: full, Mode: mode, Size: int64(len(content))}); err != nil {
			return nil, fmt.Errorf("write tar header: %w", err)
		}
		if _, err := tw.Write(content); err != nil {
			return nil, fmt.Errorf("write tar content: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	return &buf, nil
}

// classify turns a container exit into a judge result.
func classify(sub *Submission, exitCode int64, stdout, stderr string, elapsed time.Duration) *Result {
	res := &Result{
		Stdout: stdout,
		Stderr: stderr,
		Time:   elapsed.Seconds(),
	}

	switch {
	case exitCode == compileFailedExit && sub.LanguageID != MultiFileLanguageID:
		res.Stdout = ""
		res.CompileOutput = stdout
		res.Status = NewStatus(StatusCompilationError)
	case exitCode != 0:
		res.Status = NewStatus(StatusRuntimeNZEC)
		res.Message = fmt.Sprintf("Exited with error status %d", exitCode)
	case sub.ExpectedOutput != "" && strings.TrimSpace(stdout) != strings.TrimSpace(sub.ExpectedOutput):
		res.Status = NewStatus(StatusWrongAnswer)
	default:
		res.Status = NewStatus(StatusAccepted)
	}
	return res
}
