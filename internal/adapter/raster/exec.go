// Package raster turns filled chart SVG into PNG, either by running an
// external converter or in process.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultCommand is the ImageMagick converter invoked by Exec.
const DefaultCommand = "convert"

// Exec rasterizes by writing the SVG to a temporary file and running
// "<command> <file> png:-", reading the PNG from stdout.
type Exec struct {
	command []string
	timeout time.Duration
	width   int
}

// NewExec creates an Exec rasterizer. command may carry leading arguments,
// e.g. "magick convert". A zero timeout means no limit beyond ctx. A positive
// width adds "-resize <width>" to the converter arguments.
func NewExec(command string, timeout time.Duration, width int) (*Exec, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("rasterizer command is empty")
	}
	return &Exec{command: fields, timeout: timeout, width: width}, nil
}

// Rasterize implements domain.Rasterizer.
func (e *Exec) Rasterize(ctx context.Context, svg string) ([]byte, error) {
	tmp, err := os.CreateTemp("", "body-chart-*.svg")
	if err != nil {
		return nil, fmt.Errorf("create temp svg: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(svg); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp svg: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("write temp svg: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.command[0], e.args(tmp.Name())...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", e.command[0], err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", e.command[0], err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("run %s: no output", e.command[0])
	}
	return stdout.Bytes(), nil
}

func (e *Exec) args(input string) []string {
	args := append([]string(nil), e.command[1:]...)
	args = append(args, input)
	if e.width > 0 {
		args = append(args, "-resize", strconv.Itoa(e.width))
	}
	return append(args, "png:-")
}

// CheckReadiness reports whether the converter binary can be found.
func (e *Exec) CheckReadiness(_ context.Context) error {
	if _, err := exec.LookPath(e.command[0]); err != nil {
		return fmt.Errorf("rasterizer unavailable: %w", err)
	}
	return nil
}
