package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/smazurov/camhal/internal/capture"
	"github.com/smazurov/camhal/internal/imageconv"
	"github.com/smazurov/camhal/internal/logging"
	"github.com/smazurov/camhal/pkg/hal"
	"github.com/spf13/cobra"
)

type captureFlags struct {
	count  int
	output string
	format string
	width  uint32
	height uint32
	skip   int
}

// CreateCaptureCmd creates the capture command.
func CreateCaptureCmd(env func() Env) *cobra.Command {
	var flags captureFlags

	cmd := &cobra.Command{
		Use:   "capture <address>",
		Short: "Pull frames from a device and save them",
		Long: `Pulls frames from one stream and writes each to the output directory. ` +
			`JPEG payloads are saved as-is, uncompressed frames are converted to PNG, ` +
			`and anything else is written raw.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := env().Open(args[0])
			if err != nil {
				return err
			}
			defer dev.Close()
			return runCapture(cmd.OutOrStdout(), dev, flags)
		},
	}

	cmd.Flags().IntVarP(&flags.count, "count", "n", 1, "Number of frames to save")
	cmd.Flags().StringVarP(&flags.output, "output", "o", ".", "Output directory")
	cmd.Flags().StringVar(&flags.format, "format", "", "Pixel format name or FourCC (default: largest mode)")
	cmd.Flags().Uint32Var(&flags.width, "width", 0, "Frame width")
	cmd.Flags().Uint32Var(&flags.height, "height", 0, "Frame height")
	cmd.Flags().IntVar(&flags.skip, "skip", 0, "Frames to discard before saving")
	return cmd
}

func runCapture(out io.Writer, dev hal.Device, flags captureFlags) error {
	if flags.count < 1 {
		return fmt.Errorf("%w: count must be positive", hal.ErrInvalidInput)
	}
	sel := capture.Selector{Width: flags.width, Height: flags.height}
	if flags.format != "" {
		f, err := hal.ParsePixelFormat(flags.format)
		if err != nil {
			return err
		}
		sel.Format = f
	}
	if err := os.MkdirAll(flags.output, 0o755); err != nil {
		return err
	}

	desc, err := sel.Choose(dev)
	if err != nil {
		return err
	}
	stream, err := dev.StartStream(desc)
	if err != nil {
		return err
	}
	defer stream.Close()

	logger := logging.GetLogger("capture")
	logger.Info("Capturing", "mode", stream.Descriptor().String(), "frames", flags.count)

	saved, skipped, errorsInRow := 0, 0, 0
	for saved < flags.count {
		img, err := stream.NextImage()
		switch {
		case errors.Is(err, io.EOF):
			return hal.IOError("capture", fmt.Errorf("stream ended after %d frames: %w", saved, io.ErrUnexpectedEOF))
		case err != nil:
			errorsInRow++
			logger.Warn("Frame pull failed", "error", err)
			if errorsInRow >= capture.MaxConsecutiveErrors {
				return err
			}
			continue
		}
		errorsInRow = 0
		if skipped < flags.skip {
			skipped++
			continue
		}

		path, err := saveFrame(flags.output, saved, img)
		if err != nil {
			return err
		}
		saved++
		fmt.Fprintln(out, path)
	}
	return nil
}

// saveFrame writes img before the next pull invalidates it.
func saveFrame(dir string, n int, img *hal.Image) (string, error) {
	f := img.Format()
	switch {
	case f == hal.JPEG:
		path := filepath.Join(dir, fmt.Sprintf("frame-%04d.jpg", n))
		return path, imageconv.Save(img, path, imageconv.Options{})
	case f.Kind() == hal.FormatUncompressed:
		path := filepath.Join(dir, fmt.Sprintf("frame-%04d.png", n))
		return path, imageconv.Save(img, path, imageconv.Options{})
	default:
		path := filepath.Join(dir, fmt.Sprintf("frame-%04d.raw", n))
		return path, os.WriteFile(path, img.Bytes(), 0o644)
	}
}
