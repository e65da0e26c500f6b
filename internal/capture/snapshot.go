package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/smazurov/camhal/pkg/hal"
)

// MaxConsecutiveErrors is how many error frames in a row a snapshot
// tolerates before giving up.
const MaxConsecutiveErrors = 3

// Snapshot starts a stream in mode desc, drops the first skip frames so
// exposure can settle, and returns an owned copy of the next one.
func Snapshot(dev hal.Device, desc hal.StreamDescriptor, skip int) (*hal.Image, error) {
	stream, err := dev.StartStream(desc)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var lastErr error
	errorsInRow := 0
	for good := 0; ; {
		img, err := stream.NextImage()
		switch {
		case errors.Is(err, io.EOF):
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, hal.IOError("snapshot", io.ErrUnexpectedEOF)
		case err != nil:
			lastErr = err
			errorsInRow++
			if errorsInRow >= MaxConsecutiveErrors {
				return nil, fmt.Errorf("snapshot: %d failed pulls: %w", errorsInRow, err)
			}
			continue
		}

		errorsInRow = 0
		if good < skip {
			good++
			continue
		}
		return img.ToOwned(), nil
	}
}
