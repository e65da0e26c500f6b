package hal

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"input", InputError("bad field %q", "x"), KindInvalidInput},
		{"no backend", fmt.Errorf("open: %w", ErrNoBackend), KindNoBackend},
		{"io", IOError("VIDIOC_DQBUF", syscall.EIO), KindIO},
		{"timeout", ErrTimeout, KindIO},
		{"unknown control", ErrUnknownControl, KindUnsupported},
		{"busy", ErrBusy, KindUnsupported},
		{"foreign", errors.New("other"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIOErrorKeepsCause(t *testing.T) {
	err := IOError("VIDIOC_STREAMON", syscall.ENODEV)
	if !errors.Is(err, ErrIO) {
		t.Error("IOError does not match ErrIO")
	}
	if !errors.Is(err, syscall.ENODEV) {
		t.Error("IOError does not match its cause")
	}

	wrapped := IOError("pull", ErrTimeout)
	if !errors.Is(wrapped, ErrTimeout) || !errors.Is(wrapped, ErrIO) {
		t.Errorf("IOError(ErrTimeout) = %v", wrapped)
	}
}
