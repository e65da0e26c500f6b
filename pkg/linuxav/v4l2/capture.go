//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Capture is an active memory-mapped capture session.
type Capture struct {
	dev     *Device
	buffers [][]byte
	stopped bool
}

// StartCapture allocates count mmap buffers, queues them all and turns
// streaming on. The driver may grant a different number of buffers.
func (d *Device) StartCapture(count uint32) (*Capture, error) {
	req := v4l2Requestbuffers{
		count:  count,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := xioctl(d.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("VIDIOC_REQBUFS: %w", err)
	}
	if req.count == 0 {
		return nil, fmt.Errorf("VIDIOC_REQBUFS: driver granted no buffers")
	}

	c := &Capture{dev: d, buffers: make([][]byte, 0, req.count)}

	for i := uint32(0); i < req.count; i++ {
		buf := v4l2Buffer{
			index:  i,
			typ:    v4l2BufTypeVideoCapture,
			memory: v4l2MemoryMmap,
		}
		if err := xioctl(d.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
			c.release()
			return nil, fmt.Errorf("VIDIOC_QUERYBUF %d: %w", i, err)
		}
		data, err := unix.Mmap(d.fd, buf.mmapOffset(), int(buf.length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			c.release()
			return nil, fmt.Errorf("mmap buffer %d: %w", i, err)
		}
		c.buffers = append(c.buffers, data)
	}

	for i := range c.buffers {
		if err := c.Queue(uint32(i)); err != nil {
			c.release()
			return nil, err
		}
	}

	typ := uint32(v4l2BufTypeVideoCapture)
	if err := xioctl(d.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		c.release()
		return nil, fmt.Errorf("VIDIOC_STREAMON: %w", err)
	}

	return c, nil
}

// Buffers returns the number of mapped buffers.
func (c *Capture) Buffers() int { return len(c.buffers) }

// Wait blocks until a frame is ready or timeout elapses. It reports false
// on timeout and on signal interruption.
func (c *Capture) Wait(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(c.dev.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		return false, fmt.Errorf("poll: %w", syscall.ENODEV)
	}
	return true, nil
}

// Dequeue takes the next filled buffer from the driver. The returned data
// aliases the mapping and must be handed back with Queue.
func (c *Capture) Dequeue() (Buffer, error) {
	buf := v4l2Buffer{
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := xioctl(c.dev.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		return Buffer{}, fmt.Errorf("VIDIOC_DQBUF: %w", err)
	}
	if int(buf.index) >= len(c.buffers) {
		return Buffer{}, fmt.Errorf("VIDIOC_DQBUF: index %d out of range", buf.index)
	}

	data := c.buffers[buf.index]
	used := int(buf.bytesused)
	if used == 0 || used > len(data) {
		used = len(data)
	}

	return Buffer{
		Index:     buf.index,
		Data:      data[:used],
		Sequence:  buf.sequence,
		Timestamp: time.Duration(buf.tvSec)*time.Second + time.Duration(buf.tvUsec)*time.Microsecond,
		Flags:     buf.flags,
	}, nil
}

// Queue hands a buffer back to the driver.
func (c *Capture) Queue(index uint32) error {
	buf := v4l2Buffer{
		index:  index,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := xioctl(c.dev.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("VIDIOC_QBUF %d: %w", index, err)
	}
	return nil
}

// Stop turns streaming off and unmaps every buffer. It is safe to call
// more than once.
func (c *Capture) Stop() error {
	if c.stopped {
		return nil
	}
	c.stopped = true

	typ := uint32(v4l2BufTypeVideoCapture)
	err := xioctl(c.dev.fd, vidiocStreamoff, unsafe.Pointer(&typ))
	if err != nil && !errors.Is(err, syscall.ENODEV) {
		err = fmt.Errorf("VIDIOC_STREAMOFF: %w", err)
	} else {
		err = nil
	}
	c.release()
	return err
}

func (c *Capture) release() {
	for _, b := range c.buffers {
		_ = unix.Munmap(b)
	}
	c.buffers = nil

	req := v4l2Requestbuffers{typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMmap}
	_ = xioctl(c.dev.fd, vidiocReqbufs, unsafe.Pointer(&req))
}
