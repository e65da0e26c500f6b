//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API
// for device enumeration, format negotiation, controls and memory-mapped
// streaming.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices to discover all V4L2 video capture devices:
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
// Query supported formats, resolutions, and framerates on an open device:
//
//	dev, _ := v4l2.Open("/dev/video0")
//	defer dev.Close()
//	formats, _ := dev.Formats()
//	for _, f := range formats {
//	    resolutions, _ := dev.Resolutions(f.PixelFormat)
//	    for _, res := range resolutions {
//	        framerates, _ := dev.Framerates(f.PixelFormat, res.Width, res.Height)
//	    }
//	}
//
// # Streaming
//
// Negotiate a format and pull frames from the mmap ring:
//
//	_, _ = dev.SetFormat(pixfmt, 1280, 720)
//	capture, _ := dev.StartCapture(4)
//	defer capture.Stop()
//	if ready, _ := capture.Wait(2 * time.Second); ready {
//	    buf, _ := capture.Dequeue()
//	    process(buf.Data) // valid until Queue(buf.Index)
//	    _ = capture.Queue(buf.Index)
//	}
package v4l2
