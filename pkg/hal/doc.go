// Package hal defines the backend-independent contract for image capture
// devices.
//
// A [Device] is opened by a backend (see the camera package for address
// based dispatch). It enumerates [StreamDescriptor] values and [Control]
// descriptors, and starts an [ImageStream] for one negotiated descriptor.
//
// # Pull protocol
//
// Streams are pulled one item at a time:
//
//	stream, err := dev.StartStream(desc)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    img, err := stream.NextImage()
//	    if errors.Is(err, io.EOF) {
//	        break // exhausted, never resumes
//	    }
//	    if err != nil {
//	        continue // timeout or transient backend failure
//	    }
//	    keep = img.ToOwned() // borrowed images die on the next pull
//	}
//
// # Buffer ownership
//
// Backends hand out borrowed images that alias their own buffers (a kernel
// mmap slot, a USB reassembly buffer). A borrowed [Image] is valid only until
// the next pull on the same stream. [Image.ToOwned] copies it out. Building
// with the camhal_debug tag turns reads of a stale borrowed image into a
// panic.
//
// # Errors
//
// Every fallible operation wraps one of [ErrInvalidInput], [ErrNoBackend],
// [ErrIO] or [ErrUnsupported]. Use errors.Is or [Classify].
package hal
