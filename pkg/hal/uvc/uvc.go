//go:build linux

// Package uvc implements hal.Device for USB Video Class cameras driven
// directly over usbfs, without the kernel uvcvideo driver.
//
// Only bulk streaming endpoints are supported. Most consumer webcams stream
// over isochronous endpoints only; StartStream on those fails with
// hal.ErrUnsupported, and they should be opened through the v4l backend
// instead. Frames are reassembled from UVC payloads into a reused buffer and
// handed out as borrowed images.
package uvc

// Class-specific request codes.
const (
	reqSetCur  = 0x01
	reqGetCur  = 0x81
	reqGetMin  = 0x82
	reqGetMax  = 0x83
	reqGetRes  = 0x84
	reqGetLen  = 0x85
	reqGetInfo = 0x86
	reqGetDef  = 0x87
)

// bmRequestType values for class requests addressed to an interface.
const (
	reqTypeSet = 0x21 // host to device
	reqTypeGet = 0xA1 // device to host
)

// Standard descriptor types.
const (
	descInterface   = 0x04
	descEndpoint    = 0x05
	descCSInterface = 0x24
)

// Interface class and subclasses.
const (
	ccVideo              = 0x0E
	scVideoControl       = 0x01
	scVideoStreaming     = 0x02
	cameraTerminalType   = 0x0201
	endpointTransferMask = 0x03
	endpointBulk         = 0x02
	endpointIsochronous  = 0x01
)

// VideoControl interface descriptor subtypes.
const (
	vcHeader         = 0x01
	vcInputTerminal  = 0x02
	vcProcessingUnit = 0x05
)

// VideoStreaming interface descriptor subtypes.
const (
	vsInputHeader        = 0x01
	vsFormatUncompressed = 0x04
	vsFrameUncompressed  = 0x05
	vsFormatMJPEG        = 0x06
	vsFrameMJPEG         = 0x07
	vsFormatFrameBased   = 0x10
	vsFrameFrameBased    = 0x11
)

// VideoStreaming control selectors.
const (
	vsProbeControl  = 0x01
	vsCommitControl = 0x02
)

// Payload header bits.
const (
	payloadFID = 0x01
	payloadEOF = 0x02
	payloadERR = 0x40
)
