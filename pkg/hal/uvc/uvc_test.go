//go:build linux

package uvc

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/smazurov/camhal/pkg/hal"
)

const (
	testControlIface = 0
	testStreamIface  = 1
	testTerminal     = 1
	testUnit         = 2
	testEndpoint     = 0x81
)

func ifaceDesc(num, alt, sub uint8) []byte {
	return []byte{9, descInterface, num, alt, 1, ccVideo, sub, 0, 0}
}

func csDesc(subtype uint8, body ...byte) []byte {
	return append([]byte{byte(3 + len(body)), descCSInterface, subtype}, body...)
}

func endpointDescBytes(addr, attrs uint8, maxPacket uint16) []byte {
	b := binary.LittleEndian.AppendUint16([]byte{7, descEndpoint, addr, attrs}, maxPacket)
	return append(b, 0) // bInterval
}

func frameUncompressed(subtype, index uint8, w, h uint16, intervals ...uint32) []byte {
	b := []byte{index, 0}
	b = binary.LittleEndian.AppendUint16(b, w)
	b = binary.LittleEndian.AppendUint16(b, h)
	b = binary.LittleEndian.AppendUint32(b, 0)                     // min bit rate
	b = binary.LittleEndian.AppendUint32(b, 0)                     // max bit rate
	b = binary.LittleEndian.AppendUint32(b, uint32(w)*uint32(h)*2) // max frame buffer
	b = binary.LittleEndian.AppendUint32(b, intervals[0])          // default interval
	b = append(b, byte(len(intervals)))
	for _, iv := range intervals {
		b = binary.LittleEndian.AppendUint32(b, iv)
	}
	return csDesc(subtype, b...)
}

// testDescriptor builds a configuration with a camera terminal supporting
// AE mode and absolute exposure, a processing unit with brightness and
// power line frequency, and a YUY2 + MJPEG streaming interface.
func testDescriptor(endpointAttrs uint8) []byte {
	var b []byte
	b = append(b, 9, 0x02, 0, 0, 2, 1, 0, 0x80, 250) // configuration header
	b = append(b, ifaceDesc(testControlIface, 0, scVideoControl)...)
	b = append(b, csDesc(vcHeader, 0x10, 0x01, 0, 0, 0, 0, 0, 0, 1, testStreamIface)...)
	b = append(b, csDesc(vcInputTerminal,
		testTerminal, 0x01, 0x02, 0, 0, 0, 0, 0, 0, 0, 0,
		3, 0x0a, 0x00, 0x00)...) // bits 1 (AE mode) and 3 (exposure)
	b = append(b, csDesc(vcProcessingUnit,
		testUnit, testTerminal, 0, 0,
		2, 0x01, 0x04, 0)...) // bits 0 (brightness) and 10 (power line)

	b = append(b, ifaceDesc(testStreamIface, 0, scVideoStreaming)...)
	b = append(b, csDesc(vsInputHeader, 2, 0, 0, testEndpoint, 0, 2, 0, 0, 0, 0)...)

	guid := []byte{'Y', 'U', 'Y', '2', 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71}
	yuy2 := append([]byte{1, 1}, guid...)
	yuy2 = append(yuy2, 16, 1, 0, 0, 0, 0)
	b = append(b, csDesc(vsFormatUncompressed, yuy2...)...)
	b = append(b, frameUncompressed(vsFrameUncompressed, 1, 8, 4, 333333, 666666)...)

	b = append(b, csDesc(vsFormatMJPEG, 2, 1, 0, 1, 0, 0, 0, 0)...)
	b = append(b, frameUncompressed(vsFrameMJPEG, 1, 1280, 720, 333333)...)

	b = append(b, endpointDescBytes(testEndpoint, endpointAttrs, 512)...)
	return b
}

type bulkResult struct {
	data []byte
	err  error
}

type fakeUSB struct {
	ranges    map[uint16]map[uint8][]byte
	cur       map[uint16][]byte
	probe     []byte
	committed []byte
	payloads  []bulkResult

	claimed  map[uint8]bool
	halted   []uint8
	alt      map[uint8]uint8
	setCalls int
	closed   bool
}

func newFakeUSB() *fakeUSB {
	le16 := func(v int16) []byte { return binary.LittleEndian.AppendUint16(nil, uint16(v)) }
	le32 := func(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
	unit := func(sel uint8) uint16 { return testUnit<<8 | uint16(sel) }
	term := func(sel uint8) uint16 { return testTerminal<<8 | uint16(sel) }

	return &fakeUSB{
		ranges: map[uint16]map[uint8][]byte{
			unit(0x02): {reqGetInfo: {0x03}, reqGetMin: le16(-64), reqGetMax: le16(64), reqGetRes: le16(1), reqGetDef: le16(0)},
			unit(0x05): {reqGetInfo: {0x03}, reqGetDef: {1}},
			term(0x02): {reqGetInfo: {0x03}, reqGetRes: {0x03}, reqGetDef: {2}},
			term(0x04): {reqGetInfo: {0x01}, reqGetMin: le32(3), reqGetMax: le32(2047), reqGetRes: le32(1), reqGetDef: le32(156)},
		},
		cur: map[uint16][]byte{
			unit(0x02): le16(10),
			unit(0x05): {1},
			term(0x02): {2},
			term(0x04): le32(156),
		},
		claimed: map[uint8]bool{},
		alt:     map[uint8]uint8{},
	}
}

func (f *fakeUSB) ControlTransfer(requestType, request uint8, value, index uint16, data []byte, _ time.Duration) (int, error) {
	selector, unit, iface := uint8(value>>8), uint8(index>>8), uint8(index)

	if iface == testStreamIface && unit == 0 {
		switch {
		case requestType == reqTypeSet && selector == vsProbeControl:
			f.probe = append([]byte(nil), data...)
			// The camera fills in sizes.
			binary.LittleEndian.PutUint32(f.probe[18:], 64)
			binary.LittleEndian.PutUint32(f.probe[22:], 256)
		case requestType == reqTypeGet && selector == vsProbeControl:
			return copy(data, f.probe), nil
		case requestType == reqTypeSet && selector == vsCommitControl:
			f.committed = append([]byte(nil), data...)
		}
		return len(data), nil
	}

	key := uint16(unit)<<8 | uint16(selector)
	if requestType == reqTypeSet {
		f.setCalls++
		f.cur[key] = append([]byte(nil), data...)
		return len(data), nil
	}
	if request == reqGetCur {
		v, ok := f.cur[key]
		if !ok {
			return 0, unix.EPIPE
		}
		return copy(data, v), nil
	}
	v, ok := f.ranges[key][request]
	if !ok {
		return 0, unix.EPIPE
	}
	return copy(data, v), nil
}

func (f *fakeUSB) BulkTransfer(endpoint uint8, data []byte, _ time.Duration) (int, error) {
	if len(f.payloads) == 0 {
		return 0, unix.ENODEV
	}
	r := f.payloads[0]
	f.payloads = f.payloads[1:]
	if r.err != nil {
		return 0, r.err
	}
	return copy(data, r.data), nil
}

func (f *fakeUSB) ClaimInterface(iface uint8) error {
	f.claimed[iface] = true
	return nil
}

func (f *fakeUSB) ReleaseInterface(iface uint8) error {
	delete(f.claimed, iface)
	return nil
}

func (f *fakeUSB) SetAltSetting(iface, alt uint8) error {
	f.alt[iface] = alt
	return nil
}

func (f *fakeUSB) ClearHalt(endpoint uint8) error {
	f.halted = append(f.halted, endpoint)
	return nil
}

func (f *fakeUSB) DetachKernelDriver(uint8) error { return unix.ENODATA }

func (f *fakeUSB) Close() error {
	f.closed = true
	return nil
}

func payload(flags byte, data []byte) bulkResult {
	return bulkResult{data: append([]byte{2, flags}, data...)}
}

func filled(n int, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func newTestHandle(t *testing.T, f *fakeUSB, endpointAttrs uint8) *Handle {
	t.Helper()
	h, err := newHandle("uvc://1:4", f, testDescriptor(endpointAttrs), Config{})
	if err != nil {
		t.Fatalf("newHandle: %v", err)
	}
	return h
}

func yuyvMode() hal.StreamDescriptor {
	return hal.StreamDescriptor{
		Width:     8,
		Height:    4,
		Format:    hal.YUYV,
		Intervals: []time.Duration{33333300 * time.Nanosecond, 66666600 * time.Nanosecond},
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		payload string
		bus     uint8
		addr    uint8
		wantErr bool
	}{
		{payload: "4:12", bus: 4, addr: 12},
		{payload: "1:2:3", bus: 1, addr: 2},
		{payload: "4", wantErr: true},
		{payload: "", wantErr: true},
		{payload: "x:12", wantErr: true},
		{payload: "4:256", wantErr: true},
		{payload: "-1:3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			bus, addr, err := ParseAddress(tt.payload)
			if tt.wantErr {
				if !errors.Is(err, hal.ErrInvalidInput) {
					t.Errorf("err = %v, want ErrInvalidInput", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAddress: %v", err)
			}
			if bus != tt.bus || addr != tt.addr {
				t.Errorf("got %d:%d, want %d:%d", bus, addr, tt.bus, tt.addr)
			}
		})
	}
}

func TestFormatTableRoundTrip(t *testing.T) {
	for _, tag := range Formats.Tags() {
		back, err := Formats.ToNative(Formats.FromNative(tag))
		if err != nil || back != tag {
			t.Errorf("tag %q round-tripped to %q (%v)", tag, back, err)
		}
	}
	if got := Formats.FromNative(hal.FourCCFromString("YUY2")); got != hal.YUYV {
		t.Errorf("YUY2 = %s", got)
	}
}

func TestParseConfig(t *testing.T) {
	vf, err := parseConfig(testDescriptor(endpointBulk))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}

	c := vf.control
	if c.number != testControlIface || c.uvcVersion != 0x0110 {
		t.Errorf("control interface %d version %04x", c.number, c.uvcVersion)
	}
	if c.cameraTerminal != testTerminal || c.terminalBits != 0x0a {
		t.Errorf("terminal %d bits %x", c.cameraTerminal, c.terminalBits)
	}
	if c.processingUnit != testUnit || c.unitBits != 0x0401 {
		t.Errorf("unit %d bits %x", c.processingUnit, c.unitBits)
	}

	s := vf.stream
	if s.number != testStreamIface || s.endpoint.address != testEndpoint || !s.endpoint.bulk() {
		t.Errorf("stream interface %d endpoint %+v", s.number, s.endpoint)
	}
	if len(s.formats) != 2 {
		t.Fatalf("got %d formats", len(s.formats))
	}
	yuy2 := s.formats[0]
	if yuy2.tag.String() != "YUY2" || yuy2.bits != 16 || len(yuy2.frames) != 1 {
		t.Errorf("yuy2 format %+v", yuy2)
	}
	if f := yuy2.frames[0]; f.width != 8 || f.height != 4 || len(f.intervals) != 2 || f.intervals[1] != 666666 {
		t.Errorf("yuy2 frame %+v", f)
	}
	if s.formats[1].tag.String() != "MJPG" || s.formats[1].index != 2 {
		t.Errorf("mjpeg format %+v", s.formats[1])
	}
}

func TestParseConfigRejectsNonVideo(t *testing.T) {
	storage := []byte{9, 0x02, 0, 0, 1, 1, 0, 0x80, 50, 9, descInterface, 0, 0, 2, 0x08, 0x06, 0x50, 0}
	if _, err := parseConfig(storage); !errors.Is(err, hal.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if _, err := parseConfig([]byte{9, 0x02, 0}); !errors.Is(err, hal.ErrIO) {
		t.Errorf("truncated: err = %v, want ErrIO", err)
	}
}

func TestQueryStreams(t *testing.T) {
	h := newTestHandle(t, newFakeUSB(), endpointBulk)

	streams, err := h.QueryStreams()
	if err != nil {
		t.Fatalf("QueryStreams: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("got %d streams", len(streams))
	}
	if !streams[0].Equal(yuyvMode()) {
		t.Errorf("streams[0] = %s, want %s", streams[0], yuyvMode())
	}
	if streams[1].Format != hal.JPEG || streams[1].Width != 1280 {
		t.Errorf("streams[1] = %s", streams[1])
	}
}

func TestAssembler(t *testing.T) {
	t.Run("eof ends frame", func(t *testing.T) {
		a := newAssembler(8)
		if a.push([]byte{2, 0x00, 'a', 'b'}) {
			t.Fatal("completed without EOF")
		}
		if !a.push([]byte{2, payloadEOF, 'c'}) {
			t.Fatal("EOF did not complete")
		}
		if string(a.front) != "abc" || a.frontErr {
			t.Errorf("front = %q err=%v", a.front, a.frontErr)
		}
	})

	t.Run("fid toggle ends frame", func(t *testing.T) {
		a := newAssembler(8)
		a.push([]byte{2, 0x00, 'a'})
		if !a.push([]byte{2, payloadFID, 'b'}) {
			t.Fatal("toggle did not complete")
		}
		if string(a.front) != "a" {
			t.Errorf("front = %q", a.front)
		}
		if !a.push([]byte{2, payloadFID | payloadEOF, 'c'}) || string(a.front) != "bc" {
			t.Errorf("second frame = %q", a.front)
		}
	})

	t.Run("toggle and eof in one payload", func(t *testing.T) {
		a := newAssembler(8)
		a.push([]byte{2, 0x00, 'a'})
		if !a.push([]byte{2, payloadFID | payloadEOF, 'b'}) || string(a.front) != "a" {
			t.Fatalf("first frame = %q", a.front)
		}
		if !a.takePending() || string(a.front) != "b" {
			t.Errorf("pending frame = %q", a.front)
		}
		if a.takePending() {
			t.Error("pending twice")
		}
	})

	t.Run("error bit", func(t *testing.T) {
		a := newAssembler(8)
		a.push([]byte{2, payloadERR, 'x'})
		a.push([]byte{2, payloadEOF, 'y'})
		if !a.frontErr {
			t.Error("error bit lost")
		}
		a.push([]byte{2, payloadFID | payloadEOF, 'z'})
		if a.frontErr {
			t.Error("error bit leaked into next frame")
		}
	})

	t.Run("bad header ignored", func(t *testing.T) {
		a := newAssembler(8)
		if a.push([]byte{9, payloadEOF, 'a'}) || a.push([]byte{1}) || len(a.back) != 0 {
			t.Error("malformed payload accepted")
		}
	})
}

func TestStreamPull(t *testing.T) {
	f := newFakeUSB()
	f.payloads = []bulkResult{
		payload(0x00, filled(32, 1)),
		payload(payloadEOF, filled(32, 2)),
		payload(payloadFID|payloadEOF, filled(10, 3)),
		{err: unix.ETIMEDOUT},
		payload(0x00, filled(64, 4)),
		payload(payloadFID, filled(64, 5)),
		{err: unix.EIO},
	}
	h := newTestHandle(t, f, endpointBulk)

	s, err := h.StartStream(yuyvMode())
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if !f.claimed[testStreamIface] {
		t.Error("streaming interface not claimed")
	}
	if f.committed == nil || f.committed[2] != 1 || f.committed[3] != 1 {
		t.Fatalf("commit = %v", f.committed)
	}
	if got := binary.LittleEndian.Uint32(f.committed[4:]); got != 333333 {
		t.Errorf("committed interval %d, want 333333", got)
	}
	if len(f.probe) != 34 {
		t.Errorf("probe length %d, want 34 for UVC 1.1", len(f.probe))
	}

	img, err := s.NextImage()
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if img.Len() != 64 || img.Bytes()[0] != 1 || img.Bytes()[63] != 2 || img.Ownership() != hal.Borrowed {
		t.Errorf("first frame %s", img)
	}

	fr, ok := s.Next()
	if !ok || !errors.Is(fr.Err, hal.ErrIO) {
		t.Fatalf("short frame: ok=%v err=%v", ok, fr.Err)
	}
	if img.Valid() {
		t.Error("borrowed image valid after next pull")
	}

	fr, ok = s.Next()
	if !ok || !errors.Is(fr.Err, hal.ErrTimeout) {
		t.Fatalf("timeout: ok=%v err=%v", ok, fr.Err)
	}

	// Frame ended by FID toggle rather than EOF.
	img, err = s.NextImage()
	if err != nil || img.Bytes()[0] != 4 {
		t.Fatalf("toggle frame: %v %v", img, err)
	}

	fr, ok = s.Next()
	if !ok || !errors.Is(fr.Err, unix.EIO) {
		t.Fatalf("bulk error: ok=%v err=%v", ok, fr.Err)
	}

	if _, err := s.NextImage(); err != io.EOF {
		t.Fatalf("after unplug: %v, want io.EOF", err)
	}
	if len(f.halted) != 1 || f.claimed[testStreamIface] {
		t.Errorf("halted=%v claimed=%v", f.halted, f.claimed)
	}
}

func TestStartStreamRejects(t *testing.T) {
	h := newTestHandle(t, newFakeUSB(), endpointIsochronous)
	if _, err := h.StartStream(yuyvMode()); !errors.Is(err, hal.ErrUnsupported) {
		t.Errorf("isochronous: err = %v, want ErrUnsupported", err)
	}

	h = newTestHandle(t, newFakeUSB(), endpointBulk)
	bad := hal.StreamDescriptor{Width: 640, Height: 480, Format: hal.YUYV}
	if _, err := h.StartStream(bad); !errors.Is(err, hal.ErrUnsupported) {
		t.Errorf("unknown mode: err = %v, want ErrUnsupported", err)
	}
}

func TestSecondStreamIsBusy(t *testing.T) {
	f := newFakeUSB()
	h := newTestHandle(t, f, endpointBulk)

	s, err := h.StartStream(yuyvMode())
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	if _, err := h.StartStream(yuyvMode()); !errors.Is(err, hal.ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if s.Exhausted() {
		t.Fatal("first stream stopped")
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := s.Next(); ok {
		t.Error("stream alive after device close")
	}
	if !f.closed || f.claimed[testControlIface] {
		t.Errorf("closed=%v claimed=%v", f.closed, f.claimed)
	}
}

func TestQueryControls(t *testing.T) {
	h := newTestHandle(t, newFakeUSB(), endpointBulk)

	controls, err := h.QueryControls()
	if err != nil {
		t.Fatalf("QueryControls: %v", err)
	}
	want := []uint32{ControlBrightness, ControlPowerLineFrequency, ControlAutoExposureMode, ControlExposureAbsolute}
	if len(controls) != len(want) {
		t.Fatalf("got %d controls: %v", len(controls), controls)
	}
	for i, c := range controls {
		if c.ID != want[i] {
			t.Errorf("controls[%d] = %s (0x%04x), want 0x%04x", i, c.Name, c.ID, want[i])
		}
	}

	if b := controls[0]; b.Min != -64 || b.Max != 64 || b.Kind != hal.ControlInteger {
		t.Errorf("brightness %+v", b)
	}
	if ae := controls[2]; len(ae.Menu) != 2 || ae.Menu[1].Name != "Auto Mode" || ae.Default != 2 {
		t.Errorf("auto exposure %+v", ae)
	}
	if exp := controls[3]; exp.Flags&hal.FlagReadOnly == 0 || exp.Max != 2047 {
		t.Errorf("exposure %+v", exp)
	}
}

func TestControlRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		id   uint32
		v    hal.Value
	}{
		{name: "signed integer", id: ControlBrightness, v: hal.Integer(-5)},
		{name: "menu", id: ControlPowerLineFrequency, v: hal.MenuIndex(2)},
		{name: "bitmap menu", id: ControlAutoExposureMode, v: hal.MenuIndex(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandle(t, newFakeUSB(), endpointBulk)
			if err := h.SetControl(tt.id, tt.v); err != nil {
				t.Fatalf("SetControl: %v", err)
			}
			got, err := h.Control(tt.id)
			if err != nil {
				t.Fatalf("Control: %v", err)
			}
			if got != tt.v {
				t.Errorf("read back %s, want %s", got, tt.v)
			}
		})
	}
}

func TestSetControlRejects(t *testing.T) {
	tests := []struct {
		name string
		id   uint32
		v    hal.Value
		want error
	}{
		{name: "unknown id", id: 0x7777, v: hal.Integer(1), want: hal.ErrUnknownControl},
		{name: "not on this camera", id: ControlGain, v: hal.Integer(1), want: hal.ErrUnknownControl},
		{name: "out of range", id: ControlBrightness, v: hal.Integer(100), want: hal.ErrValueMismatch},
		{name: "unsupported mode", id: ControlAutoExposureMode, v: hal.MenuIndex(4), want: hal.ErrValueMismatch},
		{name: "read-only", id: ControlExposureAbsolute, v: hal.Integer(100), want: hal.ErrValueMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeUSB()
			h := newTestHandle(t, f, endpointBulk)
			if err := h.SetControl(tt.id, tt.v); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if f.setCalls != 0 {
				t.Error("rejected value was written")
			}
		})
	}
}

func TestFindDevices(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("1-1/busnum", "1\n")
	write("1-1/devnum", "4\n")
	write("1-1/product", "HD Webcam\n")
	write("1-1/idVendor", "046d\n")
	write("1-1:1.0/bInterfaceClass", "0e\n")
	write("1-2/busnum", "1\n")
	write("1-2/devnum", "5\n")
	write("1-2:1.0/bInterfaceClass", "08\n")

	devices, err := findDevices(root)
	if err != nil {
		t.Fatalf("findDevices: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices: %+v", len(devices), devices)
	}
	d := devices[0]
	if d.Addr() != "uvc://1:4" || d.Product != "HD Webcam" || d.VendorID != "046d" {
		t.Errorf("device %+v", d)
	}
}
