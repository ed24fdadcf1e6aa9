//go:build linux

package camera

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/MrCodeEU/facegate/pkg/logging"
	"golang.org/x/sys/unix"
)

const (
	v4l2BufTypeVideoCapture = 1
	v4l2FieldNone           = 1
	v4l2MemoryMmap          = 1

	iocWrite = 1
	iocRead  = 2
)

type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelformat  uint32
	field        uint32
	bytesperline uint32
	sizeimage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

// v4l2Format mirrors struct v4l2_format. The kernel union contains
// pointers, so it is pointer aligned.
type v4l2Format struct {
	typ uint32
	fmt struct {
		_   [0]uintptr
		raw [200]byte
	}
}

type v4l2Requestbuffers struct {
	count        uint32
	typ          uint32
	memory       uint32
	capabilities uint32
	flags        uint8
	reserved     [3]uint8
}

type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   uint8
	seconds  uint8
	minutes  uint8
	hours    uint8
	userbits [4]uint8
}

// v4l2Buffer mirrors struct v4l2_buffer. offset stands in for the union m,
// whose largest member is pointer sized.
type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesused uint32
	flags     uint32
	field     uint32
	timestamp unix.Timeval
	timecode  v4l2Timecode
	sequence  uint32
	memory    uint32
	offset    uintptr
	length    uint32
	reserved2 uint32
	reserved  uint32
}

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | uintptr('V')<<8 | nr
}

var (
	vidiocSFmt      = ioc(iocRead|iocWrite, 5, unsafe.Sizeof(v4l2Format{}))
	vidiocReqbufs   = ioc(iocRead|iocWrite, 8, unsafe.Sizeof(v4l2Requestbuffers{}))
	vidiocQuerybuf  = ioc(iocRead|iocWrite, 9, unsafe.Sizeof(v4l2Buffer{}))
	vidiocQbuf      = ioc(iocRead|iocWrite, 15, unsafe.Sizeof(v4l2Buffer{}))
	vidiocDqbuf     = ioc(iocRead|iocWrite, 17, unsafe.Sizeof(v4l2Buffer{}))
	vidiocStreamon  = ioc(iocWrite, 18, unsafe.Sizeof(int32(0)))
	vidiocStreamoff = ioc(iocWrite, 19, unsafe.Sizeof(int32(0)))
)

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return errno
		}
		return nil
	}
}

// V4L2 captures JPEG frames from a Video4Linux2 device using mmap'd buffers.
type V4L2 struct {
	settings Settings
	buffers  int

	fd      int
	fourcc  uint32
	width   int
	height  int
	maps    [][]byte
	open    bool
	pending bool
}

// NewV4L2 returns an unopened V4L2 camera for the given settings.
func NewV4L2(settings Settings) *V4L2 {
	return &V4L2{
		settings: settings,
		buffers:  2,
		fd:       -1,
	}
}

// Open opens the device, sets the fixed format and starts streaming.
func (c *V4L2) Open() error {
	if c.open {
		return nil
	}

	fourcc, err := FourCC(c.settings.PixelFormat)
	if err != nil {
		return err
	}
	c.fourcc = fourcc

	fd, err := unix.Open(c.settings.Device, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrCameraNotFound, c.settings.Device)
		}
		return fmt.Errorf("failed to open %s: %w", c.settings.Device, err)
	}
	c.fd = fd

	if err := c.start(); err != nil {
		c.teardown()
		return err
	}

	c.open = true
	logging.Component("camera").Infof("Capturing %dx%d %s from %s",
		c.width, c.height, c.settings.PixelFormat, c.settings.Device)
	return nil
}

func (c *V4L2) start() error {
	format := v4l2Format{typ: v4l2BufTypeVideoCapture}
	pix := (*v4l2PixFormat)(unsafe.Pointer(&format.fmt.raw[0]))
	pix.width = uint32(c.settings.Width)
	pix.height = uint32(c.settings.Height)
	pix.pixelformat = c.fourcc
	pix.field = v4l2FieldNone

	if err := ioctl(c.fd, vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		return fmt.Errorf("failed to set format: %w", err)
	}
	if pix.pixelformat != c.fourcc {
		return fmt.Errorf("%w: device refused %s", ErrUnsupportedFormat, c.settings.PixelFormat)
	}
	c.width, c.height = int(pix.width), int(pix.height)
	if c.width != c.settings.Width || c.height != c.settings.Height {
		logging.Component("camera").Warnf("Device adjusted resolution to %dx%d", c.width, c.height)
	}

	req := v4l2Requestbuffers{
		count:  uint32(c.buffers),
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(c.fd, vidiocReqbufs, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("failed to request buffers: %w", err)
	}
	if req.count == 0 {
		return errors.New("device granted no capture buffers")
	}

	c.maps = make([][]byte, 0, req.count)
	for i := uint32(0); i < req.count; i++ {
		buf := v4l2Buffer{
			index:  i,
			typ:    v4l2BufTypeVideoCapture,
			memory: v4l2MemoryMmap,
		}
		if err := ioctl(c.fd, vidiocQuerybuf, unsafe.Pointer(&buf)); err != nil {
			return fmt.Errorf("failed to query buffer %d: %w", i, err)
		}

		data, err := unix.Mmap(c.fd, int64(uint32(buf.offset)), int(buf.length),
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return fmt.Errorf("failed to map buffer %d: %w", i, err)
		}
		c.maps = append(c.maps, data)

		if err := ioctl(c.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
			return fmt.Errorf("failed to queue buffer %d: %w", i, err)
		}
	}

	typ := int32(v4l2BufTypeVideoCapture)
	if err := ioctl(c.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	return nil
}

// Acquire dequeues the next filled buffer, waiting at most timeout. Only
// one frame may be held at a time.
func (c *V4L2) Acquire(timeout time.Duration) (*Frame, error) {
	if !c.open {
		return nil, ErrCameraNotOpen
	}
	if c.pending {
		return nil, ErrFrameNotReleased
	}

	fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil && !errors.Is(err, unix.EINTR) {
		return nil, fmt.Errorf("poll failed: %w", err)
	}
	if n == 0 || err != nil {
		return nil, ErrNoFrame
	}

	buf := v4l2Buffer{
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(c.fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return nil, ErrNoFrame
		}
		return nil, fmt.Errorf("failed to dequeue buffer: %w", err)
	}
	c.pending = true

	data := c.maps[buf.index]
	used := int(buf.bytesused)
	if used > len(data) {
		used = len(data)
	}

	return &Frame{
		Data:      data[:used],
		Width:     c.width,
		Height:    c.height,
		Format:    c.settings.PixelFormat,
		Timestamp: time.Now(),
		index:     buf.index,
	}, nil
}

// Release requeues the frame's buffer. Data must not be used afterwards.
func (c *V4L2) Release(frame *Frame) error {
	if frame == nil {
		return nil
	}
	if !c.open {
		return ErrCameraNotOpen
	}

	buf := v4l2Buffer{
		index:  frame.index,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	frame.Data = nil
	c.pending = false
	if err := ioctl(c.fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("failed to requeue buffer: %w", err)
	}
	return nil
}

// Close stops streaming and releases the device.
func (c *V4L2) Close() error {
	if !c.open {
		return nil
	}
	typ := int32(v4l2BufTypeVideoCapture)
	if err := ioctl(c.fd, vidiocStreamoff, unsafe.Pointer(&typ)); err != nil {
		logging.Component("camera").Warnf("Failed to stop stream: %v", err)
	}
	c.teardown()
	return nil
}

func (c *V4L2) teardown() {
	for _, m := range c.maps {
		_ = unix.Munmap(m)
	}
	c.maps = nil
	if c.fd >= 0 {
		_ = unix.Close(c.fd)
		c.fd = -1
	}
	c.open = false
	c.pending = false
}
