//go:build linux

package camera

import (
	"errors"
	"testing"
	"unsafe"
)

func TestV4L2StructSizes(t *testing.T) {
	is64 := unsafe.Sizeof(uintptr(0)) == 8

	tests := []struct {
		name   string
		got    uintptr
		want64 uintptr
		want32 uintptr
	}{
		{"v4l2_format", unsafe.Sizeof(v4l2Format{}), 208, 204},
		{"v4l2_requestbuffers", unsafe.Sizeof(v4l2Requestbuffers{}), 20, 20},
		{"v4l2_pix_format", unsafe.Sizeof(v4l2PixFormat{}), 48, 48},
		{"v4l2_buffer", unsafe.Sizeof(v4l2Buffer{}), 88, 68},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := tt.want32
			if is64 {
				want = tt.want64
			}
			if tt.got != want {
				t.Errorf("size = %d, want %d", tt.got, want)
			}
		})
	}
}

func TestIoctlNumbers(t *testing.T) {
	if vidiocStreamon != 0x40045612 {
		t.Errorf("VIDIOC_STREAMON = %#x", vidiocStreamon)
	}
	if vidiocStreamoff != 0x40045613 {
		t.Errorf("VIDIOC_STREAMOFF = %#x", vidiocStreamoff)
	}
	if vidiocReqbufs != 0xc0145608 {
		t.Errorf("VIDIOC_REQBUFS = %#x", vidiocReqbufs)
	}

	if unsafe.Sizeof(uintptr(0)) != 8 {
		t.Skip("remaining values are for 64-bit targets")
	}
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"VIDIOC_S_FMT", vidiocSFmt, 0xc0d05605},
		{"VIDIOC_QUERYBUF", vidiocQuerybuf, 0xc0585609},
		{"VIDIOC_QBUF", vidiocQbuf, 0xc058560f},
		{"VIDIOC_DQBUF", vidiocDqbuf, 0xc0585611},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %#x, want %#x", tt.name, tt.got, tt.want)
		}
	}
}

func TestV4L2_AcquireWhileFrameHeld(t *testing.T) {
	c := NewV4L2(Settings{Device: "/dev/video0", Width: 320, Height: 240, PixelFormat: "MJPG"})
	c.open = true
	c.pending = true

	if _, err := c.Acquire(0); !errors.Is(err, ErrFrameNotReleased) {
		t.Errorf("expected ErrFrameNotReleased, got %v", err)
	}
}
