package app

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/arm_recorder/internal/episode"
)

func litPixels(img *image1bit.VerticalLSB, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.BitAt(x, y) == image1bit.On {
				n++
			}
		}
	}
	return n
}

func TestRenderAngles_Waiting(t *testing.T) {
	img := renderAngles(episode.Record{}, false)
	assert.Equal(t, image.Rect(0, 0, 128, 64), img.Bounds())
	assert.Positive(t, litPixels(img, img.Bounds()))
	assert.Zero(t, litPixels(img, image.Rect(0, 0, 128, 13)), "top line left blank")
}

func TestRenderAngles_SecondColumn(t *testing.T) {
	three := renderAngles(episode.Record{Angles: []float64{1, 2, 3}}, true)
	assert.Positive(t, litPixels(three, image.Rect(0, 0, 64, 13)))
	assert.Zero(t, litPixels(three, image.Rect(64, 0, 128, 64)))

	six := renderAngles(episode.Record{Angles: []float64{1, 2, 3, 4, 5, 6}}, true)
	assert.Positive(t, litPixels(six, image.Rect(64, 0, 128, 64)))
}

func TestRenderAngles_Timestamp(t *testing.T) {
	withTime := renderAngles(episode.Record{Timestamp: "2026-10-19T10:11:12.000000", Angles: []float64{1}}, true)
	without := renderAngles(episode.Record{Angles: []float64{1}}, true)
	bottom := image.Rect(0, 53, 128, 64)
	assert.Positive(t, litPixels(withTime, bottom))
	assert.Zero(t, litPixels(without, bottom))
}

type recordingBus struct {
	i2c.Bus
	addrs []uint16
}

func (r *recordingBus) Tx(addr uint16, w, read []byte) error {
	r.addrs = append(r.addrs, addr)
	return nil
}

func TestAddrBus_RewritesAddress(t *testing.T) {
	inner := &recordingBus{}
	bus := &addrBus{Bus: inner, addr: 0x3D}

	require.NoError(t, bus.Tx(0x3C, []byte{0x00, 0xAE}, nil))
	require.NoError(t, bus.Tx(0x3C, []byte{0x40}, nil))
	assert.Equal(t, []uint16{0x3D, 0x3D}, inner.addrs)
}
