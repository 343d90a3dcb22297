package servo

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

// fakeDaemon answers pigpiod frames on one end of a pipe and records them.
type fakeDaemon struct {
	conn     net.Conn
	requests chan [4]uint32
	result   func(cmd uint32) int32
}

func startFakeDaemon(t *testing.T, result func(cmd uint32) int32) (*fakeDaemon, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	d := &fakeDaemon{conn: server, requests: make(chan [4]uint32, 16), result: result}
	go d.serve()
	t.Cleanup(func() { server.Close() })
	return d, client
}

func (d *fakeDaemon) serve() {
	for {
		var req [16]byte
		if _, err := io.ReadFull(d.conn, req[:]); err != nil {
			return
		}
		var words [4]uint32
		for i := range words {
			words[i] = binary.LittleEndian.Uint32(req[i*4:])
		}
		d.requests <- words

		resp := req
		binary.LittleEndian.PutUint32(resp[12:], uint32(d.result(words[0])))
		if _, err := d.conn.Write(resp[:]); err != nil {
			return
		}
	}
}

func TestPigpio_ServoCommandFrames(t *testing.T) {
	d, client := startFakeDaemon(t, func(cmd uint32) int32 {
		if cmd == cmdPigpv {
			return 79
		}
		return 0
	})

	p, err := newPigpio(client, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint32(79), p.Version())
	assert.Equal(t, [4]uint32{cmdPigpv, 0, 0, 0}, <-d.requests)

	require.NoError(t, p.SetPulseWidth(18, 1500))
	assert.Equal(t, [4]uint32{cmdServo, 18, 1500, 0}, <-d.requests)

	require.NoError(t, p.SetPulseWidth(19, PulseOff))
	assert.Equal(t, [4]uint32{cmdServo, 19, 0, 0}, <-d.requests)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "second close is a no-op")
	assert.Error(t, p.SetPulseWidth(18, 1500))
}

func TestPigpio_DaemonError(t *testing.T) {
	_, client := startFakeDaemon(t, func(cmd uint32) int32 {
		if cmd == cmdServo {
			return -8 // PI_BAD_PULSEWIDTH
		}
		return 79
	})

	p, err := newPigpio(client, time.Second)
	require.NoError(t, err)
	defer p.Close()

	err = p.SetPulseWidth(18, 1500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon error -8")
}

func TestPigpio_RejectsBadArguments(t *testing.T) {
	_, client := startFakeDaemon(t, func(uint32) int32 { return 79 })
	p, err := newPigpio(client, time.Second)
	require.NoError(t, err)
	defer p.Close()

	assert.Error(t, p.SetPulseWidth(18, 3000))
	assert.Error(t, p.SetPulseWidth(18, 100))
	assert.Error(t, p.SetPulseWidth(99, 1500))
}

func TestDialPigpio_NotRunning(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = DialPigpio(addr, 200*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

type bufferPort struct {
	bytes.Buffer
	closed bool
}

func (b *bufferPort) Close() error {
	b.closed = true
	return nil
}

func TestSetTargetFrame(t *testing.T) {
	// 1500µs = 6000 quarter-µs = 0x1770 -> low7 0x70, high7 0x2E
	assert.Equal(t, []byte{0x84, 0x02, 0x70, 0x2E}, SetTargetFrame(2, 1500))
	assert.Equal(t, []byte{0x84, 0x00, 0x00, 0x00}, SetTargetFrame(0, PulseOff))
}

func TestMaestro_WritesFrames(t *testing.T) {
	port := &bufferPort{}
	m := NewMaestro(port)

	require.NoError(t, m.SetPulseWidth(0, 500))
	require.NoError(t, m.SetPulseWidth(1, 2500))
	assert.Equal(t, append(SetTargetFrame(0, 500), SetTargetFrame(1, 2500)...), port.Bytes())

	assert.Error(t, m.SetPulseWidth(30, 1500))

	require.NoError(t, m.Close())
	assert.True(t, port.closed)
	assert.Error(t, m.SetPulseWidth(0, 1500))
}

func TestPulseToDuty(t *testing.T) {
	assert.Equal(t, gpio.Duty(0), PulseToDuty(0))
	assert.Equal(t, gpio.DutyMax/40, PulseToDuty(500))
	assert.Equal(t, gpio.DutyMax/8, PulseToDuty(2500))
}

func TestMock_RecordsCommands(t *testing.T) {
	m := NewMock()
	m.FailPins = map[int]bool{20: true}

	require.NoError(t, m.SetPulseWidth(18, 1500))
	require.Error(t, m.SetPulseWidth(20, 1500))
	require.NoError(t, m.SetPulseWidth(18, PulseOff))

	assert.Equal(t, []Command{{Pin: 18, Pulse: 1500}, {Pin: 18, Pulse: 0}}, m.Commands())
	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}
