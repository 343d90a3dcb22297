package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/arm_recorder/internal/config"
	"github.com/relabs-tech/arm_recorder/internal/episode"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
	jointsPerCol  = 4
)

// DisplayData holds the latest record for the OLED.
type DisplayData struct {
	mu     sync.RWMutex
	latest episode.Record
	have   bool
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(&addrBus{Bus: bus, addr: cfg.DisplayI2CAddr}, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := dev.Draw(dev.Bounds(), renderSplash(), image.Point{}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicAngles, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rec episode.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("display: record unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.latest = rec
		data.have = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", cfg.TopicAngles, token.Error())
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		rec, have := data.latest, data.have
		data.mu.RUnlock()

		if err := dev.Draw(dev.Bounds(), renderAngles(rec, have), image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}

// addrBus sends every transaction to addr. ssd1306.NewI2C always talks to
// 0x3C; panels strapped to 0x3D need the address rewritten.
type addrBus struct {
	i2c.Bus
	addr uint16
}

func (b *addrBus) Tx(_ uint16, w, r []byte) error {
	return b.Bus.Tx(b.addr, w, r)
}

func newCanvas() (*image1bit.VerticalLSB, *font.Drawer) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	return img, drawer
}

// renderAngles lays joints out top to bottom, four per column, with the
// record time on the last line.
func renderAngles(rec episode.Record, have bool) *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	if !have {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("Arm angles"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return img
	}

	for i, a := range rec.Angles {
		if i >= 2*jointsPerCol {
			break
		}
		col, row := i/jointsPerCol, i%jointsPerCol
		drawer.Dot = fixed.P(col*displayWidth/2, (row+1)*lineHeight)
		drawer.DrawBytes([]byte(fmt.Sprintf("J%d%6.1f", i+1, a)))
	}

	// HH:MM:SS out of the ISO timestamp
	if len(rec.Timestamp) >= 19 {
		drawer.Dot = fixed.P(0, displayHeight-1)
		drawer.DrawBytes([]byte(rec.Timestamp[11:19]))
	}
	return img
}

func renderSplash() *image1bit.VerticalLSB {
	img, drawer := newCanvas()

	drawer.Dot = fixed.P(10, 26)
	drawer.DrawBytes([]byte("Arm Recorder"))

	drawer.Dot = fixed.P(5, 43)
	drawer.DrawBytes([]byte("Waiting for"))

	drawer.Dot = fixed.P(25, 56)
	drawer.DrawBytes([]byte("angles"))

	return img
}
