package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/relabs-tech/arm_recorder/internal/config"
	"github.com/relabs-tech/arm_recorder/internal/episode"
	"github.com/relabs-tech/arm_recorder/internal/servo"
)

const (
	headerHeight = 2 // title + blank line
	anglesHeight = 2 // angle row + blank
	footerHeight = 3 // status line
	borderSize   = 2 // chart border
)

// Joint colors, cycled when there are more joints than colors.
var jointColors = []string{"196", "208", "226", "46", "51", "201"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// RunConsoleMQTT shows the live angle feed. With plain set it prints one line
// per record instead of the chart.
func RunConsoleMQTT(plain bool) error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	records := make(chan episode.Record, 64)
	token := client.Subscribe(cfg.TopicAngles, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rec episode.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("console: record unmarshal error: %v", err)
			return
		}
		select {
		case records <- rec:
		default:
			// drop when the UI falls behind
		}
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicAngles)

	if plain {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		for {
			select {
			case rec := <-records:
				fmt.Printf("[ARM] %s  %s\n", rec.Timestamp, formatAngles(rec.Angles))
			case <-sigCh:
				log.Println("console: shutting down")
				return nil
			}
		}
	}

	// The alt screen owns the terminal; MQTT callbacks log to a file instead.
	restore, err := logToFile(consoleLogFile)
	if err != nil {
		return err
	}
	defer restore()

	p := tea.NewProgram(newConsoleModel(records, cfg.TopicAngles), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// consoleLogFile receives log output while the TUI is running.
const consoleLogFile = "arm_console.log"

// logToFile sends the standard logger to path until restore is called.
func logToFile(path string) (restore func(), err error) {
	f, err := tea.LogToFile(path, "console")
	if err != nil {
		return nil, fmt.Errorf("console log file: %w", err)
	}
	return func() {
		log.SetOutput(os.Stderr)
		log.SetPrefix("")
		f.Close()
	}, nil
}

func formatAngles(angles []float64) string {
	parts := make([]string, len(angles))
	for i, a := range angles {
		parts[i] = fmt.Sprintf("J%d=%6.2f°", i+1, a)
	}
	return strings.Join(parts, "  ")
}

type recordMsg episode.Record

func waitForRecord(records <-chan episode.Record) tea.Cmd {
	return func() tea.Msg {
		return recordMsg(<-records)
	}
}

type consoleModel struct {
	records  <-chan episode.Record
	topic    string
	chart    *streamlinechart.Model
	width    int
	height   int
	latest   episode.Record
	count    int
	quitting bool
}

func newConsoleModel(records <-chan episode.Record, topic string) consoleModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, servo.MaxAngle),
	)
	return consoleModel{records: records, topic: topic, chart: &chart}
}

func jointName(i int) string {
	return "angle" + strconv.Itoa(i+1)
}

func jointStyle(i int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(jointColors[i%len(jointColors)]))
}

func (m *consoleModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-anglesHeight-footerHeight-borderSize, 10)
	return width, height
}

func (m consoleModel) Init() tea.Cmd {
	return waitForRecord(m.records)
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case recordMsg:
		rec := episode.Record(msg)
		for i, a := range rec.Angles {
			if i >= len(m.latest.Angles) {
				m.chart.SetDataSetStyles(jointName(i), runes.ThinLineStyle, jointStyle(i))
			}
			m.chart.PushDataSet(jointName(i), a)
		}
		m.chart.DrawAll()
		m.latest = rec
		m.count++
		return m, waitForRecord(m.records)
	}

	return m, nil
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Console stopped.\n"
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Arm Recorder"))
	sb.WriteString(statusStyle.Render(" - " + m.topic))
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	if m.count == 0 {
		sb.WriteString(statusStyle.Render("Waiting for data..."))
	} else {
		items := make([]string, len(m.latest.Angles))
		for i, a := range m.latest.Angles {
			items[i] = jointStyle(i).Bold(true).Render("━━") + fmt.Sprintf(" J%d %6.2f°", i+1, a)
		}
		sb.WriteString(strings.Join(items, "  "))
	}
	sb.WriteString("\n\n")

	status := fmt.Sprintf("%d records", m.count)
	if m.latest.Timestamp != "" {
		status += "  last " + m.latest.Timestamp
	}
	if n := len(m.latest.Frames); n > 0 {
		status += fmt.Sprintf("  %d frames", n)
	}
	sb.WriteString(statusStyle.Render(status + "  (q to quit)"))
	sb.WriteString("\n")
	return sb.String()
}
