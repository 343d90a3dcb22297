package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/arm_recorder/internal/config"
	"github.com/relabs-tech/arm_recorder/internal/episode"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard is served from the Pi on the local network
	},
}

// Monitor serves the live angle feed and the recorded episodes.
type Monitor struct {
	dataDir string
	webDir  string

	mu      sync.Mutex
	latest  episode.Record
	have    bool
	clients map[chan episode.Record]struct{}
}

// EpisodeSummary is one entry of /api/episodes.
type EpisodeSummary struct {
	Name string       `json:"name"`
	Meta episode.Meta `json:"meta"`
}

func NewMonitor(dataDir, webDir string) *Monitor {
	return &Monitor{
		dataDir: dataDir,
		webDir:  webDir,
		clients: map[chan episode.Record]struct{}{},
	}
}

// Update stores rec as the latest record and pushes it to every websocket
// client. Slow clients miss records rather than block the feed.
func (m *Monitor) Update(rec episode.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = rec
	m.have = true
	for ch := range m.clients {
		select {
		case ch <- rec:
		default:
		}
	}
}

func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/angles", m.handleLatest)
	mux.HandleFunc("/api/episodes", m.handleEpisodes)
	mux.HandleFunc("/ws", m.handleWS)
	mux.Handle("/episodes/", http.StripPrefix("/episodes/", http.FileServer(http.Dir(m.dataDir))))
	mux.Handle("/", http.FileServer(http.Dir(m.webDir)))
	return mux
}

func (m *Monitor) handleLatest(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	rec, have := m.latest, m.have
	m.mu.Unlock()

	if !have {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rec); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func (m *Monitor) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	list, err := listEpisodes(m.dataDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(list); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// listEpisodes returns the episode directories under dataDir, oldest first.
// Directories without metadata are skipped.
func listEpisodes(dataDir string) ([]EpisodeSummary, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []EpisodeSummary{}, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	list := []EpisodeSummary{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		meta, err := episode.LoadMeta(filepath.Join(dataDir, e.Name()))
		if err != nil {
			continue
		}
		list = append(list, EpisodeSummary{Name: e.Name(), Meta: meta})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (m *Monitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan episode.Record, 16)
	m.mu.Lock()
	if m.have {
		send <- m.latest
	}
	m.clients[send] = struct{}{}
	m.mu.Unlock()

	go func() {
		for rec := range send {
			if err := conn.WriteJSON(rec); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	}()

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("web: websocket error: %v", err)
			}
			break
		}
	}

	m.mu.Lock()
	delete(m.clients, send)
	close(send)
	m.mu.Unlock()
}

func RunWeb() error {
	cfg := config.Get()
	monitor := NewMonitor(cfg.DataDir, "web")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicAngles, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var rec episode.Record
		if err := json.Unmarshal(msg.Payload(), &rec); err != nil {
			log.Printf("web: MQTT payload unmarshal error: %v", err)
			return
		}
		monitor.Update(rec)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to MQTT topic %s", cfg.TopicAngles)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: listening on %s, episodes from %s", addr, cfg.DataDir)
	return http.ListenAndServe(addr, monitor.Handler())
}
