package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"emotionbank.games/internal/observerproto"
	"emotionbank.games/internal/sim/emotion"
	"emotionbank.games/internal/transport/observer"
)

func main() {
	var (
		base        = flag.String("server", "http://127.0.0.1:8080", "server base url")
		entities    = flag.String("entities", "", "comma separated entity ids to follow (default all)")
		transitions = flag.Bool("transitions", true, "print attachment transitions and fired effects")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[observe] ", log.LstdFlags|log.Lmicroseconds)

	boot, err := fetchBootstrap(*base + "/v1/observer/bootstrap")
	if err != nil {
		logger.Fatalf("bootstrap: %v", err)
	}
	mirror, err := observer.NewMirror(boot)
	if err != nil {
		logger.Fatalf("mirror: %v", err)
	}
	logger.Printf("world tick=%d tick_rate=%d emotions=%s", boot.Tick, boot.WorldParams.TickRateHz, boot.WorldParams.EmotionsDigest)

	wsURL := "ws" + strings.TrimPrefix(*base, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		Transitions:     *transitions,
	}
	if s := strings.TrimSpace(*entities); s != "" {
		sub.Entities = strings.Split(s, ",")
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("subscribe: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	filtered := len(sub.Entities) > 0
	for {
		var f observerproto.FrameMsg
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		for _, id := range f.Joins {
			logger.Printf("tick=%d join %s", f.Tick, id)
		}
		for _, id := range f.Leaves {
			logger.Printf("tick=%d leave %s", f.Tick, id)
		}
		for _, tr := range f.Transitions {
			logger.Printf("tick=%d %s %s host=%s %s", f.Tick, tr.Op, tr.Magnet, tr.Host, tr.Result)
		}
		for _, fi := range f.Fired {
			logger.Printf("tick=%d %s %s on %s", f.Tick, fi.Kind, fi.Action, fi.Body)
		}
		for _, c := range mirror.Apply(f, filtered) {
			logger.Printf("tick=%d %s v%d %s", f.Tick, c.ID, c.Version, formatValues(c.Values))
		}
	}
}

func fetchBootstrap(url string) (observerproto.BootstrapResponse, error) {
	var b observerproto.BootstrapResponse
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return b, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return b, fmt.Errorf("status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		return b, err
	}
	if b.ProtocolVersion != observerproto.Version {
		return b, fmt.Errorf("observer protocol %s, want %s", b.ProtocolVersion, observerproto.Version)
	}
	return b, nil
}

func formatValues(vals map[emotion.Kind]float64) string {
	kinds := make([]emotion.Kind, 0, len(vals))
	for k := range vals {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%.3f", k, vals[k]))
	}
	return strings.Join(parts, " ")
}
