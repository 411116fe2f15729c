// Command test floods a room with random strokes, shapes and chat through
// real sessions, for load testing the relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/client"
	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/internal/logx"
	"github.com/Tk21111/whiteboard_sync/room"
	"github.com/Tk21111/whiteboard_sync/session"
)

const (
	width  = 960
	height = 540
)

var tools = []session.Tool{session.ToolDraw, session.ToolDraw, session.ToolDraw, session.ToolEraser, session.ToolRect, session.ToolLine, session.ToolArrow}

func randPoint() (float64, float64) {
	return rand.Float64() * width, rand.Float64() * height
}

func randColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(0xffffff+1))
}

// scribble drags one random stroke of n segments.
func scribble(s *session.Session, n int) {
	s.SetTool(tools[rand.IntN(len(tools))])
	s.SetColor(randColor())
	s.SetLineWidth(1 + rand.Float64()*12)

	x, y := randPoint()
	s.PointerDown(x, y)
	for range n {
		x += (rand.Float64() - 0.5) * 60
		y += (rand.Float64() - 0.5) * 60
		s.PointerMove(x, y)
	}
	s.PointerUp(x, y)
}

func bot(ctx context.Context, opts session.Options, rate int, id int, wg *sync.WaitGroup) {
	defer wg.Done()

	log := logx.L.With(zap.Int("bot", id))
	opts.Logger = log
	opts.Width, opts.Height = width, height

	s, err := session.Open(ctx, opts)
	if err != nil {
		log.Error("open session", zap.Error(err))
		return
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("close session", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	strokes := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("bot finished", zap.Int("strokes", strokes), zap.Int("chat", len(s.Chat())))
			return
		case <-ticker.C:
			if s.State() != client.Open {
				continue
			}
			scribble(s, 5+rand.IntN(20))
			strokes++
			if strokes%50 == 0 {
				s.SendChat(fmt.Sprintf("bot %d at %d strokes", id, strokes))
			}
		}
	}
}

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var (
		roomID   = flag.String("room", room.NewID(), "room id")
		bots     = flag.Int("bots", 4, "concurrent sessions")
		rate     = flag.Int("rate", 20, "strokes per second per bot")
		duration = flag.Duration("duration", 10*time.Second, "run time")
	)
	flag.Parse()

	if err := logx.Init(settings.Env); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logx.L.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	opts := session.FromSettings(settings, *roomID)
	opts.Prefs = room.NewPrefs(os.DevNull)

	logx.L.Info("bombarding room",
		zap.String("room", *roomID),
		zap.String("name", room.DisplayName(*roomID)),
		zap.Int("bots", *bots),
	)

	var wg sync.WaitGroup
	for i := range *bots {
		wg.Add(1)
		go bot(ctx, opts, max(*rate, 1), i, &wg)
	}
	wg.Wait()
}
