package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lao-tseu-is-alive/go-flock-events/pkg/eventsink"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	addr := flag.String("addr", "ws://localhost:4242", "websocket hub address")
	topic := flag.String("topic", "", "only print this topic (interactions or player-position)")
	retries := flag.Int("retries", 5, "connection attempts before giving up")
	flag.Parse()

	target := *addr
	if *topic != "" {
		target += "?topic=" + url.QueryEscape(*topic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := dial(ctx, target, *retries)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	for {
		var env eventsink.Envelope
		if err := wsjson.Read(ctx, c, &env); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			log.Fatal(err)
		}
		fmt.Printf("%-16s %-36s %s\n", env.Topic, env.Key, env.Value)
	}
}

// dial retries while the simulation is still starting its hub.
func dial(ctx context.Context, target string, attempts int) (*websocket.Conn, error) {
	var err error
	for i := 0; i < attempts; i++ {
		var c *websocket.Conn
		c, _, err = websocket.Dial(ctx, target, nil)
		if err == nil {
			return c, nil
		}
		log.Printf("dial %s: %v", target, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(i+1) * 200 * time.Millisecond):
		}
	}
	return nil, err
}
