package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hadijafari/RolePlay-Project-Website/internal/avatar"
	"github.com/hadijafari/RolePlay-Project-Website/internal/config"
)

// avatar-chat drives a streaming avatar session from the terminal:
// lines typed on stdin are spoken verbatim, "/interrupt" cuts the
// avatar off, Ctrl+D or a signal stops the session and prints the
// assembled transcript.
func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	avatarName := flag.String("avatar", "", "avatar to stream (vendor default when empty)")
	language := flag.String("language", "", "avatar language")
	voiceRate := flag.Float64("rate", 0, "voice rate, clamped to the vendor's range")
	greeting := flag.String("greeting", "", "line the avatar speaks on start")
	knowledge := flag.String("knowledge", "", "knowledge base id")
	listAvatars := flag.Bool("list", false, "list available avatars and exit")
	flag.Parse()

	cfg := config.Load()
	if cfg.HeyGenKey == "" {
		log.Fatal("HEYGEN_API_KEY is required")
	}
	client := avatar.NewClient(cfg.HeyGenKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *listAvatars {
		avatars, err := client.ListAvatars(ctx)
		if err != nil {
			log.Fatalf("list avatars: %v", err)
		}
		for _, a := range avatars {
			fmt.Printf("%s\t%s\t%s\n", a.AvatarID, a.AvatarName, a.PoseName)
		}
		return
	}

	ctrl := avatar.NewController(client)
	info, err := ctrl.Start(ctx, avatar.StartOptions{
		AvatarName:    *avatarName,
		Language:      *language,
		VoiceRate:     *voiceRate,
		KnowledgeBase: *knowledge,
		Greeting:      *greeting,
	})
	if err != nil {
		log.Fatalf("start avatar session: %v", err)
	}
	log.Printf("avatar session %s active", info.SessionID)

	feed := avatar.NewFeed(info.URL, info.AccessToken)
	if err := feed.Connect(); err != nil {
		log.Printf("event feed unavailable, transcript disabled: %v", err)
	} else {
		go ctrl.Run(ctx, feed.Events())
		defer feed.Close()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

loop:
	for {
		select {
		case sig := <-sigChan:
			log.Printf("signal received: %v", sig)
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == "/interrupt":
				if err := ctrl.Interrupt(ctx); err != nil {
					log.Printf("interrupt: %v", err)
				}
			default:
				if err := ctrl.Speak(ctx, line); err != nil {
					log.Printf("speak: %v", err)
				}
			}
		}
	}

	if err := ctrl.Stop(context.Background()); err != nil {
		log.Printf("stop session: %v", err)
	}
	for _, entry := range ctrl.Transcript().Entries() {
		fmt.Printf("[%s %s] %s\n", entry.Timestamp.Format("15:04:05"), entry.Role, entry.Text)
	}
}
