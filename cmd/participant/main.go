package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/stemsi/exstem-room/internal/config"
	"github.com/stemsi/exstem-room/internal/database"
	"github.com/stemsi/exstem-room/internal/grading"
	"github.com/stemsi/exstem-room/internal/link"
	"github.com/stemsi/exstem-room/internal/logger"
	"github.com/stemsi/exstem-room/internal/participant"
	"github.com/stemsi/exstem-room/internal/repository"
)

func main() {
	cfg := config.Load()

	var (
		name           string
		room           string
		authorityURL   string
		denyFullscreen bool
	)
	flag.StringVar(&name, "name", "", "Participant name (required)")
	flag.StringVar(&room, "room", "", "Room number or full peer identifier (required)")
	flag.StringVar(&authorityURL, "url", cfg.AuthorityURL, "Examiner base URL")
	flag.BoolVar(&denyFullscreen, "deny-fullscreen", false, "Simulate a device that refuses fullscreen")
	flag.Parse()

	// Logs go to stderr so the prompt on stdout stays readable.
	log := logger.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	name = strings.TrimSpace(name)
	if name == "" || room == "" {
		fmt.Fprintln(os.Stderr, "Usage: participant -name <name> -room <room>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	roomID, err := link.ParseRoomID(cfg.PeerNamespace, room)
	if err != nil {
		log.Fatal().Err(err).Str("room", room).Msg("Invalid room")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Device Store ──────────────────────────────────────────────────
	db, err := database.NewSQLiteDB(ctx, cfg.ParticipantStorePath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open device store")
	}
	defer db.Close()
	if err := repository.InitSQLiteSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare device store")
	}

	// ─── Participant ───────────────────────────────────────────────────
	platform := participant.NewHeadlessPlatform(denyFullscreen)
	machine := participant.NewMachine(participant.Config{
		Name:            name,
		RoomID:          roomID,
		Rules:           grading.DefaultRules,
		DefaultDuration: cfg.DefaultDuration,
	}, platform, repository.NewSQLiteStartRepository(db), log)
	node := participant.NewNode(participant.NodeConfig{
		AuthorityURL: authorityURL,
		Namespace:    cfg.PeerNamespace,
	}, machine, log)
	go node.Run(ctx)

	fmt.Printf("Phòng %d, thí sinh %s. Gõ \"help\" để xem lệnh.\n", roomID, name)

	sh := &shell{node: node, platform: platform, out: os.Stdout}
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if sh.exec(ctx, line) {
				return
			}
		}
	}
}
