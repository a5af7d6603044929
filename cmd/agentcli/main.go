package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/wolfman30/barber-agent/cmd/mainconfig"
	"github.com/wolfman30/barber-agent/internal/app/bootstrap"
	appconfig "github.com/wolfman30/barber-agent/internal/config"
	"github.com/wolfman30/barber-agent/internal/conversation"
	"github.com/wolfman30/barber-agent/pkg/logging"
)

// agentcli chats with the engine from a terminal, one line per message.
// Sessions live in memory unless SESSION_STORE=redis.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	tenant := flag.Int64("tenant", 1, "tenant id")
	from := flag.String("from", "+905550000000", "sender phone number")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	deps := bootstrap.ConversationDeps{LoadAWS: mainconfig.LoadAWSConfig}
	if cfg.SessionStore == appconfig.SessionStoreRedis {
		deps.Redis = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	}
	conv, err := bootstrap.BuildConversation(ctx, cfg, deps, logger)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer conv.Close()

	key := conversation.SessionKey{TenantID: *tenant, FromNumber: *from}
	if err := chat(ctx, conv.Engine, key, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("chat: %v", err)
	}
}

type processor interface {
	ProcessMessage(ctx context.Context, req conversation.Request) conversation.Response
	ResetSession(ctx context.Context, key conversation.SessionKey) error
}

// chat reads messages until EOF or /quit. /reset clears the session.
func chat(ctx context.Context, engine processor, key conversation.SessionKey, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "/quit":
			return nil
		case "/reset":
			if err := engine.ResetSession(ctx, key); err != nil {
				return err
			}
			fmt.Fprintln(out, "(session reset)")
		case "":
		default:
			resp := engine.ProcessMessage(ctx, conversation.Request{
				TenantID:   key.TenantID,
				FromNumber: key.FromNumber,
				Message:    line,
			})
			state := "-"
			if resp.NextState != nil {
				state = string(*resp.NextState)
			}
			fmt.Fprintf(out, "%s\n[%s -> %s]\n", resp.Reply, resp.Intent, state)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
