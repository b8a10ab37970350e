// Command wavelink runs a standalone Lavalink v4 protocol-compatible
// audio node: it owns no Discord gateway connection of its own, instead
// accepting already-negotiated voice credentials over REST from
// whatever bot drives it.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wavelink/wavelink/internal/api"
	"github.com/wavelink/wavelink/internal/config"
	"github.com/wavelink/wavelink/internal/driver"
	"github.com/wavelink/wavelink/internal/session"
	"github.com/wavelink/wavelink/internal/source"
	"github.com/wavelink/wavelink/internal/source/deezer"
	"github.com/wavelink/wavelink/internal/source/httpsource"
	"github.com/wavelink/wavelink/internal/source/youtube"
	"github.com/wavelink/wavelink/internal/stats"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load("./config.json")
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	sources := buildSources(cfg)
	sessions := session.NewRegistry(sources, func(guildID string) driver.Driver {
		return driver.NewVoiceGateway(guildID, driver.DiscardSink{})
	})

	broadcaster := stats.NewBroadcaster(sessions, time.Duration(cfg.StatusUpdateSecs)*time.Second, time.Now())
	broadcaster.Start()
	defer broadcaster.Stop()

	server := api.NewServer(sessions, sources, cfg)
	router := api.NewRouter(server)

	slog.Info("starting wavelink", "addr", cfg.Addr())
	if err := http.ListenAndServe(cfg.Addr(), router); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// buildSources registers every source this build has credentials for;
// Deezer is skipped entirely when no decrypt key is configured rather
// than registered in a broken state (§4.5.3).
func buildSources(cfg *config.Config) *source.Registry {
	reg := source.NewRegistry()
	client := resty.New()

	reg.Register(httpsource.New(client))
	reg.Register(youtube.New(client))

	if cfg.Deezer.Enabled() {
		dz, err := deezer.New(client, cfg.Deezer.ARL, cfg.Deezer.DecryptKey)
		if err != nil {
			slog.Warn("deezer source disabled", "error", err)
		} else {
			reg.Register(dz)
		}
	}

	return reg
}
