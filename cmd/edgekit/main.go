package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/edgekit/edgekit"
	"github.com/edgekit/edgekit/cors"
	"github.com/edgekit/edgekit/httpcache"
	"github.com/edgekit/edgekit/store"
)

var (
	configFilenameFlag string
	portFlag           int
	originFlag         string
	providerFlag       string
	verbosityTraceFlag bool
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to")
	flag.StringVar(&providerFlag, "provider", "memory", "Store provider: memory, sqlite or redis")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	config := edgekit.Config{
		Port:  portFlag,
		Cache: edgekit.CacheConfig{Provider: providerFlag, SQLitePath: "cache.db"},
	}
	if configFilenameFlag != "" {
		var err error
		if config, err = edgekit.LoadConfig(configFilenameFlag); err != nil {
			log.Fatal().Err(err).Msg("Could not read config")
		}
		if config.Port == 0 {
			config.Port = portFlag
		}
	}

	blobs, err := newStore(config.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create store")
	}

	if originFlag == "" {
		log.Fatal().Msg("Please specify origin")
	}
	originURL, err := url.Parse(originFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not parse origin url")
	}

	worker := edgekit.New(edgekit.WithLogger(log.Logger))
	worker.Use(
		edgekit.Recoverer(log.Logger),
		cors.Middleware(cors.Options{AllowedOrigins: []string{"*"}}),
		httpcache.New(httpcache.Config{
			Store: blobs,
			Name:  config.Cache.Name,
			Defer: worker.WaitUntil,
		}).Handler,
	)
	worker.Handle("/*", httputil.NewSingleHostReverseProxy(originURL))

	log.Info().Msgf("Proxying port %d to %s", config.Port, originURL)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", config.Port), worker); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func newStore(cfg edgekit.CacheConfig) (store.Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return store.NewMemory(), nil
	case "sqlite":
		return store.NewSQLite(cfg.SQLitePath)
	case "redis":
		return store.NewRedis(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Provider)
	}
}
