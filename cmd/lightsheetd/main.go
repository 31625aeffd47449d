package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/rs/zerolog"
	yml "gopkg.in/yaml.v2"

	"github.com/wil-imaging/golightsheet/acquisition"
	"github.com/wil-imaging/golightsheet/asi"
	"github.com/wil-imaging/golightsheet/camera"
	"github.com/wil-imaging/golightsheet/filterwheel"
	"github.com/wil-imaging/golightsheet/sim"
	"github.com/wil-imaging/golightsheet/stage"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "lightsheetd.yml"

	k = koanf.New(".")
)

// ControllerConfig locates the ASI Tiger running the stage and filter wheel.
type ControllerConfig struct {
	// Addr is a device file / COM port when Serial is true, else a host:port
	// for a serial-over-TCP bridge.
	Addr   string `koanf:"addr" yaml:"Addr"`
	Serial bool   `koanf:"serial" yaml:"Serial"`
}

// SimCameraConfig shapes the simulated camera's frames.
type SimCameraConfig struct {
	Width  int `koanf:"width" yaml:"Width"`
	Height int `koanf:"height" yaml:"Height"`
}

// Config holds the initialization parameters for the server.
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"addr" yaml:"Addr"`

	// Mock replaces all hardware with simulators
	Mock bool `koanf:"mock" yaml:"Mock"`

	Controller ControllerConfig `koanf:"controller" yaml:"Controller"`

	Camera SimCameraConfig `koanf:"camera" yaml:"Camera"`

	// QueueDepth bounds in-flight saves per destination
	QueueDepth int `koanf:"queuedepth" yaml:"QueueDepth"`
}

func defaults() Config {
	return Config{
		Addr:       ":8910",
		Mock:       true,
		Controller: ControllerConfig{Addr: "/dev/ttyS0", Serial: true},
		Camera:     SimCameraConfig{Width: 2048, Height: 2048},
		QueueDepth: 8,
	}
}

func setupconfig() Config {
	k.Load(structs.Provider(defaults(), "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), kyaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg := Config{}
	if err := k.Unmarshal("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func root() {
	str := `lightsheetd drives light-sheet Z-stack acquisitions and exposes the
acquisition engine over HTTP, so the operator UI and scripts can use the
excellent HTTP libraries for any programming language.

Usage:
	lightsheetd <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `lightsheetd is amenable to configuration via its .yaml file.  For a primer
on YAML, see https://yaml.org/start.html

With no configuration the server runs against simulated hardware (Mock: true)
and listens on :8910.

Set Mock to false to drive a real ASI Tiger controller at Controller.Addr.
The camera has no in-tree vendor driver; without one the simulated camera is
used and a warning is logged at startup.

Routes live under /acquisition: POST start, POST cancel, POST preview,
GET state, GET events.  GET /route-list lists every bound route.`
	fmt.Println(str)
}

func mkconf() {
	out, err := yml.Marshal(defaults())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error rendering config: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}

func conf() {
	out, err := yml.Marshal(setupconfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error rendering config: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}

func run() {
	cfg := setupconfig()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	var (
		st  stage.Controller
		cam camera.Camera
		fw  filterwheel.Wheel
	)
	cam = &sim.Camera{Width: cfg.Camera.Width, Height: cfg.Camera.Height}
	if cfg.Mock {
		st = &sim.Stage{}
		fw = &sim.Wheel{}
	} else {
		tiger := asi.NewTiger(cfg.Controller.Addr, cfg.Controller.Serial)
		defer tiger.Close()
		st = tiger
		fw = tiger.FilterWheel()
		log.Warn().Msg("no in-tree camera driver; captures use the simulated camera")
	}

	drv := acquisition.New(st, cam, fw, log)
	drv.QueueDepth = cfg.QueueDepth
	wrapper := acquisition.NewHTTPWrapper(drv)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	sub := chi.NewRouter()
	wrapper.RT().Bind(sub)
	r.Mount("/acquisition", sub)
	r.Get("/route-list", func(w http.ResponseWriter, req *http.Request) {
		routes := wrapper.RT().Endpoints()
		for i := range routes {
			routes[i] = strings.Replace(routes[i], " /", " /acquisition/", 1)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(routes)
	})

	log.Info().Str("addr", cfg.Addr).Bool("mock", cfg.Mock).Msg("lightsheetd listening")
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func main() {
	if len(os.Args) < 2 {
		root()
		return
	}
	switch os.Args[1] {
	case "run":
		run()
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		conf()
	case "version":
		fmt.Printf("lightsheetd version %s\n", Version)
	default:
		root()
	}
}
