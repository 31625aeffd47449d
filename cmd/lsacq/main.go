// Command lsacq runs one light-sheet acquisition from a YAML plan file and
// reports progress on the terminal.  It is the scripting-friendly face of the
// engine; lightsheetd serves the same engine over HTTP.
package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/theckman/yacspin"
	yml "gopkg.in/yaml.v2"

	"github.com/wil-imaging/golightsheet/acquisition"
	"github.com/wil-imaging/golightsheet/asi"
	"github.com/wil-imaging/golightsheet/camera"
	"github.com/wil-imaging/golightsheet/filterwheel"
	"github.com/wil-imaging/golightsheet/sim"
	"github.com/wil-imaging/golightsheet/stage"
)

// planFile is the YAML document lsacq consumes: the settings snapshot plus
// the sample list.
type planFile struct {
	Settings acquisition.Settings `yaml:"Settings"`
	Samples  []acquisition.Sample `yaml:"Samples"`
}

func main() {
	var (
		fn     = flag.String("f", "plan.yml", "acquisition plan file")
		mock   = flag.Bool("mock", false, "use simulated hardware")
		addr   = flag.String("addr", "/dev/ttyS0", "ASI Tiger address (ignored with -mock)")
		serial = flag.Bool("serial", true, "Tiger address is a serial port, not host:port")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	buf, err := ioutil.ReadFile(*fn)
	if err != nil {
		log.Fatal().Err(err).Msg("could not read plan file")
	}
	plan := planFile{}
	if err := yml.Unmarshal(buf, &plan); err != nil {
		log.Fatal().Err(err).Msg("could not parse plan file")
	}

	var (
		st  stage.Controller
		cam camera.Camera
		fw  filterwheel.Wheel
	)
	if *mock {
		st = &sim.Stage{}
		cam = &sim.Camera{}
		fw = &sim.Wheel{}
	} else {
		tiger := asi.NewTiger(*addr, *serial)
		defer tiger.Close()
		st = tiger
		fw = tiger.FilterWheel()
		cam = &sim.Camera{}
		log.Warn().Msg("no in-tree camera driver; captures use the simulated camera")
	}

	drv := acquisition.New(st, cam, fw, log)
	run, err := drv.Start(plan.Settings, plan.Samples)
	if err != nil {
		log.Fatal().Err(err).Msg("acquisition refused")
	}

	// ctrl-C aborts at the next step boundary instead of killing the process,
	// so queued saves still land on disk
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		run.Cancel()
	}()

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[59],
		Suffix:            " acquiring",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not build spinner")
	}
	spinner.Start()

	total := len(run.Plan.Steps)
	failed := false
	for ev := range run.Events() {
		switch ev.Kind {
		case acquisition.EventStepCompleted:
			s := ev.Step
			spinner.Message(fmt.Sprintf("step %d/%d  t%04d fish%02d z%04d %s",
				ev.Index+1, total, s.TimePoint, s.Sample, s.ZPlane, s.Channel.Name))
		case acquisition.EventWarning:
			log.Warn().Msg(ev.Message)
		case acquisition.EventCompleted:
			spinner.StopMessage(fmt.Sprintf("acquired %d frames to %s", total, plan.Settings.SavePath))
		case acquisition.EventAborted:
			failed = true
			spinner.StopFailMessage("aborted")
		case acquisition.EventFailed:
			failed = true
			spinner.StopFailMessage(ev.Message)
		}
	}
	if failed {
		spinner.StopFail()
		os.Exit(1)
	}
	spinner.Stop()
}
