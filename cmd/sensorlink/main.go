// sensorlink samples local sensors and reports changes to HTTP collector.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/embarcatech/sensorlink/hardware/input"
	"github.com/embarcatech/sensorlink/log2"
	"github.com/embarcatech/sensorlink/state"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("sensorlink", pflag.ContinueOnError)
	configs := flags.StringArrayP("config", "c", []string{"sensorlink.hcl"}, "config file, repeat to overlay")
	debug := flags.Bool("debug", false, "debug logging")
	dryRun := flags.Bool("dry-run", false, "static sensor source, no hardware access")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	log := log2.NewStderr(log2.LInfo)
	if sdnotify("start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	}
	if *debug {
		log.SetLevel(log2.LDebug)
	}

	config := state.MustReadConfig(log, state.NewOsFullReader(), *configs...)
	if *dryRun {
		config.Hardware.Static = true
	}
	if config.Tele.LogDebug {
		log.SetLevel(log2.LDebug)
	}
	g := state.NewGlobal(log)
	if *dryRun {
		g.Hardware.Source = input.NewStatic(input.StaticIdle)
	}
	g.MustInit(config)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		log.Infof("signal=%v stopping", s)
		g.Stop()
		<-sigs
		log.Fatal("second signal, exit now")
	}()

	if err := g.Start(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	sdnotify(daemon.SdNotifyReady)
	log.Infof("running collector=%s:%d schema=%s",
		config.Tele.Collector.Host, config.Tele.CollectorPort(), config.Tele.Sampler.Schema)

	g.Alive.Wait()
	sdnotify(daemon.SdNotifyStopping)
	if err := g.Hardware.Close(); err != nil {
		g.Error(err, "hardware close")
	}
	log.Infof("stopped %s", g.Tele.Stat().String())
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log2.NewStderr(log2.LError).Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
