// Command satsim is a hosted smoke-test front end for satstore: a subcommand
// CLI rather than a single flag-soup entry point.
package main

import (
	"flag"
	"fmt"
	"os"

	satstore "github.com/xyproto/satstore"
	"github.com/xyproto/satstore/internal/media"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "satsim:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return cmdHelp()
	}
	switch args[0] {
	case "demo":
		return cmdDemo(args[1:])
	case "help", "-h", "--help":
		return cmdHelp()
	default:
		return fmt.Errorf("unknown command %q (try: satsim help)", args[0])
	}
}

func cmdHelp() error {
	fmt.Println(`satsim - hosted storage-core smoke test

Usage:
  satsim demo [-verbose]    run the storage core's boundary scenarios
                            end to end against a simulated media backend
  satsim help               show this message

Configuration is read from SATSTORE_* environment variables, overlaid on
the reference defaults (see satstore.Defaults); the demo then fixes the
section, page, FRAM size, flight-plan capacity and payload layout to a
small demo geometry, so only the remaining settings take effect.`)
	return nil
}

// cmdDemo opens a simulated storage instance and walks through the
// flight-plan fill-and-compact cycle, a due-entry purge, three payload
// appends, and a status-table write and read-back. It does not perturb
// status copies to exercise voting and does not simulate a reboot.
func cmdDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	verbose := fs.Bool("verbose", false, "trace every storage operation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := satstore.LevelWarn
	if *verbose {
		level = satstore.LevelVerbose
	}
	log := satstore.NewLogger(os.Stderr, level)

	cfg := satstore.LoadFromEnv(satstore.Defaults())
	cfg.Section = 2048
	cfg.Page = 512
	cfg.FPMaxEntries = 4
	cfg.SectionsPerPayload = 1
	cfg.NPayloads = 1
	cfg.FRAMSize = 4096
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	flashSections := 1 + 2 + cfg.NPayloads*cfg.SectionsPerPayload
	backend, err := media.NewSimBackend(media.Geometry{
		Page:      cfg.Page,
		Section:   cfg.Section,
		FlashSize: cfg.Section * flashSections,
		FRAMSize:  cfg.FRAMSize,
	}, "", "")
	if err != nil {
		return fmt.Errorf("media: %w", err)
	}
	defer backend.Close()

	schema := satstore.PayloadSchema{Size: 128, DataOrder: "%d %f", VarNames: "counter temperature"}
	repo, err := satstore.Open(cfg, backend, 8, []satstore.PayloadSchema{schema}, true, log)
	if err != nil {
		return fmt.Errorf("storage_init: %w", err)
	}

	fmt.Println("-- flight-plan fill-and-compact --")
	for _, ut := range []int32{100, 200, 300} {
		if err := repo.FlightPlanSet(satstore.Entry{Unixtime: ut, Cmd: "noop"}); err != nil {
			return err
		}
	}
	if err := repo.FlightPlanDelete(200); err != nil {
		return err
	}
	for _, ut := range []int32{400, 500} {
		if err := repo.FlightPlanSet(satstore.Entry{Unixtime: ut, Cmd: "noop"}); err != nil {
			return err
		}
	}
	fmt.Println("fpl_queue after compaction:", repo.FlightPlanQueueLen())

	fmt.Println("-- purge --")
	purged, err := repo.FlightPlanPurge(450)
	if err != nil {
		return err
	}
	fmt.Println("entries purged:", purged, "fpl_queue now:", repo.FlightPlanQueueLen())

	fmt.Println("-- payload append --")
	for i := 0; i < 3; i++ {
		data := make([]byte, 128)
		data[0] = byte(i)
		idx, err := repo.PayloadAppend(0, data)
		if err != nil {
			return err
		}
		fmt.Println("wrote sample at index", idx)
	}

	fmt.Println("-- status table --")
	if err := repo.StatusSet(0, satstore.NewInt32(42)); err != nil {
		return err
	}
	v, err := repo.StatusGet(0)
	if err != nil {
		return err
	}
	fmt.Println("status[0] =", v.Int32())

	return repo.Close()
}
