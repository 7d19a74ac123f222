package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vearne/pcapkit/capture"
	"github.com/vearne/pcapkit/config"
	"github.com/vearne/pcapkit/consts"
	"github.com/vearne/pcapkit/journal"
	"github.com/vearne/pcapkit/model"
	"github.com/vearne/pcapkit/netif"
	"github.com/vearne/pcapkit/pcapfile"
	"github.com/vearne/pcapkit/size"
	slog "github.com/vearne/simplelog"
)

const banner string = `
                          __   _ __ 
    ____  _________ _____/ /__(_) /_
   / __ \/ ___/ __ '/ __ \/ //_/ / __/
  / /_/ / /__/ /_/ / /_/ / ,< / / /_  
 / .___/\___/\__,_/ .___/_/|_/_/\__/  
/_/              /_/                  
`

var settings config.AppSettings
var version bool

func init() {
	flag.BoolVar(&version, "version", false,
		"print version")

	flag.DurationVar(&settings.ExitAfter, "exit-after", 0, "stop a live capture after specified duration")

	flag.BoolVar(&settings.ListInterfaces, "list-interfaces", false,
		"print the capture interfaces of this host as JSON")

	// #################### offline ######################
	flag.Var(&config.MultiStringOption{Params: &settings.Count}, "count",
		`Count the packets of capture files:
                pcapkit -count a.pcap -count b.pcap`)

	flag.StringVar(&settings.InputFile, "input-file", "",
		`Duplicate a capture file, "-" reads stdin:
                pcapkit -input-file in.pcap -output-file out.pcap`)

	flag.StringVar(&settings.OutputFile, "output-file", "",
		`Destination capture file, "-" writes stdout`)

	// #################### live ######################
	flag.StringVar(&settings.InputIface, "input-iface", "",
		`Capture packets from given interface (require *sudo* access):
                pcapkit -input-iface eth0 -output-file out.pcap -max-packets 100`)

	flag.IntVar(&settings.MaxPackets, "max-packets", 100, "number of packets to capture")
	flag.BoolVar(&settings.Promiscuous, "promisc", false, "capture in promiscuous mode")
	flag.IntVar(&settings.TimeoutMs, "timeout-ms", consts.DefaultTimeoutMs,
		"how long a single read waits for the next packet")

	// #################### journal ######################
	flag.StringVar(&settings.JournalDir, "journal-dir", "",
		"append a JSON line per run to a rotating journal in this directory")

	settings.JournalMaxSize = size.Size(100 * size.MB)
	flag.Var(&settings.JournalMaxSize, "journal-max-size",
		`the size of the journal before it gets rotated, e.g. "100mb"`)

	flag.IntVar(&settings.JournalMaxBackups, "journal-max-backups", 10,
		"the maximum number of old journal files to retain")

	flag.IntVar(&settings.JournalMaxAge, "journal-max-age", 30,
		"the maximum number of days to retain old journal files")

	flag.StringVar(&settings.LogLevel, "log-level", "", "debug or info")
}

func main() {
	fmt.Fprint(os.Stderr, banner)

	adjustLogLevel()

	flag.Parse()
	if version {
		fmt.Println("service: pcapkit")
		fmt.Println("Version", consts.Version)
		fmt.Println("BuildTime", consts.BuildTime)
		fmt.Println("GitTag", consts.GitTag)
		return
	}
	if settings.LogLevel == "debug" {
		slog.SetLevel(slog.DebugLevel)
	}

	printSettings(&settings)

	jl := openJournal(&settings)
	if jl != nil {
		defer jl.Close()
	}

	var err error
	switch settings.Mode() {
	case config.ModeList:
		err = listInterfaces()
	case config.ModeCount:
		err = countFiles(jl, settings.Count)
	case config.ModeDuplicate:
		err = duplicate(jl, settings.InputFile, settings.OutputFile)
	case config.ModeCapture:
		err = liveCapture(jl, &settings)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("%v", err)
		if jl != nil {
			jl.Close()
		}
		os.Exit(1)
	}
}

func openJournal(settings *config.AppSettings) *journal.Journal {
	if settings.JournalDir == "" {
		return nil
	}
	jl, err := journal.New(settings.JournalDir, journal.Config{
		MaxSize:    settings.JournalMaxSize,
		MaxBackups: settings.JournalMaxBackups,
		MaxAge:     settings.JournalMaxAge,
	})
	if err != nil {
		slog.Fatal("create journal error:%v", err)
	}
	return jl
}

func record(jl *journal.Journal, rec model.Record, packets int, err error) {
	if jl == nil {
		return
	}
	if e := jl.Append(journal.Finish(rec, packets, err)); e != nil {
		slog.Warn("journal error:%v", e)
	}
}

func listInterfaces() error {
	ifs, err := netif.NewDirectory().ListInterfaces()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(ifs, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func countFiles(jl *journal.Journal, files []string) error {
	for _, name := range files {
		rec := journal.NewRecord("count", name, "")
		r, err := pcapfile.OpenReader(pcapfile.Path(name))
		if err != nil {
			record(jl, rec, 0, err)
			return err
		}
		n, err := r.Count()
		r.Close()
		record(jl, rec, n, err)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\n", name, n)
	}
	return nil
}

func duplicate(jl *journal.Journal, input, output string) (err error) {
	if output == "" {
		return fmt.Errorf("-output-file is required with -input-file")
	}
	rec := journal.NewRecord("duplicate", input, output)
	n := 0
	defer func() {
		record(jl, rec, n, err)
	}()

	r, err := pcapfile.OpenReader(pcapfile.Path(input))
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := pcapfile.OpenWriter(pcapfile.Path(output))
	if err != nil {
		return err
	}
	n, err = w.WriteFrom(r)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func liveCapture(jl *journal.Journal, settings *config.AppSettings) error {
	params, err := capture.NewParameters(settings.InputIface, settings.OutputFile, settings.MaxPackets,
		capture.WithPromiscuous(settings.Promiscuous), capture.WithTimeoutMs(settings.TimeoutMs))
	if err != nil {
		return err
	}
	engine, err := capture.NewEngine(params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGINT)
	defer stop()
	if settings.ExitAfter > 0 {
		slog.Info("Running pcapkit for a duration of %s", settings.ExitAfter)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.ExitAfter)
		defer cancel()
	}

	rec := journal.NewRecord("capture", params.InterfaceName, params.OutputFilename)
	res, err := engine.Start(ctx)
	record(jl, rec, res.Packets, err)
	if errors.Is(err, context.DeadlineExceeded) {
		slog.Info("run timeout %s, captured %d packets", settings.ExitAfter, res.Packets)
		return nil
	}
	return err
}

func printSettings(settings *config.AppSettings) {
	slog.Info("mode, %v", settings.Mode())
	slog.Info("count, %v", settings.Count)
	slog.Info("input-file, %v", settings.InputFile)
	slog.Info("output-file, %v", settings.OutputFile)
	slog.Info("input-iface, %v", settings.InputIface)
	slog.Info("max-packets, %v", settings.MaxPackets)
	slog.Info("promisc, %v", settings.Promiscuous)
	slog.Info("timeout-ms, %v", settings.TimeoutMs)
	slog.Info("exit-after, %v", settings.ExitAfter)
	slog.Info("journal-dir, %v", settings.JournalDir)
}

func adjustLogLevel() {
	logLevel := os.Getenv("SIMPLE_LOG_LEVEL")
	if len(logLevel) > 0 {
		return
	}
	slog.SetLevel(slog.InfoLevel)
}
