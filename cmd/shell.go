// This package provides utilities that underlie the specific commands.
// The idea is to make the specific command files very small, e.g.:
//
//    func main() {
//      var c cmd.Config
//      cmd.FailOnError(cmd.ReadConfigFile(path, &c), "reading config")
//      stats, logger := cmd.StatsAndLogging(c.Syslog)
//      // command logic
//    }
//
// All commands share the same invocation pattern. They take a single
// parameter "-config", which is the name of a JSON file containing
// the configuration for the app. This JSON file is unmarshalled into
// a Config object, which is provided to the app.

package cmd

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	_ "net/http/pprof" // HTTP performance profiling, added transparently to HTTP APIs
	"os"
	"os/signal"
	"path"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/jmhodges/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	vlog "github.com/w3f/registrar-verifier/log"
	"github.com/w3f/registrar-verifier/metrics"
	"github.com/w3f/registrar-verifier/metrics/measured_http"
)

// Because we don't know when this init will be called with respect to
// flag.Parse() and other flag definitions, we can't rely on the regular
// flag mechanism. But this one is fine.
func init() {
	for _, v := range os.Args {
		if v == "--version" || v == "-version" {
			fmt.Println(VersionString())
			os.Exit(0)
		}
	}
}

// StatsAndLogging constructs a metrics.Scope and a vlog.Logger based on
// its config parameters, and returns them both. Crashes if any setup
// fails. Also sets the constructed logger as the process-wide default, the
// same role Boulder's StatsAndLogging plays for blog before gRPC code
// starts running.
func StatsAndLogging(logConf SyslogConfig) (metrics.Scope, vlog.Logger) {
	scope := metrics.NewPromScope(prometheus.DefaultRegisterer)

	var logger vlog.Logger
	var err error
	if logConf.Development {
		logger, err = vlog.NewDevelopment()
	} else {
		logger, err = vlog.New()
	}
	FailOnError(err, "Could not construct logger")

	vlog.Set(logger)
	return scope, logger
}

// FailOnError exits and prints an error message if we encountered a problem.
func FailOnError(err error, msg string) {
	if err != nil {
		logger := vlog.Get()
		logger.Errf("%s: %s", msg, err)
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err)
		os.Exit(1)
	}
}

// ProfileCmd runs forever, sending Go runtime statistics to the given
// metrics.Scope.
func ProfileCmd(stats metrics.Scope) {
	stats = stats.NewScope("Gostats")
	var memoryStats runtime.MemStats
	prevNumGC := int64(0)
	c := time.Tick(1 * time.Second)
	for range c {
		runtime.ReadMemStats(&memoryStats)

		stats.Gauge("Goroutines", int64(runtime.NumGoroutine()))

		stats.Gauge("Heap.Alloc", int64(memoryStats.HeapAlloc))
		stats.Gauge("Heap.Objects", int64(memoryStats.HeapObjects))
		stats.Gauge("Heap.Idle", int64(memoryStats.HeapIdle))
		stats.Gauge("Heap.InUse", int64(memoryStats.HeapInuse))
		stats.Gauge("Heap.Released", int64(memoryStats.HeapReleased))

		if memoryStats.NumGC > 0 {
			totalRecentGC := uint64(0)
			realBufSize := uint32(256)
			if memoryStats.NumGC < 256 {
				realBufSize = memoryStats.NumGC
			}
			for _, pause := range memoryStats.PauseNs {
				totalRecentGC += pause
			}
			gcPauseAvg := totalRecentGC / uint64(realBufSize)
			lastGC := memoryStats.PauseNs[(memoryStats.NumGC+255)%256]
			stats.Timing("Gc.PauseAvg", int64(gcPauseAvg))
			stats.Gauge("Gc.LastPause", int64(lastGC))
		}
		stats.Gauge("Gc.NextAt", int64(memoryStats.NextGC))
		stats.Gauge("Gc.Count", int64(memoryStats.NumGC))
		gcInc := int64(memoryStats.NumGC) - prevNumGC
		stats.Inc("Gc.Rate", gcInc)
		prevNumGC += gcInc
	}
}

// DebugServer starts a server to receive debug information. Typical
// usage is to start it in a goroutine, configured with an address
// from the appropriate configuration object:
//
//   go cmd.DebugServer(c.DebugAddr)
func DebugServer(addr string) {
	if addr == "" {
		FailOnError(fmt.Errorf("no debug address configured"), "unable to boot debug server")
	}
	ln, err := net.Listen("tcp", addr)
	FailOnError(err, fmt.Sprintf("unable to boot debug server on %#v", addr))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handler := measured_http.New(mux, clock.New())
	FailOnError(http.Serve(ln, handler), "debug server exited")
}

// ReadConfigFile takes a file path as an argument and attempts to
// unmarshal the content of the file into a struct containing a
// configuration of a registrar-verifier component. Files named *.yaml or
// *.yml are parsed as YAML (ConfigDuration implements UnmarshalYAML for
// this; ConfigSecret does not, so in a YAML file a "secret:" value is kept
// literally rather than read from the named file); everything else is
// parsed as JSON.
func ReadConfigFile(filename string, out interface{}) error {
	configData, err := ioutil.ReadFile(filename)
	if err != nil {
		return err
	}
	if strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml") {
		return yaml.Unmarshal(configData, out)
	}
	return json.Unmarshal(configData, out)
}

var (
	buildID   = "unknown"
	buildTime = "unknown"
	buildHost = "unknown"
)

// VersionString produces a friendly application version string. buildID,
// buildTime, and buildHost are ordinarily set at link time via -ldflags.
func VersionString() string {
	name := path.Base(os.Args[0])
	return fmt.Sprintf("Versions: %s=(%s %s) Golang=(%s) BuildHost=(%s)", name, buildID, buildTime, runtime.Version(), buildHost)
}

var signalToName = map[os.Signal]string{
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGHUP:  "SIGHUP",
}

// CatchSignals catches SIGTERM, SIGINT, SIGHUP and executes a callback
// before exiting.
func CatchSignals(logger vlog.Logger, callback func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	signal.Notify(sigChan, syscall.SIGINT)
	signal.Notify(sigChan, syscall.SIGHUP)

	sig := <-sigChan
	logger.Infof("Caught %s", signalToName[sig])

	if callback != nil {
		callback()
	}

	logger.Infof("Exiting")
	os.Exit(0)
}
