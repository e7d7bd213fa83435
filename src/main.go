package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/jinjor/polysynth/src/audio"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

const reportInterval = time.Second / 60

var errQuit = errors.New("quit")

// ----- Config ----- //

type config struct {
	voices      int
	blockFrames int
	filter      string
	socket      string
	httpAddr    string
	patch       string
	midiPort    string
	logLevel    string
	keyboard    bool
}

// loadConfig reads .env, then SYNTH_* variables, then flags. Later sources win.
func loadConfig(args []string) (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("failed to load .env: %w", err)
	}
	defaults := audio.DefaultConfig()
	c := config{
		voices:      envInt("SYNTH_VOICES", defaults.Voices),
		blockFrames: envInt("SYNTH_BLOCK_FRAMES", defaults.BlockFrames),
		filter:      envString("SYNTH_FILTER", defaults.Filter.String()),
		socket:      envString("SYNTH_SOCKET", "/tmp/polysynth.sock"),
		httpAddr:    envString("SYNTH_HTTP_ADDR", ":9100"),
		patch:       envString("SYNTH_PATCH", ""),
		midiPort:    envString("SYNTH_MIDI_PORT", ""),
		logLevel:    envString("SYNTH_LOG_LEVEL", "info"),
		keyboard:    envString("SYNTH_KEYBOARD", "") == "true",
	}
	fset := flag.NewFlagSet("polysynth", flag.ContinueOnError)
	fset.IntVar(&c.voices, "voices", c.voices, "number of voices")
	fset.IntVar(&c.blockFrames, "block", c.blockFrames, "frames per render block")
	fset.StringVar(&c.filter, "filter", c.filter, "filter topology (ladder|svf)")
	fset.StringVar(&c.socket, "socket", c.socket, "unix socket for commands (empty to disable)")
	fset.StringVar(&c.httpAddr, "http", c.httpAddr, "address for /metrics and /meter (empty to disable)")
	fset.StringVar(&c.patch, "patch", c.patch, "patch file to load and watch")
	fset.StringVar(&c.midiPort, "midi", c.midiPort, "MIDI input name filter")
	fset.StringVar(&c.logLevel, "log-level", c.logLevel, "log level")
	fset.BoolVar(&c.keyboard, "keyboard", c.keyboard, "play notes from the computer keyboard")
	if err := fset.Parse(args); err != nil {
		return config{}, err
	}
	return c, nil
}

func envString(key string, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (c config) audioConfig() (audio.Config, error) {
	kind, err := audio.ParseFilterKind(c.filter)
	if err != nil {
		return audio.Config{}, err
	}
	cfg := audio.DefaultConfig()
	cfg.Voices = c.voices
	cfg.BlockFrames = c.blockFrames
	cfg.Filter = kind
	return cfg, nil
}

// ----- Main ----- //

func main() {
	logger := logrus.New()
	c, err := loadConfig(os.Args[1:])
	if err != nil {
		logger.Fatalf("error: %v", err)
	}
	level, err := logrus.ParseLevel(c.logLevel)
	if err != nil {
		logger.Fatalf("error: %v", err)
	}
	logger.SetLevel(level)
	logger.WithField("cpus", runtime.NumCPU()).Info("starting")

	if err := run(c, logger); err != nil && !errors.Is(err, errQuit) {
		logger.Fatalf("error: %v", err)
	}
	logger.Info("main() ended.")
}

func run(c config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := c.audioConfig()
	if err != nil {
		return err
	}
	a, err := audio.NewAudio(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	if c.patch != "" {
		if err := a.LoadPatch(c.patch); err != nil {
			logger.WithError(err).Warn("failed to load patch")
		}
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		select {
		case sig := <-signalCh:
			logger.Infof("Caught signal %s: shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Start(gctx)
	})
	g.Go(func() error {
		return audio.ListenToMidiIn(gctx, c.midiPort, a.Engine().Input(audio.InputMIDI), logger)
	})
	if c.socket != "" {
		g.Go(func() error {
			return serveIPC(gctx, c.socket, a, logger)
		})
	}
	if c.httpAddr != "" {
		g.Go(func() error {
			return serveHTTP(gctx, c.httpAddr, a, logger)
		})
	}
	if c.patch != "" {
		g.Go(func() error {
			return watchPatch(gctx, c.patch, a, logger)
		})
	}
	if c.keyboard {
		g.Go(func() error {
			return playKeyboard(gctx, a.CommandCh, logger)
		})
	}
	return g.Wait()
}

// ----- IPC ----- //

func serveIPC(ctx context.Context, sockFileName string, a *audio.Audio, logger *logrus.Logger) error {
	os.Remove(sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("Closing IPC...")
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.WithError(err).Error("error while closing listener")
		}
		os.Remove(sockFileName)
	}()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()
	logger.WithField("socket", sockFileName).Info("start listening...")
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := handleConnection(ctx, conn, a, logger); err != nil {
			logger.WithError(err).Warn("connection failed")
		}
	}
}

func handleConnection(ctx context.Context, conn net.Conn, a *audio.Audio, logger *logrus.Logger) error {
	defer func() {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.WithError(err).Error("error while closing connection")
		}
	}()
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		conn.Close()
	}()
	g, gctx := errgroup.WithContext(connCtx)
	g.Go(func() error {
		// the connection is over when the peer stops sending
		defer cancel()
		return receiveCommands(gctx, conn, a.CommandCh, logger)
	})
	g.Go(func() error {
		return sendReports(gctx, conn, a, logger)
	})
	return g.Wait()
}

func receiveCommands(ctx context.Context, conn io.Reader, commandCh chan<- []string, logger *logrus.Logger) error {
	reader := bufio.NewReader(conn)
	var line []byte
	for {
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF || ctx.Err() != nil {
			break
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		line = line[:0]
		if err != nil {
			logger.WithError(err).Warn("invalid command")
			continue
		}
		logger.WithField("command", command).Debug("received")
		select {
		case commandCh <- command:
		case <-ctx.Done():
			return nil
		}
	}
	logger.Debug("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Fields(line)
	if len(lineStr) == 0 {
		return nil, errors.New("empty line")
	}
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func sendReports(ctx context.Context, conn io.Writer, a *audio.Audio, logger *logrus.Logger) error {
	t := time.NewTicker(reportInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("sendReports() ended.")
			return nil
		case <-t.C:
		}
		if _, err := io.WriteString(conn, formatLevels(a.Levels())+"\n"); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if a.Changes.Has("patch") {
			a.Changes.Delete("patch")
			data, err := a.ToJSON()
			if err != nil {
				return err
			}
			if _, err := io.WriteString(conn, "patch "+url.QueryEscape(string(data))+"\n"); err != nil {
				return err
			}
		}
	}
}

func formatLevels(levels []float64) string {
	var sb strings.Builder
	sb.WriteString("levels")
	for _, v := range levels {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatFloat(v, 'f', 3, 64))
	}
	return sb.String()
}

// ----- HTTP ----- //

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func newRegistry(a *audio.Audio) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := audio.RegisterMetrics(reg, a.Engine()); err != nil {
		return nil, err
	}
	return reg, nil
}

func newMux(a *audio.Audio, reg *prometheus.Registry, logger *logrus.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/meter", func(w http.ResponseWriter, r *http.Request) {
		serveMeter(w, r, a, logger)
	})
	mux.HandleFunc("/patch", func(w http.ResponseWriter, r *http.Request) {
		data, err := a.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})
	return mux
}

func serveHTTP(ctx context.Context, addr string, a *audio.Audio, logger *logrus.Logger) error {
	reg, err := newRegistry(a)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           newMux(a, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("failed to shut down HTTP server")
		}
	}()
	logger.WithField("addr", addr).Info("serving HTTP")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// serveMeter streams voice levels as JSON arrays until the client goes away.
func serveMeter(w http.ResponseWriter, r *http.Request, a *audio.Audio, logger *logrus.Logger) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithError(err).Warn("failed to upgrade")
		return
	}
	defer conn.Close()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	t := time.NewTicker(reportInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-t.C:
			if err := conn.WriteJSON(a.Levels()); err != nil {
				return
			}
		}
	}
}

// ----- Patch Watcher ----- //

func watchPatch(ctx context.Context, path string, a *audio.Audio, logger *logrus.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	// editors often replace the file, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := a.LoadPatch(path); err != nil {
				logger.WithError(err).Warn("failed to reload patch")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("watcher error")
		}
	}
}

// ----- Keyboard ----- //

// keyNotes maps a piano-like row of the computer keyboard to C4..C5.
var keyNotes = map[byte]int{
	'a': 60, 'w': 61, 's': 62, 'e': 63, 'd': 64, 'f': 65, 't': 66,
	'g': 67, 'y': 68, 'h': 69, 'u': 70, 'j': 71, 'k': 72,
}

// playKeyboard toggles notes from stdin in raw mode. q or Ctrl-C quits.
func playKeyboard(ctx context.Context, commandCh chan<- []string, logger *logrus.Logger) error {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		logger.Warn("stdin is not a terminal, keyboard disabled")
		return nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := os.Stdin.Read(buf); err != nil {
				close(keys)
				return
			}
			select {
			case keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
	}()
	held := make(map[int]bool)
	for {
		var key byte
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case key, ok = <-keys:
			if !ok {
				return nil
			}
		}
		command := keyCommand(key, held)
		if command == nil {
			continue
		}
		if command[0] == "quit" {
			return errQuit
		}
		select {
		case commandCh <- command:
		case <-ctx.Done():
			return nil
		}
	}
}

func keyCommand(key byte, held map[int]bool) []string {
	switch key {
	case 0x03, 'q':
		return []string{"quit"}
	case ' ':
		for note := range held {
			delete(held, note)
		}
		return []string{"panic"}
	case '1':
		return []string{"wave", "0", "next"}
	case '2':
		return []string{"wave", "1", "next"}
	}
	note, ok := keyNotes[key]
	if !ok {
		return nil
	}
	n := strconv.Itoa(note)
	if held[note] {
		delete(held, note)
		return []string{"note_off", n}
	}
	held[note] = true
	return []string{"note_on", n}
}
