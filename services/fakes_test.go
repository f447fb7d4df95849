package services

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"grid-keeper/internal/config"
	"grid-keeper/internal/models"
	"grid-keeper/internal/proc"

	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	mutex sync.Mutex
	open  map[int]bool
	calls int
}

func newFakeProbe(open ...int) *fakeProbe {
	p := &fakeProbe{open: make(map[int]bool)}
	for _, port := range open {
		p.open[port] = true
	}
	return p
}

func (p *fakeProbe) IsOpen(port int) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.calls++
	return p.open[port]
}

func (p *fakeProbe) set(port int, open bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.open[port] = open
}

type fakeHandle struct {
	pid     int
	done    chan struct{}
	once    sync.Once
	stopped atomic.Bool
	onStop  func()
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{})}
}

func (h *fakeHandle) Pid() int              { return h.pid }
func (h *fakeHandle) Done() <-chan struct{} { return h.done }
func (h *fakeHandle) GetDetail() models.ProcessDetail {
	return models.ProcessDetail{Pid: h.pid}
}

func (h *fakeHandle) StopProcess(grace time.Duration) error {
	h.stopped.Store(true)
	h.once.Do(func() {
		if h.onStop != nil {
			h.onStop()
		}
		close(h.done)
	})
	return nil
}

type startCall struct {
	Title   string
	Command string
	Args    []string
	WorkDir string
	LogFile string
}

type runCall struct {
	Command string
	Args    []string
	WorkDir string
}

// fakeRunner records spawns and hook runs; onStart simulates the child binding its port.
type fakeRunner struct {
	mutex    sync.Mutex
	starts   []startCall
	runs     []runCall
	startErr map[string]error
	runErr   map[string]error
	onStart  func(title string) func()
	nextPid  int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		startErr: make(map[string]error),
		runErr:   make(map[string]error),
		nextPid:  1000,
	}
}

func (r *fakeRunner) Start(ctx context.Context, title, command string, args []string, workDir, logFile string) (proc.Handle, error) {
	r.mutex.Lock()
	r.starts = append(r.starts, startCall{title, command, args, workDir, logFile})
	err := r.startErr[title]
	r.nextPid++
	pid := r.nextPid
	onStart := r.onStart
	r.mutex.Unlock()
	if err != nil {
		return nil, err
	}
	h := newFakeHandle(pid)
	if onStart != nil {
		h.onStop = onStart(title)
	}
	return h, nil
}

func (r *fakeRunner) Run(ctx context.Context, command string, args []string, workDir string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.runs = append(r.runs, runCall{command, args, workDir})
	return r.runErr[command]
}

func (r *fakeRunner) startCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.starts)
}

func (r *fakeRunner) runCount() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.runs)
}

func (r *fakeRunner) startTitles() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var titles []string
	for _, s := range r.starts {
		titles = append(titles, s.Title)
	}
	return titles
}

type fakeInstaller struct {
	mutex  sync.Mutex
	calls  []string
	result map[string]InstallResult
	err    map[string]error
}

func newFakeInstaller() *fakeInstaller {
	return &fakeInstaller{result: make(map[string]InstallResult), err: make(map[string]error)}
}

func (f *fakeInstaller) EnsureInstalled(ctx context.Context, name string, spec models.InstallSpec) (InstallResult, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.calls = append(f.calls, name)
	if err := f.err[name]; err != nil {
		return InstallResult{}, newServiceError(name, PhaseInstall, ErrDownload, err)
	}
	return f.result[name], nil
}

type countingFetcher struct {
	inner Fetcher
	calls atomic.Int32
}

func (f *countingFetcher) GetFile(ctx context.Context, urlStr string, savePath string) error {
	f.calls.Add(1)
	return f.inner.GetFile(ctx, urlStr, savePath)
}

// freePort returns a loopback port nothing listens on.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func listen(t *testing.T, port int) net.Listener {
	t.Helper()
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err)
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	return l
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	dirs := map[string]bool{}
	for name, body := range files {
		for dir := parentDir(name); dir != ""; dir = parentDir(dir) {
			if dirs[dir] {
				continue
			}
			dirs[dir] = true
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: dir + "/", Typeflag: tar.TypeDir, Mode: 0755}))
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0755, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func parentDir(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[:i]
		}
	}
	return ""
}

// artifactServer serves body at any path and counts the requests.
func artifactServer(t *testing.T, body []byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testConfig(t *testing.T, svcs ...models.ServiceSpec) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		DataDir: t.TempDir(),
		BaseDir: t.TempDir(),
		Readiness: config.ReadinessConfig{
			Interval:    10 * time.Millisecond,
			MaxInterval: 50 * time.Millisecond,
			Multiplier:  2,
			Timeout:     2 * time.Second,
		},
		Probe:    config.ProbeConfig{Timeout: 200 * time.Millisecond},
		Shutdown: config.ShutdownConfig{Grace: 100 * time.Millisecond},
		Services: svcs,
	}
}

func testRegistry(t *testing.T, svcs ...models.ServiceSpec) *config.Registry {
	t.Helper()
	r, err := config.NewRegistry(svcs)
	require.NoError(t, err)
	return r
}

var errBoom = errors.New("boom")
