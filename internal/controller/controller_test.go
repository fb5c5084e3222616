package controller_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/micro-nova/devlog-go/internal/controller"
	"github.com/micro-nova/devlog-go/internal/events"
	"github.com/micro-nova/devlog-go/internal/hardware"
	"github.com/micro-nova/devlog-go/internal/lifecycle"
	"github.com/micro-nova/devlog-go/internal/logwriter"
	"github.com/micro-nova/devlog-go/internal/models"
	"github.com/micro-nova/devlog-go/internal/trigger"
	"github.com/micro-nova/devlog-go/internal/upload"
)

type fixture struct {
	ctrl *controller.Controller
	hw   *hardware.Mock
	path string
}

func newFixture(t *testing.T, opts controller.Options) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.txt")
	w, err := logwriter.New(path)
	if err != nil {
		t.Fatalf("logwriter.New: %v", err)
	}
	hw := hardware.NewMock()
	bus := events.NewBus()
	ctrl := controller.New(w, trigger.New(hw, bus), upload.NewRelay(w), bus, opts)
	t.Cleanup(func() { ctrl.Close() })
	return &fixture{ctrl: ctrl, hw: hw, path: path}
}

func TestEnableWithoutScopeIsUnavailable(t *testing.T) {
	f := newFixture(t, controller.Options{})
	out, err := f.ctrl.SetTriggerEnabled(context.Background(), true, false)
	if err != nil {
		t.Fatalf("SetTriggerEnabled: %v", err)
	}
	if out != models.EnableUnavailable {
		t.Errorf("outcome = %q, want unavailable", out)
	}
	if f.hw.Starts() != 0 {
		t.Errorf("source started %d times without a scope", f.hw.Starts())
	}
	if st := f.ctrl.TriggerStatus(); st.ScopeBound || st.State != "disabled" {
		t.Errorf("status = %+v", st)
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	f := newFixture(t, controller.Options{})
	if err := f.ctrl.BindScope(lifecycle.NewManual(true)); err != nil {
		t.Fatalf("BindScope: %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		out, err := f.ctrl.SetTriggerEnabled(ctx, true, false)
		if err != nil || out != models.EnableSuccess {
			t.Fatalf("enable #%d: %q, %v", i, out, err)
		}
	}
	if f.hw.Starts() != 1 {
		t.Errorf("Starts = %d, want 1", f.hw.Starts())
	}
	st := f.ctrl.TriggerStatus()
	if st.State != "enabled-listening" || !st.ScopeActive || st.Source != "mock" {
		t.Errorf("status = %+v", st)
	}
}

func TestScopeTransitionsDriveListening(t *testing.T) {
	f := newFixture(t, controller.Options{})
	scope := lifecycle.NewManual(false)
	if err := f.ctrl.BindScope(scope); err != nil {
		t.Fatalf("BindScope: %v", err)
	}
	if _, err := f.ctrl.SetTriggerEnabled(context.Background(), true, false); err != nil {
		t.Fatal(err)
	}
	if f.hw.Listening() {
		t.Fatal("listening while scope is in background")
	}

	if err := f.ctrl.SetForeground(true); err != nil {
		t.Fatalf("SetForeground(true): %v", err)
	}
	if !f.hw.Listening() {
		t.Error("not listening after foreground")
	}
	if err := f.ctrl.SetForeground(false); err != nil {
		t.Fatalf("SetForeground(false): %v", err)
	}
	if f.hw.Listening() {
		t.Error("still listening after background")
	}
	if got := f.ctrl.TriggerStatus().State; got != "enabled-idle" {
		t.Errorf("state = %q, want enabled-idle", got)
	}
}

func TestBackgroundWithoutEnableIsNoop(t *testing.T) {
	f := newFixture(t, controller.Options{})
	if err := f.ctrl.BindScope(lifecycle.NewManual(true)); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.OnBackground(); err != nil {
		t.Errorf("OnBackground: %v", err)
	}
	if err := f.ctrl.OnForeground(); err != nil {
		t.Errorf("OnForeground: %v", err)
	}
	if f.hw.Starts() != 0 || f.hw.Stops() != 0 {
		t.Errorf("starts=%d stops=%d, want 0/0", f.hw.Starts(), f.hw.Stops())
	}
}

// hookedSource runs onStart inside Start, while the detector is mid-enable.
type hookedSource struct {
	*hardware.Mock
	onStart func()
}

func (h *hookedSource) Start(onPulse func()) error {
	if err := h.Mock.Start(onPulse); err != nil {
		return err
	}
	if h.onStart != nil {
		h.onStart()
	}
	return nil
}

func TestBackgroundDuringEnableUnsubscribes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	w, err := logwriter.New(path)
	if err != nil {
		t.Fatal(err)
	}
	scope := lifecycle.NewManual(true)
	flipped := make(chan error, 1)
	src := &hookedSource{Mock: hardware.NewMock()}
	src.onStart = func() {
		src.onStart = nil
		// The scope leaves the foreground while the subscribe is in flight.
		go func() { flipped <- scope.SetActive(false) }()
	}
	bus := events.NewBus()
	ctrl := controller.New(w, trigger.New(src, bus), upload.NewRelay(w), bus, controller.Options{})
	defer ctrl.Close()
	if err := ctrl.BindScope(scope); err != nil {
		t.Fatal(err)
	}

	if _, err := ctrl.SetTriggerEnabled(context.Background(), true, false); err != nil {
		t.Fatalf("SetTriggerEnabled: %v", err)
	}
	select {
	case err := <-flipped:
		if err != nil {
			t.Fatalf("SetActive(false): %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("background transition never completed")
	}

	if src.Listening() {
		t.Fatal("subscription active while scope is backgrounded")
	}
	if got := ctrl.TriggerStatus().State; got != "enabled-idle" {
		t.Errorf("state = %q, want enabled-idle", got)
	}
}

func TestConcurrentScopeAndEnable(t *testing.T) {
	f := newFixture(t, controller.Options{})
	scope := lifecycle.NewManual(false)
	if err := f.ctrl.BindScope(scope); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = scope.SetActive((i+j)%2 == 0)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = f.ctrl.SetTriggerEnabled(ctx, (i+j)%3 != 0, false)
			}
		}(i)
	}
	wg.Wait()

	st := f.ctrl.TriggerStatus()
	listening := st.State == "enabled-listening"
	if f.hw.Listening() != listening {
		t.Fatalf("hardware subscribed = %v with state %q", f.hw.Listening(), st.State)
	}
	if listening && !scope.Active() {
		t.Fatal("listening while scope is backgrounded")
	}
	if st.State == "enabled-idle" && scope.Active() {
		t.Fatal("idle while scope is in the foreground")
	}
}

func TestUnbindStopsListening(t *testing.T) {
	f := newFixture(t, controller.Options{})
	scope := lifecycle.NewManual(true)
	if err := f.ctrl.BindScope(scope); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ctrl.SetTriggerEnabled(context.Background(), true, false); err != nil {
		t.Fatal(err)
	}
	f.ctrl.UnbindScope()
	if f.hw.Listening() {
		t.Error("listening after unbind")
	}
	// Transitions of the detached scope are no longer observed.
	scope.SetActive(false)
	scope.SetActive(true)
	if f.hw.Listening() {
		t.Error("detached scope restarted listening")
	}
	if err := f.ctrl.SetForeground(true); err != controller.ErrNotManualScope {
		t.Errorf("SetForeground without scope = %v", err)
	}
}

func TestEnableDeletesExistingLog(t *testing.T) {
	f := newFixture(t, controller.Options{})
	ctx := context.Background()
	if err := f.ctrl.BindScope(lifecycle.NewManual(true)); err != nil {
		t.Fatal(err)
	}
	if ok, err := f.ctrl.WriteLog(ctx, "old session"); !ok || err != nil {
		t.Fatalf("WriteLog: %v %v", ok, err)
	}

	out, err := f.ctrl.SetTriggerEnabled(ctx, true, true)
	if err != nil || out != models.EnableSuccess {
		t.Fatalf("enable: %q, %v", out, err)
	}
	if exists, _ := f.ctrl.FileExists(ctx); exists {
		t.Error("log still exists after enable with delete")
	}

	// Deleting when no file exists is still a success.
	out, err = f.ctrl.SetTriggerEnabled(ctx, true, true)
	if err != nil || out != models.EnableSuccess {
		t.Errorf("second enable: %q, %v", out, err)
	}
}

func TestEnableReportsDeleteFailure(t *testing.T) {
	f := newFixture(t, controller.Options{})
	if err := f.ctrl.BindScope(lifecycle.NewManual(true)); err != nil {
		t.Fatal(err)
	}
	// A non-empty directory at the log path cannot be removed.
	if err := os.MkdirAll(filepath.Join(f.path, "child"), 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := f.ctrl.SetTriggerEnabled(context.Background(), true, true)
	if err != nil {
		t.Fatalf("SetTriggerEnabled: %v", err)
	}
	if out != models.EnableDeleteFailed {
		t.Errorf("outcome = %q, want delete-failed", out)
	}
	if !f.hw.Listening() {
		t.Error("trigger not enabled after delete failure")
	}
}

func TestPulseReachesSubscriber(t *testing.T) {
	f := newFixture(t, controller.Options{})
	ch := f.ctrl.Subscribe("test")
	defer f.ctrl.Unsubscribe("test")
	if err := f.ctrl.BindScope(lifecycle.NewManual(true)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ctrl.SetTriggerEnabled(context.Background(), true, false); err != nil {
		t.Fatal(err)
	}
	if !f.hw.Pulse() {
		t.Fatal("pulse not delivered")
	}
	select {
	case ev := <-ch:
		if ev.Source != "mock" || ev.ID == "" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no trigger event")
	}
}

func TestLogRespectsLevel(t *testing.T) {
	f := newFixture(t, controller.Options{Level: logwriter.LevelWarn, Location: time.UTC})
	ctx := context.Background()

	if ok, err := f.ctrl.Log(ctx, logwriter.LevelDebug, "chatty"); ok || err != nil {
		t.Errorf("debug line accepted: %v %v", ok, err)
	}
	if ok, err := f.ctrl.Log(ctx, logwriter.LevelError, "boom", 42, "x"); !ok || err != nil {
		t.Fatalf("error line rejected: %v %v", ok, err)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if strings.Contains(line, "chatty") {
		t.Error("filtered line was written")
	}
	if !strings.HasPrefix(line, "📠 [") || !strings.HasSuffix(line, " ERROR]: ▸ boom 42, x\n") {
		t.Errorf("line = %q", line)
	}
}

func TestUploadEndToEnd(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		buf := new(strings.Builder)
		if _, err := io.Copy(buf, file); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		received <- buf.String()
	}))
	defer srv.Close()

	f := newFixture(t, controller.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := f.ctrl.WriteLog(ctx, "hello"); err != nil {
		t.Fatal(err)
	}
	// A cancelled caller context does not abort the upload.
	cancel()
	res := f.ctrl.Upload(ctx, srv.URL)
	if !res.OK() || res.Code != http.StatusOK {
		t.Fatalf("result = %+v", res)
	}
	if got := <-received; got != "hello\n" {
		t.Errorf("server received %q", got)
	}
}

func TestUploadMissingFile(t *testing.T) {
	f := newFixture(t, controller.Options{})
	res := <-f.ctrl.UploadAsync(context.Background(), "http://127.0.0.1:1/upload")
	if res.OK() || res.Error != models.ErrFileMissing {
		t.Errorf("result = %+v", res)
	}
}

func TestUploadSlackUnconfigured(t *testing.T) {
	f := newFixture(t, controller.Options{})
	if _, appErr := f.ctrl.UploadSlack(context.Background()); appErr == nil || appErr.Status != http.StatusServiceUnavailable {
		t.Errorf("appErr = %v", appErr)
	}
}
